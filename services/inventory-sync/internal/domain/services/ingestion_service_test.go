package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingWriter проваливает пакеты с заданными номерами (с единицы)
type failingWriter struct {
	next  PositionWriter
	fail  map[int]bool
	calls int
}

func (w *failingWriter) UpsertBatch(ctx context.Context, records []models.InventoryPosition) error {
	w.calls++
	if w.fail[w.calls] {
		return fmt.Errorf("write batch %d: connection reset", w.calls)
	}
	return w.next.UpsertBatch(ctx, records)
}

func tenSKUDocument() string {
	stocks := make([]testutil.Stock, 0, 10)
	for i := 1; i <= 10; i++ {
		stocks = append(stocks, singleBinStock(fmt.Sprintf("SKU%02d", i), 1, 100+i, i))
	}
	return testutil.SnapshotDocument(stocks...)
}

func TestIngestCountsOnlySuccessfulBatches(t *testing.T) {
	writer := &failingWriter{fail: map[int]bool{3: true}}
	f := newFixtureWithWriter(t, writer)
	writer.next = NewBatchWriter(f.store, f.store)

	result, err := f.ingestion.IngestReader(context.Background(), strings.NewReader(tenSKUDocument()), "")
	require.NoError(t, err)

	assert.False(t, result.Success())
	assert.Equal(t, 10, result.TotalRecords)
	assert.Equal(t, 10, result.SKUsProcessed)
	assert.Equal(t, 5, result.BatchesTotal)
	assert.Equal(t, 4, result.BatchesProcessed)
	assert.Equal(t, 8, result.RecordsWritten)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 3, result.Errors[0].BatchIndex)
	assert.Equal(t, 2, result.Errors[0].Records)

	var partial *pkgerrors.PartialBatchError
	require.True(t, errors.As(result.Err(), &partial))
	assert.Equal(t, 5, partial.Total)

	positions, err := f.store.ListPositions(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, positions, 8)
	for _, p := range positions {
		assert.NotContains(t, []string{"SKU05", "SKU06"}, p.SKU)
	}
}

// recordingWriter запоминает пакеты в порядке записи
type recordingWriter struct {
	batches [][]models.InventoryPosition
}

func (w *recordingWriter) UpsertBatch(_ context.Context, records []models.InventoryPosition) error {
	w.batches = append(w.batches, append([]models.InventoryPosition(nil), records...))
	return nil
}

func TestIngestBatchesSpanSKUBoundaries(t *testing.T) {
	writer := &recordingWriter{}
	f := newFixtureWithWriter(t, writer)
	doc := testutil.SnapshotDocument(
		testutil.Stock{SKU: "A", WarehouseID: 1, Bins: []testutil.Bin{
			{ID: 1, Name: "A-01", Quantity: 1},
			{ID: 2, Name: "A-02", Quantity: 2},
			{ID: 3, Name: "A-03", Quantity: 3},
		}},
		singleBinStock("B", 1, 4, 4),
		testutil.Stock{SKU: "C", WarehouseID: 1, Bins: []testutil.Bin{
			{ID: 5, Name: "C-01", Quantity: 5},
			{ID: 6, Name: "C-02", Quantity: 6},
		}},
	)

	result, err := f.ingestion.IngestReader(context.Background(), strings.NewReader(doc), "")
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, 3, result.BatchesTotal)

	sizes := make([]int, 0, len(writer.batches))
	var written []int
	for _, batch := range writer.batches {
		sizes = append(sizes, len(batch))
		for _, p := range batch {
			written = append(written, p.Quantity)
		}
	}
	assert.Equal(t, []int{2, 2, 2}, sizes)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6}, written)
}

func TestIngestIsIdempotent(t *testing.T) {
	f := newFixture(t)
	doc := tenSKUDocument()

	first, err := f.ingestion.IngestReader(context.Background(), strings.NewReader(doc), "")
	require.NoError(t, err)
	require.True(t, first.Success())

	before, err := f.store.ListPositions(context.Background(), 1)
	require.NoError(t, err)

	second, err := f.ingestion.IngestReader(context.Background(), strings.NewReader(doc), "")
	require.NoError(t, err)
	require.True(t, second.Success())

	after, err := f.store.ListPositions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].Key(), after[i].Key())
		assert.Equal(t, before[i].Quantity, after[i].Quantity)
	}
}

func TestIngestSkipsZeroQuantitiesAndKeepsWarnings(t *testing.T) {
	f := newFixture(t)
	doc := testutil.SnapshotDocument(
		singleBinStock("SKU1", 1, 10, 5),
		testutil.Stock{SKU: "SKU2", WarehouseID: 1, Bins: []testutil.Bin{{ID: 11, Name: "A-02", Quantity: 0}}},
		testutil.Stock{SKU: "SKU3", WarehouseID: 1, Bins: []testutil.Bin{{ID: 12, Name: "", Quantity: 4}}},
	)

	result, err := f.ingestion.IngestReader(context.Background(), strings.NewReader(doc), "")
	require.NoError(t, err)

	assert.True(t, result.Success())
	assert.Equal(t, 3, result.SKUsProcessed)
	assert.Equal(t, 2, result.RecordsWritten)
	assert.Equal(t, 1, result.WarningCount)
	require.Len(t, result.WarningMessages(), 1)
	assert.Contains(t, result.WarningMessages()[0], "SKU3")
}

func TestIngestParseErrorStopsImport(t *testing.T) {
	f := newFixture(t)
	doc := `{"SKU1": {"warehouse_products": {`

	result, err := f.ingestion.IngestReader(context.Background(), strings.NewReader(doc), "")
	require.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 0, result.RecordsWritten)
}

func TestIngestDownloadFailure(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	result, err := f.ingestion.Ingest(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.Nil(t, result)

	var apiErr *pkgerrors.UpstreamAPIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
}

func TestIngestRequiresURL(t *testing.T) {
	f := newFixture(t)

	_, err := f.ingestion.Ingest(context.Background(), "", "")
	require.Error(t, err)
}

func TestIngestReportsProgressForJob(t *testing.T) {
	f := newFixture(t)
	job, err := f.coordinator.CreatePendingJob(context.Background(), "snap-1", "", 1)
	require.NoError(t, err)
	claimed, err := f.coordinator.StartProcessing(context.Background(), job.ID)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = f.ingestion.IngestReader(context.Background(), strings.NewReader(tenSKUDocument()), job.ID)
	require.NoError(t, err)

	stored := f.job(t, job.ID)
	assert.Equal(t, models.SyncJobProcessing, stored.Status)
	assert.Equal(t, 10, stored.ProcessedItems)
	assert.Equal(t, 10, stored.TotalItems)
}
