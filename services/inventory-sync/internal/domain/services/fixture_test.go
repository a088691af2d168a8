package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	pkgmodels "github.com/athebyme/gomarket-inventory/pkg/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/storage"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/testutil"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []pkgmodels.SyncJobEvent
}

func (p *recordingPublisher) PublishJobEvent(_ context.Context, event pkgmodels.SyncJobEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	store       *storage.MemoryStorage
	upstream    *testutil.FakeUpstream
	tokens      *testutil.StaticTokens
	events      *recordingPublisher
	coordinator *JobCoordinator
	ingestion   *IngestionService
	service     *SyncService
	now         time.Time
}

func testSettings() Settings {
	return Settings{
		BatchSize:    2,
		RequestDelay: 0,
		PollDelay:    0,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithWriter(t, nil)
}

// newFixtureWithWriter собирает конвейер на хранилище в памяти. writer nil - BatchWriter поверх хранилища
func newFixtureWithWriter(t *testing.T, writer PositionWriter) *fixture {
	t.Helper()

	log := logger.NewNop()
	f := &fixture{
		store:    storage.NewMemoryStorage(),
		upstream: testutil.NewFakeUpstream(),
		tokens:   &testutil.StaticTokens{Token: "token"},
		events:   &recordingPublisher{},
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	f.coordinator = NewJobCoordinator(f.store, f.events, log)
	f.coordinator.Now = func() time.Time { return f.now }

	if writer == nil {
		writer = NewBatchWriter(f.store, f.store)
	}

	settings := testSettings()
	directory := NewWarehouseDirectory(f.store, nil, 0, log)
	f.ingestion = NewIngestionService(http.DefaultClient, writer, f.coordinator, log, settings)

	f.service = NewSyncService(
		NewSnapshotRequester(f.upstream, f.tokens, directory, f.coordinator, log, settings),
		NewStatusPoller(f.upstream, f.coordinator, f.ingestion, log, settings),
		f.ingestion,
		NewAbortService(f.upstream, f.coordinator, log),
		f.coordinator,
		directory,
		log,
	)
	return f
}

func (f *fixture) addWarehouse(t *testing.T, id int, name string, active bool) {
	t.Helper()
	require.NoError(t, f.store.SaveWarehouse(context.Background(), models.Warehouse{ID: id, Name: name, Active: active}))
}

func (f *fixture) job(t *testing.T, id string) *models.SyncJob {
	t.Helper()
	job, err := f.store.GetJob(context.Background(), id)
	require.NoError(t, err)
	return job
}

// serveDocument отдает файл снапшота по HTTP
func serveDocument(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func singleBinStock(sku string, warehouseID, binID, quantity int) testutil.Stock {
	return testutil.Stock{
		SKU:         sku,
		WarehouseID: warehouseID,
		OnHand:      quantity,
		Bins:        []testutil.Bin{{ID: binID, Name: "A-01", Quantity: quantity}},
	}
}
