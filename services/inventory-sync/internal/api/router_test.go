package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/storage"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/bootstrap"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	store    *storage.MemoryStorage
	upstream *testutil.FakeUpstream
	server   *httptest.Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	log := logger.NewNop()
	env := &testEnv{
		store:    storage.NewMemoryStorage(),
		upstream: testutil.NewFakeUpstream(),
	}
	syncService := bootstrap.Wire(bootstrap.Deps{
		Store:      env.store,
		Tx:         env.store,
		Upstream:   env.upstream,
		Tokens:     testutil.StaticTokens{Token: "token"},
		HTTPClient: http.DefaultClient,
		Settings:   services.Settings{BatchSize: 100},
		Logger:     log,
	})

	env.server = httptest.NewServer(SetupRouter(syncService, log, RouterOptions{
		CORSAllowedOrigins: []string{"https://admin.example.com"},
		BodyLimitBytes:     1 << 10,
		MetricsPath:        "/metrics",
	}))
	t.Cleanup(env.server.Close)
	return env
}

func (e *testEnv) post(t *testing.T, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(e.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.server.URL + path)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/health")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp = env.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSyncRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, env.store.SaveWarehouse(context.Background(), models.Warehouse{ID: 1, Name: "Москва", Active: true}))

	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(testutil.SnapshotDocument(testutil.Stock{
			SKU: "SKU1", WarehouseID: 1, OnHand: 5,
			Bins: []testutil.Bin{{ID: 10, Name: "A-01", Quantity: 5}},
		})))
	}))
	t.Cleanup(files.Close)

	resp := env.post(t, "/api/v1/sync/trigger", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var trigger services.TriggerResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&trigger))
	require.Len(t, trigger.CreatedJobs, 1)
	snapshotID := trigger.CreatedJobs[0].SnapshotID

	env.upstream.SetStatus(snapshotID, "Completed", files.URL)

	resp = env.post(t, "/api/v1/sync/poll", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var poll services.PollResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&poll))
	assert.Equal(t, 1, poll.Completed)

	resp = env.get(t, "/api/v1/sync/jobs?status=completed")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list struct {
		Data []*models.SyncJob `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list.Data, 1)
	assert.Equal(t, 1, list.Data[0].ProcessedItems)

	resp = env.get(t, "/api/v1/sync/jobs/"+list.Data[0].ID)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	positions, err := env.store.ListPositions(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, "A-01", positions[0].BinName)
}

func TestRequestBodyLimit(t *testing.T) {
	env := newTestEnv(t)

	body := `{"snapshot_url": "https://files.example.com/` + strings.Repeat("a", 2<<10) + `"}`
	resp := env.post(t, "/api/v1/sync/ingest", body)

	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestUnknownJobIsNotFound(t *testing.T) {
	env := newTestEnv(t)

	resp := env.get(t, "/api/v1/sync/jobs/missing")

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
