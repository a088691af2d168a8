package bootstrap

import (
	"net/http"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
)

// Deps зависимости конвейера синхронизации
type Deps struct {
	Store      Store
	Tx         interfaces.TxRunner
	Cache      interfaces.CachePort // может быть nil
	CacheTTL   time.Duration
	Events     services.EventPublisher // может быть nil
	Upstream   services.UpstreamClient
	Tokens     services.TokenProvider
	HTTPClient *http.Client
	Settings   services.Settings
	Logger     interfaces.LoggerPort
}

// Wire связывает компоненты конвейера
func Wire(d Deps) *services.SyncService {
	coordinator := services.NewJobCoordinator(d.Store, d.Events, d.Logger)
	directory := services.NewWarehouseDirectory(d.Store, d.Cache, d.CacheTTL, d.Logger)
	writer := services.NewBatchWriter(d.Store, d.Tx)
	ingestion := services.NewIngestionService(d.HTTPClient, writer, coordinator, d.Logger, d.Settings)

	return services.NewSyncService(
		services.NewSnapshotRequester(d.Upstream, d.Tokens, directory, coordinator, d.Logger, d.Settings),
		services.NewStatusPoller(d.Upstream, coordinator, ingestion, d.Logger, d.Settings),
		ingestion,
		services.NewAbortService(d.Upstream, coordinator, d.Logger),
		coordinator,
		directory,
		d.Logger,
	)
}
