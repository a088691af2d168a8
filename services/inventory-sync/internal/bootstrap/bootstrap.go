// Package bootstrap собирает зависимости сервиса из конфигурации.
// Используется HTTP API, воркером и CLI
package bootstrap

import (
	"context"
	"fmt"
	"net/http"

	"github.com/athebyme/gomarket-inventory/pkg/auth"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/pkg/tx"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/config"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/cache"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/messaging"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/storage"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/upstream"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/models"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/infrastructure/postgres"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/security"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/utils"
	"github.com/hashicorp/go-multierror"
)

// Store хранилище задач, позиций и реестра складов
type Store interface {
	interfaces.StoragePort
	services.JobStore
	services.PositionStore
	services.WarehouseStore
	ListPositions(ctx context.Context, warehouseID int) ([]models.InventoryPosition, error)
	SaveWarehouse(ctx context.Context, w models.Warehouse) error
}

// App собранный сервис
type App struct {
	Config    *config.Config
	Logger    interfaces.LoggerPort
	Store     Store
	Sync      *services.SyncService
	Messaging interfaces.MessagingPort // nil, если Kafka выключена

	closers []func() error
}

// Settings переводит секцию sync конфигурации в настройки конвейера
func Settings(cfg *config.Config) services.Settings {
	s := services.DefaultSettings()
	s.BatchSize = cfg.Sync.BatchSize
	s.StaleAfter = cfg.Sync.StaleAfter
	s.RetryProcessingAfter = cfg.Sync.RetryProcessingAfter
	s.RequestDelay = cfg.Sync.RequestDelay
	s.PollDelay = cfg.Sync.PollDelay
	s.ProgressEveryBatches = cfg.Sync.ProgressEveryBatches
	return s
}

// OpenStore открывает хранилище выбранного драйвера и, если нужно, применяет миграции
func OpenStore(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort, migrate bool) (Store, interfaces.TxRunner, error) {
	switch cfg.Storage.Driver {
	case config.StorageDriverMemory:
		log.Warn("Используется хранилище в памяти, данные не переживут перезапуск")
		mem := storage.NewMemoryStorage()
		return mem, mem, nil

	case config.StorageDriverPostgres:
		dsn, err := utils.GenerateConnectionString(
			cfg.Postgres.Host,
			cfg.Postgres.User,
			cfg.Postgres.Password,
			cfg.Postgres.DBName,
			cfg.Postgres.SSLMode,
			cfg.Postgres.Port,
			cfg.Postgres.PoolSize,
			cfg.Postgres.Timeout,
		)
		if err != nil {
			return nil, nil, err
		}

		pool, err := postgres.NewPool(ctx, dsn, cfg.Postgres.PoolSize, log)
		if err != nil {
			return nil, nil, err
		}

		if migrate {
			if err := postgres.Migrate(ctx, pool, log); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}

		return storage.NewPostgresStorage(pool), tx.NewTxManager(pool, log), nil

	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

// NewTokenProvider выбирает источник токена внешнего API
func NewTokenProvider(ctx context.Context, cfg config.UpstreamConfig, log interfaces.LoggerPort) (services.TokenProvider, error) {
	if cfg.UsesOAuth2() {
		log.Info("Токен внешнего API обновляется через OAuth2")
		return security.NewOAuth2TokenProvider(ctx, security.OAuth2Config{
			TokenURL:     cfg.TokenURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RefreshToken: cfg.RefreshToken,
		}, log), nil
	}
	return security.NewStaticTokenProvider(cfg.Token, log)
}

// NewKeycloak создает клиент Keycloak или возвращает nil, если аутентификация выключена
func NewKeycloak(ctx context.Context, cfg *config.Config) (*auth.KeycloakClient, error) {
	if !cfg.Keycloak.Enabled {
		return nil, nil
	}
	return auth.NewKeycloakClient(ctx, cfg.Keycloak.GetKeycloakConfig())
}

// New собирает сервис синхронизации
func New(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) (app *App, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Upstream.Validate(); err != nil {
		return nil, err
	}

	app = &App{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	store, txRunner, err := OpenStore(ctx, cfg, log, cfg.Storage.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации хранилища: %w", err)
	}
	app.Store = store
	app.closers = append(app.closers, store.Close)
	log.Info("Хранилище инициализировано", interfaces.LogField{Key: "driver", Value: cfg.Storage.Driver})

	var cachePort interfaces.CachePort
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации кэша: %w", err)
		}
		cachePort = redisCache
		app.closers = append(app.closers, redisCache.Close)
		log.Info("Кэш инициализирован")
	}

	var events services.EventPublisher
	if cfg.Kafka.Enabled {
		kafka, err := messaging.NewKafkaMessaging(messaging.KafkaConfig{
			Brokers:         cfg.Kafka.Brokers,
			GroupID:         cfg.Kafka.GroupID,
			ClientID:        cfg.Kafka.ClientID,
			DeadLetterTopic: cfg.Kafka.DeadLetterTopic,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("ошибка инициализации системы обмена сообщениями: %w", err)
		}
		app.Messaging = kafka
		app.closers = append(app.closers, kafka.Close)
		events = messaging.NewJobEventPublisher(kafka, cfg.Kafka.EventsTopic)
		log.Info("Система обмена сообщениями инициализирована")
	}

	tokens, err := NewTokenProvider(ctx, cfg.Upstream, log)
	if err != nil {
		return nil, err
	}

	client, err := upstream.NewClient(upstream.Config{
		URL:        cfg.Upstream.URL,
		Timeout:    cfg.Upstream.Timeout,
		MaxRetries: uint(cfg.Upstream.MaxRetries),
		RetryDelay: cfg.Upstream.RetryDelay,
	}, tokens, log)
	if err != nil {
		return nil, err
	}

	app.Sync = Wire(Deps{
		Store:      store,
		Tx:         txRunner,
		Cache:      cachePort,
		CacheTTL:   cfg.Sync.WarehouseCacheTTL,
		Events:     events,
		Upstream:   client,
		Tokens:     tokens,
		HTTPClient: &http.Client{},
		Settings:   Settings(cfg),
		Logger:     log,
	})
	log.Info("Сервис синхронизации остатков инициализирован")

	return app, nil
}

// Close освобождает ресурсы в обратном порядке
func (a *App) Close() error {
	var result *multierror.Error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	a.closers = nil
	return result.ErrorOrNil()
}
