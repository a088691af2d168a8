package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	pkgerrors "github.com/athebyme/gomarket-inventory/pkg/errors"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/config"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/bootstrap"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Printf("Ошибка загрузки конфигурации: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewZapLogger(cfg.LogLevel, cfg.ENV == "production")
	if err != nil {
		fmt.Printf("Ошибка инициализации логгера: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Инициализация воркера",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName + "-worker"},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Воркер остановлен с ошибкой", interfaces.LogField{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	log.Info("Воркер корректно завершил работу")
}

func run(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) error {
	if !cfg.Kafka.Enabled {
		return pkgerrors.NewConfigError("kafka.enabled", "воркеру нужна Kafka")
	}

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("Ошибка при закрытии зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	dispatcher := worker.NewDispatcher(app.Sync, log)

	g, gctx := errgroup.WithContext(ctx)

	// HTTP сервер для метрик
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Endpoint, promhttp.Handler())
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})
		metricsServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("Запуск HTTP сервера для метрик", interfaces.LogField{Key: "addr", Value: metricsServer.Addr})
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("ошибка запуска HTTP сервера для метрик: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		unsubscribe, err := app.Messaging.Subscribe(gctx, cfg.Kafka.CommandsTopic, dispatcher.Handle)
		if err != nil {
			return fmt.Errorf("ошибка подписки на команды синхронизации: %w", err)
		}
		log.Info("Подписка на команды синхронизации установлена",
			interfaces.LogField{Key: "topic", Value: cfg.Kafka.CommandsTopic})

		<-gctx.Done()
		log.Info("Отмена подписки на команды синхронизации")
		return unsubscribe()
	})

	log.Info("Воркер запущен и готов к обработке сообщений")
	return g.Wait()
}
