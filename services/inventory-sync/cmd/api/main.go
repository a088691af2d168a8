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

	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/config"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/adapters/logger"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/api"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/bootstrap"
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

	log.Info("Инициализация сервиса",
		interfaces.LogField{Key: "app_name", Value: cfg.AppName},
		interfaces.LogField{Key: "version", Value: cfg.Version},
		interfaces.LogField{Key: "env", Value: cfg.ENV},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Сервис остановлен с ошибкой", interfaces.LogField{Key: "error", Value: err.Error()})
		os.Exit(1)
	}
	log.Info("Сервер корректно завершил работу")
}

func run(ctx context.Context, cfg *config.Config, log interfaces.LoggerPort) error {
	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Error("Ошибка при закрытии зависимостей", interfaces.LogField{Key: "error", Value: err.Error()})
		}
	}()

	keycloak, err := bootstrap.NewKeycloak(ctx, cfg)
	if err != nil {
		return fmt.Errorf("ошибка инициализации Keycloak: %w", err)
	}

	router := api.SetupRouter(app.Sync, log, api.RouterOptions{
		CORSAllowedOrigins: cfg.Security.CORSAllowOrigins,
		RequestTimeout:     cfg.Server.RequestTimeout,
		BodyLimitBytes:     int64(cfg.Server.BodyLimit) << 20,
		MetricsPath:        metricsPath(cfg),
		Keycloak:           keycloak,
		RequiredRoles:      cfg.Keycloak.Roles,
	})
	log.Info("Маршрутизатор настроен")

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("Сервер запущен", interfaces.LogField{Key: "address", Value: server.Addr})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ошибка запуска сервера: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Получен сигнал завершения, выполняется graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ошибка при graceful shutdown: %w", err)
		}
		log.Info("HTTP сервер остановлен")
		return nil
	})

	return g.Wait()
}

// metricsPath метрики публикуются на основном порту API
func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Endpoint
}
