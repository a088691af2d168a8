package api

import (
	"net/http"
	"time"

	"github.com/athebyme/gomarket-inventory/pkg/auth"
	"github.com/athebyme/gomarket-inventory/pkg/interfaces"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/api/handlers"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/api/middleware"
	"github.com/athebyme/gomarket-inventory/services/inventory-sync/internal/domain/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	// регистрация swagger документа
	_ "github.com/athebyme/gomarket-inventory/services/inventory-sync/docs"
)

// RouterOptions параметры маршрутизатора
type RouterOptions struct {
	CORSAllowedOrigins []string
	RequestTimeout     time.Duration
	BodyLimitBytes     int64
	// MetricsPath путь эндпоинта Prometheus; пусто - не публиковать
	MetricsPath string
	// Keycloak nil - API без аутентификации
	Keycloak      *auth.KeycloakClient
	RequiredRoles []string
}

// SetupRouter настраивает маршрутизатор
func SetupRouter(
	syncService services.SyncServiceInterface,
	logger interfaces.LoggerPort,
	opts RouterOptions,
) *chi.Mux {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Tracing)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Metrics)
	r.Use(middleware.CORS(opts.CORSAllowedOrigins))
	r.Use(middleware.SecurityHeaders)

	r.Method(http.MethodGet, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	r.Method(http.MethodHead, "/health", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	if opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, promhttp.Handler())
	}

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	syncHandler := handlers.NewSyncHandler(syncService, logger)

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))
		r.Use(middleware.BodyLimit(opts.BodyLimitBytes))

		if opts.Keycloak != nil {
			r.Use(auth.AuthMiddleware(opts.Keycloak, logger))
			if len(opts.RequiredRoles) > 0 {
				r.Use(auth.RequireAnyRole(opts.Keycloak, opts.RequiredRoles...))
			}
		}

		r.Post("/trigger", syncHandler.TriggerSnapshot)
		r.Post("/poll", syncHandler.PollJobs)
		r.Post("/ingest", syncHandler.IngestSnapshot)
		r.Post("/abort", syncHandler.AbortSnapshot)

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", syncHandler.ListJobs)
			r.Get("/{id}", syncHandler.GetJob)
		})
	})

	return r
}
