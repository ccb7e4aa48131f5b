package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/cache"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/database"
	"github.com/straye-as/offer-pipeline-api/internal/datawarehouse"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/http/handler"
	"github.com/straye-as/offer-pipeline-api/internal/http/middleware"
	httpSwagger "github.com/swaggo/http-swagger/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "github.com/straye-as/offer-pipeline-api/docs" // Import generated swagger docs
)

const readinessTimeout = 3 * time.Second

type Router struct {
	cfg              *config.Config
	logger           *zap.Logger
	db               *gorm.DB
	cache            cache.Cache
	dwClient         *datawarehouse.Client
	authMiddleware   *auth.Middleware
	rateLimiter      *middleware.RateLimiter
	offerHandler     *handler.OfferHandler
	activityHandler  *handler.ActivityHandler
	targetHandler    *handler.TargetHandler
	reportHandler    *handler.ReportHandler
	referenceHandler *handler.ReferenceHandler
	authHandler      *handler.AuthHandler
}

func NewRouter(
	cfg *config.Config,
	logger *zap.Logger,
	db *gorm.DB,
	reportCache cache.Cache,
	dwClient *datawarehouse.Client,
	authMiddleware *auth.Middleware,
	rateLimiter *middleware.RateLimiter,
	offerHandler *handler.OfferHandler,
	activityHandler *handler.ActivityHandler,
	targetHandler *handler.TargetHandler,
	reportHandler *handler.ReportHandler,
	referenceHandler *handler.ReferenceHandler,
	authHandler *handler.AuthHandler,
) *Router {
	return &Router{
		cfg:              cfg,
		logger:           logger,
		db:               db,
		cache:            reportCache,
		dwClient:         dwClient,
		authMiddleware:   authMiddleware,
		rateLimiter:      rateLimiter,
		offerHandler:     offerHandler,
		activityHandler:  activityHandler,
		targetHandler:    targetHandler,
		reportHandler:    reportHandler,
		referenceHandler: referenceHandler,
		authHandler:      authHandler,
	}
}

func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(rt.logger))
	r.Use(middleware.Logging(rt.logger))
	r.Use(middleware.ClientInfo)
	r.Use(middleware.Tracing)
	if rt.cfg.Metrics.Enabled {
		r.Use(middleware.Metrics)
	}
	r.Use(middleware.SecurityHeaders(&rt.cfg.Security))
	r.Use(middleware.CORS(&rt.cfg.CORS, rt.cfg.App.Environment, rt.logger))
	r.Use(rt.rateLimiter.LimitByIP)

	// Health check (basic liveness probe)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Get("/health/db", rt.databaseHealth)
	r.Get("/health/ready", rt.readiness)

	if rt.cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	if rt.cfg.Server.EnableSwagger {
		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/swagger/doc.json"),
		))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.authMiddleware.Authenticate)
		r.Use(rt.rateLimiter.Limit)

		// Auth
		r.Get("/auth/me", rt.authHandler.Me)
		r.Post("/auth/login", rt.authHandler.Login)
		r.Post("/auth/logout", rt.authHandler.Logout)

		// Offers
		r.Route("/offers", func(r chi.Router) {
			r.Get("/", rt.offerHandler.List)
			r.Post("/", rt.offerHandler.Create)
			r.Get("/{id}", rt.offerHandler.GetByID)
			r.Patch("/{id}", rt.offerHandler.Update)
			r.Delete("/{id}", rt.offerHandler.Delete)
			r.Patch("/{id}/status", rt.offerHandler.UpdateStatus)
			r.Post("/{id}/notes", rt.offerHandler.AddNote)
		})

		// Activity log
		r.Route("/activities", func(r chi.Router) {
			r.Get("/", rt.activityHandler.Feed)
			r.Get("/offer/{referenceNumber}", rt.activityHandler.ListByOffer)
			r.With(rt.authMiddleware.RequireRole(domain.RoleAdmin, domain.RoleZoneManager)).
				Get("/export", rt.activityHandler.Export)
		})

		// Targets
		r.Route("/targets", func(r chi.Router) {
			r.Get("/", rt.targetHandler.List)
			r.Get("/achievement", rt.targetHandler.Achievement)
			r.Group(func(r chi.Router) {
				r.Use(rt.authMiddleware.RequireRole(domain.RoleAdmin, domain.RoleZoneManager))
				r.Post("/", rt.targetHandler.Create)
				r.Put("/{id}", rt.targetHandler.Update)
			})
		})

		// Reports
		r.Get("/reports/dashboard", rt.reportHandler.Dashboard)

		// Reference data
		r.Get("/zones", rt.referenceHandler.ListZones)
		r.Get("/customers", rt.referenceHandler.ListCustomers)
		r.Get("/customers/{id}", rt.referenceHandler.GetCustomer)
		r.Get("/spare-parts", rt.referenceHandler.ListSpareParts)
	})

	return r
}

// databaseHealth is the readiness probe with detailed pool stats
func (rt *Router) databaseHealth(w http.ResponseWriter, r *http.Request) {
	stats, err := database.HealthCheckWithStats(rt.db)
	if err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":  "unhealthy",
			"error":   err.Error(),
			"service": "database",
		})
		return
	}

	writeHealth(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "database",
		"stats": map[string]interface{}{
			"max_open_connections": stats.MaxOpenConnections,
			"open_connections":     stats.OpenConnections,
			"in_use":               stats.InUse,
			"idle":                 stats.Idle,
			"wait_count":           stats.WaitCount,
			"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		},
	})
}

// readiness checks every dependency. Only the database is required; the
// report cache and the data warehouse degrade gracefully.
func (rt *Router) readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	checks := make(map[string]interface{})
	healthy := true

	if err := database.HealthCheck(rt.db); err != nil {
		rt.logger.Error("Database health check failed", zap.Error(err))
		checks["database"] = map[string]interface{}{"status": "unhealthy", "error": err.Error()}
		healthy = false
	} else {
		checks["database"] = map[string]interface{}{"status": "healthy"}
	}

	if rt.cache != nil {
		if err := rt.cache.Set(ctx, "health:probe", []byte("ok"), 10*time.Second); err != nil {
			rt.logger.Warn("Report cache health check failed", zap.Error(err))
			checks["cache"] = map[string]interface{}{"status": "degraded", "error": err.Error()}
		} else {
			checks["cache"] = map[string]interface{}{"status": "healthy"}
		}
	}

	checks["datawarehouse"] = rt.dwClient.HealthCheck(ctx)

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeHealth(w, code, map[string]interface{}{
		"status": status,
		"checks": checks,
	})
}

func writeHealth(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
