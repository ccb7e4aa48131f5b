package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"go.uber.org/zap"
)

// Headers the offer endpoints read or write. They are merged into the
// configured lists so an override cannot hide them from browser clients.
var (
	requiredAllowedHeaders = []string{"Authorization", "Content-Type", "X-API-Key", RequestIDHeader}
	requiredExposedHeaders = []string{"Location", "Content-Disposition", "Retry-After", RequestIDHeader}
)

// CORS returns a CORS middleware configured from the application config.
// Without configured origins, development allows every origin and other
// environments deny cross-origin requests.
func CORS(cfg *config.CORSConfig, environment string, logger *zap.Logger) func(http.Handler) http.Handler {
	options := cors.Options{
		AllowedMethods:   cfg.AllowedMethods,
		AllowedHeaders:   mergeHeaders(cfg.AllowedHeaders, requiredAllowedHeaders),
		ExposedHeaders:   mergeHeaders(cfg.ExposedHeaders, requiredExposedHeaders),
		AllowCredentials: cfg.AllowCredentials,
		MaxAge:           cfg.MaxAge,
	}

	development := environment == "development" || environment == "local" || environment == ""
	anyOrigin := func(r *http.Request, origin string) bool { return origin != "" }

	switch {
	case containsHeader(cfg.AllowedOrigins, "*"):
		if !development {
			logger.Warn("CORS configured with wildcard origin in non-development environment",
				zap.String("environment", environment))
		}
		options.AllowOriginFunc = anyOrigin
	case len(cfg.AllowedOrigins) > 0:
		options.AllowedOrigins = cfg.AllowedOrigins
		logger.Info("CORS configured with explicit origins",
			zap.Strings("origins", cfg.AllowedOrigins))
	case development:
		options.AllowOriginFunc = anyOrigin
		logger.Info("CORS configured to allow all origins in development mode")
	default:
		// an empty AllowedOrigins means "*" to go-chi/cors
		options.AllowOriginFunc = func(r *http.Request, origin string) bool { return false }
		logger.Warn("CORS configured with no allowed origins - all cross-origin requests will be denied",
			zap.String("environment", environment))
	}

	return cors.Handler(options)
}

// mergeHeaders appends the required headers missing from configured,
// comparing case-insensitively
func mergeHeaders(configured, required []string) []string {
	out := append([]string(nil), configured...)
	for _, h := range required {
		if !containsHeader(out, h) {
			out = append(out, h)
		}
	}
	return out
}

func containsHeader(list []string, h string) bool {
	for _, v := range list {
		if strings.EqualFold(strings.TrimSpace(v), h) {
			return true
		}
	}
	return false
}
