package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	"github.com/straye-as/offer-pipeline-api/internal/config"
	"github.com/straye-as/offer-pipeline-api/internal/domain"
	"github.com/straye-as/offer-pipeline-api/internal/http/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestClientInfo(t *testing.T) {
	var got auth.ClientInfo
	handler := middleware.Logging(zap.NewNop())(middleware.ClientInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.ClientInfoFromContext(r.Context())
	})))

	t.Run("forwarded address and fresh request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/v1/offers/1", nil)
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		req.Header.Set("User-Agent", "pipeline-ui/2.1")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, "203.0.113.7", got.IPAddress)
		assert.Equal(t, "pipeline-ui/2.1", got.UserAgent)
		_, err := uuid.Parse(got.RequestID)
		require.NoError(t, err)
		assert.Equal(t, got.RequestID, rr.Header().Get(middleware.RequestIDHeader))
	})

	t.Run("incoming request id is kept", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
		req.RemoteAddr = "198.51.100.2:5555"
		req.Header.Set(middleware.RequestIDHeader, "req-42")
		handler.ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "198.51.100.2", got.IPAddress)
		assert.Equal(t, "req-42", got.RequestID)
	})
}

func TestRecovery(t *testing.T) {
	handler := middleware.Recovery(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"type":"internal_error","title":"Internal Server Error","status":500,"message":"An unexpected error occurred"}`, rr.Body.String())
}

func TestTracingAndMetrics_PassThrough(t *testing.T) {
	r := chi.NewRouter()
	r.Use(middleware.Tracing, middleware.Metrics)
	r.Get("/offers/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/offers/abc", nil))
	assert.Equal(t, http.StatusTeapot, rr.Code)
}

func TestSecurityHeaders_NoStoreOnAPI(t *testing.T) {
	handler := middleware.SecurityHeaders(&config.SecurityConfig{ContentTypeNosniff: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil))
	assert.Equal(t, "no-store", rr.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Empty(t, rr.Header().Get("Cache-Control"))
}

func TestRateLimiter(t *testing.T) {
	newLimited := func(cfg *config.RateLimitConfig) (http.Handler, *int) {
		calls := 0
		rl := middleware.NewRateLimiter(cfg, zap.NewNop())
		return rl.Limit(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
		})), &calls
	}

	t.Run("limits by ip", func(t *testing.T) {
		handler, calls := newLimited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, RequestsPerMinuteAuth: 100})
		var last int
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
			req.RemoteAddr = "192.0.2.1:1000"
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			last = rr.Code
		}
		assert.Equal(t, http.StatusTooManyRequests, last)
		assert.Equal(t, 2, *calls)
	})

	t.Run("authenticated users get their own budget", func(t *testing.T) {
		handler, calls := newLimited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, RequestsPerMinuteAuth: 5})
		user := &auth.UserContext{UserID: uuid.New(), Role: domain.RoleZoneUser}
		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
			req.RemoteAddr = "192.0.2.2:1000"
			req = req.WithContext(auth.WithUserContext(req.Context(), user))
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			require.Equal(t, http.StatusOK, rr.Code)
		}
		assert.Equal(t, 5, *calls)
	})

	t.Run("whitelisted paths skip the limiter", func(t *testing.T) {
		handler, calls := newLimited(&config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, WhitelistPaths: []string{"/health/*"}})
		for i := 0; i < 3; i++ {
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		}
		assert.Equal(t, 3, *calls)
	})
}

func TestCORS(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	cfg := &config.CORSConfig{
		AllowedOrigins: []string{"https://pipeline.example.com"},
		AllowedMethods: []string{"GET", "PATCH"},
		ExposedHeaders: []string{"Location"},
	}

	t.Run("request id and export headers are always exposed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/activities/export", nil)
		req.Header.Set("Origin", "https://pipeline.example.com")
		rr := httptest.NewRecorder()
		middleware.CORS(cfg, "production", zap.NewNop())(ok).ServeHTTP(rr, req)

		assert.Equal(t, "https://pipeline.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
		exposed := strings.ToLower(rr.Header().Get("Access-Control-Expose-Headers"))
		for _, h := range []string{"location", "content-disposition", "x-request-id"} {
			assert.Contains(t, exposed, h)
		}
	})

	t.Run("unlisted origin is refused", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		rr := httptest.NewRecorder()
		middleware.CORS(cfg, "production", zap.NewNop())(ok).ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("production without origins denies all", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/offers", nil)
		req.Header.Set("Origin", "https://pipeline.example.com")
		rr := httptest.NewRecorder()
		middleware.CORS(&config.CORSConfig{}, "production", zap.NewNop())(ok).ServeHTTP(rr, req)

		assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
	})
}
