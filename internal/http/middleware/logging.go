package middleware

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/straye-as/offer-pipeline-api/internal/auth"
	applog "github.com/straye-as/offer-pipeline-api/internal/logger"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

type responseWriter struct {
	http.ResponseWriter
	statusCode int
	written    int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.written += int64(n)
	return n, err
}

// Logging middleware logs HTTP requests. An incoming X-Request-ID is kept,
// otherwise a new one is generated and echoed back.
func Logging(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" || len(requestID) > 64 {
				requestID = uuid.New().String()
			}
			r.Header.Set(RequestIDHeader, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start)

			reqLog := applog.WithRequest(logger, r.Method, r.URL.Path, requestID)
			if userCtx, ok := auth.FromContext(r.Context()); ok {
				reqLog = applog.WithUser(reqLog, userCtx.UserID.String(), userCtx.DisplayName)
			}

			fields := []zap.Field{
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status_code", rw.statusCode),
				zap.Int64("response_size", rw.written),
				zap.Duration("duration", duration),
			}

			msg := fmt.Sprintf("%s %-30s -> %3d (%s)",
				r.Method,
				r.URL.Path,
				rw.statusCode,
				duration.Truncate(time.Microsecond),
			)
			switch {
			case rw.statusCode >= 500:
				reqLog.Error(msg, fields...)
			case rw.statusCode >= 400:
				reqLog.Warn(msg, fields...)
			default:
				reqLog.Info(msg, fields...)
			}
		})
	}
}
