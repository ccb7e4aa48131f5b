package middleware

import (
	"net"
	"net/http"
	"strings"

	"github.com/straye-as/offer-pipeline-api/internal/auth"
)

// maxUserAgent bounds what is copied onto activity logs
const maxUserAgent = 500

// ClientInfo copies the caller's IP, user agent and request ID into the
// request context, where the activity recorder picks them up. It must run
// after Logging so the request ID is set.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua := r.UserAgent()
		if len(ua) > maxUserAgent {
			ua = ua[:maxUserAgent]
		}
		info := auth.ClientInfo{
			IPAddress: ClientIP(r),
			UserAgent: ua,
			RequestID: r.Header.Get(RequestIDHeader),
		}
		next.ServeHTTP(w, r.WithContext(auth.WithClientInfo(r.Context(), info)))
	})
}

// ClientIP extracts the client IP, preferring proxy headers
func ClientIP(r *http.Request) string {
	// X-Forwarded-For can contain multiple IPs, take the first one
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.Index(xff, ","); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
