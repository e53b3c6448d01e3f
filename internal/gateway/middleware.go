package gateway

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// publicPath reports whether a request may pass without an activation
// token. Credential submission and account activation necessarily happen
// before a user holds a token.
func publicPath(r *http.Request) bool {
	if r.Method == http.MethodOptions {
		return true
	}
	switch r.URL.Path {
	case "/health", "/metrics":
		return true
	}
	if r.Method == http.MethodPost && r.URL.Path == "/api/v1/credentials" {
		return true
	}
	if r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/v1/users/") &&
		strings.HasSuffix(r.URL.Path, "/activate") {
		return true
	}
	if r.URL.Path == "/api/v1/activations/validate" {
		return true
	}
	// Region policies are public reference data
	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/v1/regions") {
		return true
	}
	return false
}

// authMiddleware validates activation tokens and forwards the caller's
// identity to the backing service
func (s *Service) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Identity headers are set by the gateway, never by the caller
		r.Header.Del("X-User-ID")
		r.Header.Del("X-User-Role")

		if publicPath(r) {
			next.ServeHTTP(w, r)
			return
		}

		token := r.Header.Get("Authorization")
		if strings.HasPrefix(token, "Bearer ") {
			token = token[7:]
		}
		if token == "" {
			s.writeError(w, http.StatusUnauthorized, "activation token required")
			return
		}

		claims, err := s.tokenValidator.Validate(token)
		if err != nil {
			s.logger.WithError(err).Warn("Rejected request with invalid token")
			s.writeError(w, http.StatusUnauthorized, "invalid activation token")
			return
		}

		// The gateway is the trust boundary for these headers
		r.Header.Set("X-User-ID", claims.Subject)
		r.Header.Set("X-User-Role", claims.Role)

		next.ServeHTTP(w, r)
	})
}

// rateLimitMiddleware throttles by user when authenticated, by remote
// address otherwise
func (s *Service) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get("X-User-ID")
		if key == "" {
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				key = host
			} else {
				key = r.RemoteAddr
			}
		}

		if !s.rateLimiter.Allow(key) {
			remaining, limit := s.rateLimiter.Limits(key)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			s.writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs each proxied request
func (s *Service) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &statusWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		s.logger.WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapper.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"remote_addr": r.RemoteAddr,
		}).Info("Gateway request")

		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(r.Method, r.URL.Path,
				strconv.Itoa(wrapper.statusCode), time.Since(start))
		}
	})
}

// corsMiddleware handles CORS headers
func (s *Service) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Wallet-Address")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// securityHeadersMiddleware sets baseline security headers
func (s *Service) securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")

		next.ServeHTTP(w, r)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code
type statusWriter struct {
	http.ResponseWriter
	statusCode int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.statusCode = code
	sw.ResponseWriter.WriteHeader(code)
}
