package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
)

// Service is the API gateway fronting the identity and custody services.
// It terminates authentication, applies rate limits, and reverse-proxies
// requests to the service owning each route.
type Service struct {
	router         *mux.Router
	server         *http.Server
	rateLimiter    *RateLimiter
	tokenValidator *TokenValidator
	backends       map[string]*backend
	backendsMux    sync.RWMutex
	logger         *logger.Logger
	metrics        *monitoring.MetricsCollector
	startTime      time.Time
}

type backend struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// Config holds the gateway configuration
type Config struct {
	Addr         string
	JWTSecret    string
	RateLimit    int
	RatePeriod   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// routePrefixes maps the first path segment under /api/v1 to the
// backing service responsible for it
var routePrefixes = map[string]string{
	"credentials": "identity",
	"users":       "identity",
	"keys":        "identity",
	"activations": "identity",
	"regions":     "identity",
	"records":     "custody",
	"patients":    "custody",
	"admin":       "custody",
}

// NewService creates a new API gateway
func NewService(cfg *Config, log *logger.Logger, metrics *monitoring.MetricsCollector) *Service {
	s := &Service{
		router:         mux.NewRouter(),
		rateLimiter:    NewRateLimiter(cfg.RateLimit, cfg.RatePeriod),
		tokenValidator: NewTokenValidator(cfg.JWTSecret),
		backends:       make(map[string]*backend),
		logger:         log,
		metrics:        metrics,
		startTime:      time.Now(),
	}

	s.setupRoutes()
	s.setupMiddleware()

	s.server = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// RegisterBackend registers a backing service under a name
func (s *Service) RegisterBackend(name, rawURL string) error {
	target, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid backend URL for %s: %w", name, err)
	}

	s.backendsMux.Lock()
	s.backends[name] = &backend{
		target: target,
		proxy:  httputil.NewSingleHostReverseProxy(target),
	}
	s.backendsMux.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"backend": name,
		"url":     rawURL,
	}).Info("Registered gateway backend")
	return nil
}

// backendForPath resolves which backing service owns a request path
func (s *Service) backendForPath(path string) (*backend, string) {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) < 3 || parts[0] != "api" || parts[1] != "v1" {
		return nil, ""
	}

	name, ok := routePrefixes[parts[2]]
	if !ok {
		return nil, ""
	}

	s.backendsMux.RLock()
	defer s.backendsMux.RUnlock()
	return s.backends[name], name
}

// handleProxy forwards a request to the owning backend
func (s *Service) handleProxy(w http.ResponseWriter, r *http.Request) {
	target, name := s.backendForPath(r.URL.Path)
	if name == "" {
		s.writeError(w, http.StatusNotFound, "no service owns this route")
		return
	}
	if target == nil {
		s.writeError(w, http.StatusBadGateway, fmt.Sprintf("service %s is not registered", name))
		return
	}

	target.proxy.ServeHTTP(w, r)
}

// handleHealth aggregates health across registered backends
func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	type backendHealth struct {
		Name    string `json:"name"`
		Healthy bool   `json:"healthy"`
	}

	s.backendsMux.RLock()
	names := make(map[string]*backend, len(s.backends))
	for name, b := range s.backends {
		names[name] = b
	}
	s.backendsMux.RUnlock()

	client := &http.Client{Timeout: 5 * time.Second}
	healthy := true
	checks := make([]backendHealth, 0, len(names))
	for name, b := range names {
		ok := false
		resp, err := client.Get(b.target.String() + "/health")
		if err == nil {
			ok = resp.StatusCode == http.StatusOK
			resp.Body.Close()
		}
		if !ok {
			healthy = false
		}
		checks = append(checks, backendHealth{Name: name, Healthy: ok})
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"healthy":  healthy,
		"uptime":   time.Since(s.startTime).String(),
		"backends": checks,
	})
}

// Start starts the gateway server
func (s *Service) Start() error {
	s.logger.WithField("addr", s.server.Addr).Info("Starting API gateway")
	return s.server.ListenAndServe()
}

// Stop shuts the gateway down gracefully
func (s *Service) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API gateway")
	return s.server.Shutdown(ctx)
}

func (s *Service) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}
	s.router.PathPrefix("/api/v1/").HandlerFunc(s.handleProxy)
}

func (s *Service) setupMiddleware() {
	s.router.Use(s.corsMiddleware)
	s.router.Use(s.securityHeadersMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.authMiddleware)
	s.router.Use(s.rateLimitMiddleware)
}

func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
