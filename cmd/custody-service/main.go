package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"

	"github.com/medichain/ssi-custody/internal/custody"
	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/database"
	"github.com/medichain/ssi-custody/pkg/encryption"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
	"github.com/medichain/ssi-custody/pkg/repository"
	"github.com/medichain/ssi-custody/pkg/storage"
)

const (
	serviceName = "custody-service"

	// Pending anchors are retried on this cadence
	anchorRetryInterval = 5 * time.Minute
	anchorRetryBatch    = 50
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("service", serviceName).Info("Starting custody service")

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.CreateSchema(context.Background()); err != nil {
		log.WithError(err).Fatal("Failed to initialize database schema")
	}

	// Initialize encryption and content storage
	encryptor, err := encryption.NewService(cfg.Encryption.Secret)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize encryption service")
	}
	contentStore := storage.NewGateway(&cfg.Storage, encryptor, log)

	// Initialize monitoring
	var metrics *monitoring.MetricsCollector
	if cfg.Monitoring.Enabled {
		metrics = monitoring.NewMetricsCollector(serviceName)
	}

	var tracing *monitoring.TracingManager
	if cfg.Monitoring.TracingEnabled {
		tracing, err = monitoring.NewTracingManager(&monitoring.TracingConfig{
			ServiceName:    serviceName,
			ServiceVersion: "1.0.0",
			JaegerEndpoint: cfg.Monitoring.JaegerEndpoint,
			SamplingRate:   cfg.Monitoring.SamplingRate,
		})
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize tracing")
		}
	}

	// Initialize the chain ledger client
	var backend custody.ContractBackend
	if cfg.Chain.Simulate {
		log.Warn("Chain simulation enabled, transactions are not anchored on a real network")
		backend = custody.NewSimBackend(log)
	} else {
		backend = custody.NewRPCBackend(&cfg.Chain, log)
	}
	ledger := custody.NewChainClient(backend, &cfg.Chain, log, metrics)

	// Initialize the custody service
	recordRepo := repository.NewRecordRepository(db.DB, log)
	accessLogRepo := repository.NewAccessLogRepository(db.DB, log)
	service := custody.NewService(recordRepo, accessLogRepo, contentStore, ledger, log, metrics)
	handlers := custody.NewHandlers(service, log)

	// Health checks
	health := monitoring.NewHealthManager(serviceName, "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))
	health.RegisterChecker("storage", monitoring.NewCustomHealthChecker(func(ctx context.Context) monitoring.HealthCheck {
		check := monitoring.HealthCheck{Name: "storage", LastChecked: time.Now()}
		if err := contentStore.Health(ctx); err != nil {
			check.Status = monitoring.HealthStatusUnhealthy
			check.Message = err.Error()
			return check
		}
		check.Status = monitoring.HealthStatusHealthy
		return check
	}))

	// Setup HTTP router
	router := mux.NewRouter()
	apiRouter := router.PathPrefix("/api/v1").Subrouter()
	handlers.RegisterRoutes(apiRouter)

	router.HandleFunc(cfg.Monitoring.HealthPath, health.HTTPHandler()).Methods("GET")
	if metrics != nil {
		router.Handle(cfg.Monitoring.MetricsPath, metrics.Handler()).Methods("GET")
	}

	var handler http.Handler = router
	if metrics != nil {
		handler = metrics.HTTPMiddleware(handler)
	}
	if tracing != nil {
		handler = tracing.HTTPMiddleware(handler)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Retry pending blockchain anchors in the background
	retryCtx, stopRetry := context.WithCancel(context.Background())
	go retryPendingAnchors(retryCtx, service, log)

	// Start server in goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("Custody service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down custody service")
	stopRetry()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Failed to shutdown server gracefully")
	}
	if tracing != nil {
		if err := tracing.Shutdown(ctx); err != nil {
			log.WithError(err).Error("Failed to shutdown tracing")
		}
	}

	log.Info("Custody service stopped")
}

// retryPendingAnchors periodically re-submits records whose blockchain
// storage is still pending
func retryPendingAnchors(ctx context.Context, service *custody.Service, log *logger.Logger) {
	ticker := time.NewTicker(anchorRetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			anchored, err := service.RetryBlockchainStorage(ctx, anchorRetryBatch)
			if err != nil {
				log.WithError(err).Error("Pending anchor retry failed")
				continue
			}
			if anchored > 0 {
				log.WithField("anchored", anchored).Info("Re-anchored pending records")
			}
		}
	}
}
