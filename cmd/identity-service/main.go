package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"

	"github.com/medichain/ssi-custody/internal/identity"
	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/database"
	"github.com/medichain/ssi-custody/pkg/encryption"
	"github.com/medichain/ssi-custody/pkg/keys"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
	"github.com/medichain/ssi-custody/pkg/repository"
	"github.com/medichain/ssi-custody/pkg/storage"
)

const serviceName = "identity-service"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("service", serviceName).Info("Starting identity service")

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.CreateSchema(context.Background()); err != nil {
		log.WithError(err).Fatal("Failed to initialize database schema")
	}

	// Initialize signing keys
	signer, err := keys.NewManager(&cfg.SSI, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize signing keys")
	}
	log.WithField("key_id", signer.KeyID()).Info("Signing keys ready")

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

	// Initialize the identity service
	credentialRepo := repository.NewCredentialRepository(db.DB, log)
	service := identity.NewService(credentialRepo, signer, contentStore, cfg.SSI.WebDomain, cfg.SSI.DefaultRegion, log, metrics)
	gate := identity.NewActivationGate(service, &cfg.JWT, log)
	handlers := identity.NewHandlers(service, gate, log)

	// Health checks
	health := monitoring.NewHealthManager(serviceName, "1.0.0")
	health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

	// Setup HTTP router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.RegisterRoutes(router)

	router.GET(cfg.Monitoring.HealthPath, gin.WrapF(health.HTTPHandler()))
	if metrics != nil {
		router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(metrics.Handler()))
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

	// Start server in goroutine
	go func() {
		log.WithField("addr", server.Addr).Info("Identity service listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down identity service")

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

	log.Info("Identity service stopped")
}
