package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medichain/ssi-custody/internal/gateway"
	"github.com/medichain/ssi-custody/pkg/config"
	"github.com/medichain/ssi-custody/pkg/logger"
	"github.com/medichain/ssi-custody/pkg/monitoring"
)

const serviceName = "api-gateway"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("service", serviceName).Info("Starting API gateway")

	var metrics *monitoring.MetricsCollector
	if cfg.Monitoring.Enabled {
		metrics = monitoring.NewMetricsCollector(serviceName)
	}

	service := gateway.NewService(&gateway.Config{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		JWTSecret:    cfg.JWT.SecretKey,
		RateLimit:    cfg.RateLimit.Requests,
		RatePeriod:   time.Duration(cfg.RateLimit.Period) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}, log, metrics)

	identityURL := envOr("IDENTITY_SERVICE_URL", "http://localhost:8081")
	custodyURL := envOr("CUSTODY_SERVICE_URL", "http://localhost:8082")
	if err := service.RegisterBackend("identity", identityURL); err != nil {
		log.WithError(err).Fatal("Failed to register identity backend")
	}
	if err := service.RegisterBackend("custody", custodyURL); err != nil {
		log.WithError(err).Fatal("Failed to register custody backend")
	}

	// Start server in goroutine
	go func() {
		if err := service.Start(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start API gateway")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down API gateway")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := service.Stop(ctx); err != nil {
		log.WithError(err).Error("Failed to shutdown gateway gracefully")
	}

	log.Info("API gateway stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
