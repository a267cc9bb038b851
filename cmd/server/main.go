package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/example/parking-api/internal/booking"
	"github.com/example/parking-api/internal/cache"
	"github.com/example/parking-api/internal/config"
	httpapi "github.com/example/parking-api/internal/http"
	"github.com/example/parking-api/internal/ingest"
	"github.com/example/parking-api/internal/logging"
	"github.com/example/parking-api/internal/models"
	"github.com/example/parking-api/internal/payments"
	"github.com/example/parking-api/internal/status"
	"github.com/example/parking-api/internal/storage"
	"github.com/example/parking-api/internal/telemetry"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	// Relational shards, or in-memory stores when no DSNs are configured
	// (local development and integration harnesses).
	var lots storage.LotStore
	var bookings storage.BookingStore
	if cfg.LotsDSN != "" {
		shards, err := storage.OpenShards(cfg.LotsDSN, cfg.BookingsDSN)
		if err != nil {
			logger.Error("shard connect failed", "error", err)
			os.Exit(1)
		}
		defer shards.Close()
		if cfg.RunMigrations {
			applyMigrations(shards, logger)
		}
		lots = storage.NewPostgresLotStore(shards.Lots())
		bookings = storage.NewPostgresBookingStore(shards.Bookings())
		logger.Info("connected to relational shards")
	} else {
		logger.Warn("no shard DSNs configured, using in-memory stores")
		mem := storage.NewMemoryLotStore()
		mem.SeedLot(models.ParkingLot{ID: 1, Lat: 59.9343, Lon: 30.3351, Capacity: 10, HourlyRate: 2.50}, 10)
		mem.SeedLot(models.ParkingLot{ID: 2, Lat: 59.9600, Lon: 30.3200, Capacity: 6, HourlyRate: 1.75}, 6)
		lots = mem
		bookings = storage.NewMemoryBookingStore()
	}

	var store cache.Cache
	if cfg.RedisAddr != "" {
		store = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.DefaultTTL)
		logger.Info("using redis cache", "addr", cfg.RedisAddr)
	} else {
		store = cache.NewMemoryCache(cfg.DefaultTTL)
		logger.Warn("no REDIS_ADDR configured, using in-process cache")
	}

	var reader *telemetry.Reader
	var writer *telemetry.Writer
	if cfg.InfluxURL != "" {
		reader = telemetry.NewReader(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, logger.With("component", "telemetry"))
		writer = telemetry.NewWriter(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, logger.With("component", "telemetry"))
	} else {
		logger.Warn("no INFLUX_URL configured, status served from relational fallback")
	}

	var producer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	coordinator := &booking.Coordinator{
		Bookings: bookings,
		Lots:     lots,
		Cache:    store,
		Logger:   logger.With("component", "booking"),
		SpotTTL:  cfg.SpotTTL,
	}
	if producer != nil {
		coordinator.Events = producer
	}

	aggregator := &status.Aggregator{
		Lots:      lots,
		Cache:     store,
		Logger:    logger.With("component", "status"),
		StatusTTL: cfg.StatusTTL,
		LotTTL:    cfg.LotTTL,
	}
	if reader != nil {
		aggregator.Telemetry = reader
	}
	if writer != nil {
		aggregator.Metrics = writer
	}

	srv := httpapi.NewServer(aggregator, coordinator, bookings, lots, logger)
	srv.ConfirmationCode = cfg.ConfirmationCode
	srv.Metrics = writer
	if os.Getenv("STRIPE_API_KEY") != "" {
		srv.Payments = payments.NewStripeClient()
	}

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		logger.Info("parking-api listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
	}
	logger.Info("server stopped")
}

// applyMigrations runs each shard's schema file. Failures are logged, not
// fatal: the schema may already exist with older constraint names.
func applyMigrations(shards *storage.Shards, logger *slog.Logger) {
	targets := []struct {
		db   *sql.DB
		file string
	}{
		{shards.Lots(), "001_lots_shard.sql"},
		{shards.Bookings(), "002_bookings_shard.sql"},
	}
	for _, t := range targets {
		b, err := os.ReadFile(filepath.Join("migrations", t.file))
		if err != nil {
			logger.Error("migration read failed", "file", t.file, "error", err)
			continue
		}
		if _, err := t.db.Exec(string(b)); err != nil {
			logger.Error("migration exec failed", "file", t.file, "error", err)
			continue
		}
		logger.Info("migration applied", "file", t.file)
	}
}
