package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig captures all tunable parameters for the HTTP API process.
// Values are primarily loaded from environment variables with sane defaults
// so the binary can run locally without excessive setup.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Two logical shards: lot/spot geometry and bookings. Either may be
	// empty, in which case the server runs on in-memory stores.
	LotsDSN     string
	BookingsDSN string

	RedisAddr     string
	RedisPassword string

	InfluxURL    string
	InfluxToken  string
	InfluxOrg    string
	InfluxBucket string

	KafkaBrokers []string
	KafkaTopic   string

	// TTLs per data class. Status changes on every booking; geometry is
	// near-static.
	StatusTTL  time.Duration
	LotTTL     time.Duration
	SpotTTL    time.Duration
	DefaultTTL time.Duration

	// Required query parameter for destructive bulk operations.
	ConfirmationCode string

	LogLevel      string
	RunMigrations bool
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:         ":8080",
		ReadTimeout:      5 * time.Second,
		WriteTimeout:     10 * time.Second,
		IdleTimeout:      120 * time.Second,
		ShutdownTimeout:  15 * time.Second,
		InfluxOrg:        "iot_org",
		InfluxBucket:     "iot_bucket",
		KafkaTopic:       "booking-events",
		StatusTTL:        30 * time.Second,
		LotTTL:           30 * time.Minute,
		SpotTTL:          60 * time.Second,
		DefaultTTL:       5 * time.Minute,
		ConfirmationCode: "DELETE_ALL_BOOKINGS",
		LogLevel:         "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)

	cfg.LotsDSN = os.Getenv("PG_LOTS_DSN")
	cfg.BookingsDSN = os.Getenv("PG_BOOKINGS_DSN")

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")

	cfg.InfluxURL = strings.TrimSpace(os.Getenv("INFLUX_URL"))
	cfg.InfluxToken = os.Getenv("INFLUX_TOKEN")
	setStringFromEnv(&cfg.InfluxOrg, "INFLUX_ORG")
	setStringFromEnv(&cfg.InfluxBucket, "INFLUX_BUCKET")

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	setDurationFromEnv(&cfg.StatusTTL, "CACHE_STATUS_TTL", &errs)
	setDurationFromEnv(&cfg.LotTTL, "CACHE_LOT_TTL", &errs)
	setDurationFromEnv(&cfg.SpotTTL, "CACHE_SPOT_TTL", &errs)
	setDurationFromEnv(&cfg.DefaultTTL, "CACHE_DEFAULT_TTL", &errs)

	setStringFromEnv(&cfg.ConfirmationCode, "CONFIRMATION_CODE")

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	if cfg.StatusTTL <= 0 {
		errs = append(errs, fmt.Errorf("CACHE_STATUS_TTL must be > 0"))
	}
	if cfg.ConfirmationCode == "" {
		errs = append(errs, fmt.Errorf("CONFIRMATION_CODE must not be empty"))
	}
	if (cfg.LotsDSN == "") != (cfg.BookingsDSN == "") {
		errs = append(errs, fmt.Errorf("PG_LOTS_DSN and PG_BOOKINGS_DSN must be set together"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
