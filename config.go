package ingest

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Drivers accepted by Config.StoreDriver.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverBun      = "bun"
	DriverSQLite   = "sqlite"
	DriverMongo    = "mongo"
)

var validDrivers = map[string]bool{
	DriverMemory:   true,
	DriverPostgres: true,
	DriverBun:      true,
	DriverSQLite:   true,
	DriverMongo:    true,
}

// Config holds configuration for the ingest core and its HTTP surface.
type Config struct {
	// ListenAddr is the bind address for the operator API.
	ListenAddr string

	// APIKeys are the operator keys accepted by the API. At least one is
	// required to serve.
	APIKeys []string

	// StoreDriver selects the persistence backend: memory, postgres,
	// bun, sqlite or mongo.
	StoreDriver string

	// StoreDSN is the backend connection string (file path for sqlite).
	StoreDSN string

	// TriggerURL is the external processing worker endpoint.
	TriggerURL string

	// TriggerToken is the bearer token sent on trigger calls.
	TriggerToken string

	// TriggerTimeout bounds a single trigger HTTP call.
	TriggerTimeout time.Duration

	// TriggerRPS caps outbound trigger calls per second. Zero disables
	// the limiter.
	TriggerRPS float64

	// BulkRetryLimit caps how many jobs a bulk retry fetches per status.
	BulkRetryLimit int

	// DefaultMaxAttempts is the attempt ceiling stamped on new jobs.
	DefaultMaxAttempts int

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:         ":8080",
		StoreDriver:        DriverMemory,
		TriggerTimeout:     30 * time.Second,
		BulkRetryLimit:     1000,
		DefaultMaxAttempts: 3,
		ShutdownTimeout:    30 * time.Second,
	}
}

// LoadConfig builds a Config from INGESTD_* environment variables on top
// of DefaultConfig. It reports syntax errors (bad numbers, unknown
// driver); call Validate before serving to enforce required fields.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	cfg.ListenAddr = getEnv("INGESTD_LISTEN_ADDR", cfg.ListenAddr)
	cfg.StoreDriver = getEnv("INGESTD_STORE_DRIVER", cfg.StoreDriver)
	cfg.StoreDSN = getEnv("INGESTD_STORE_DSN", cfg.StoreDSN)
	cfg.TriggerURL = getEnv("INGESTD_TRIGGER_URL", cfg.TriggerURL)
	cfg.TriggerToken = getEnv("INGESTD_TRIGGER_TOKEN", cfg.TriggerToken)

	for _, k := range strings.Split(getEnv("INGESTD_API_KEYS", ""), ",") {
		if k = strings.TrimSpace(k); k != "" {
			cfg.APIKeys = append(cfg.APIKeys, k)
		}
	}

	if !validDrivers[cfg.StoreDriver] {
		return cfg, fmt.Errorf("ingest: INGESTD_STORE_DRIVER %q must be one of: memory, postgres, bun, sqlite, mongo", cfg.StoreDriver)
	}

	var err error
	if cfg.TriggerTimeout, err = getEnvDuration("INGESTD_TRIGGER_TIMEOUT", cfg.TriggerTimeout); err != nil {
		return cfg, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("INGESTD_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout); err != nil {
		return cfg, err
	}
	if cfg.TriggerRPS, err = getEnvFloat("INGESTD_TRIGGER_RPS", cfg.TriggerRPS); err != nil {
		return cfg, err
	}
	if cfg.BulkRetryLimit, err = getEnvInt("INGESTD_BULK_RETRY_LIMIT", cfg.BulkRetryLimit); err != nil {
		return cfg, err
	}
	if cfg.DefaultMaxAttempts, err = getEnvInt("INGESTD_DEFAULT_MAX_ATTEMPTS", cfg.DefaultMaxAttempts); err != nil {
		return cfg, err
	}

	if cfg.BulkRetryLimit < 1 {
		return cfg, errors.New("ingest: INGESTD_BULK_RETRY_LIMIT must be > 0")
	}
	if cfg.DefaultMaxAttempts < 1 {
		return cfg, errors.New("ingest: INGESTD_DEFAULT_MAX_ATTEMPTS must be > 0")
	}

	return cfg, nil
}

// Validate enforces the fields required to serve the operator API and
// reach the worker. Commands that only touch the store (migrate, stats)
// skip it.
func (c Config) Validate() error {
	if len(c.APIKeys) == 0 {
		return errors.New("ingest: INGESTD_API_KEYS must not be empty")
	}
	if c.TriggerURL == "" {
		return errors.New("ingest: INGESTD_TRIGGER_URL must not be empty")
	}
	if c.StoreDriver != DriverMemory && c.StoreDSN == "" {
		return fmt.Errorf("ingest: INGESTD_STORE_DSN required for driver %q", c.StoreDriver)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("ingest: %s: invalid integer %q", key, v)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("ingest: %s: invalid number %q", key, v)
	}
	return f, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("ingest: %s: invalid duration %q", key, v)
	}
	return d, nil
}
