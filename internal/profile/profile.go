package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory; reference images are stored below it
	Data string
	// DSN points to where stockwear stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// Recognition Configuration
	EmbeddingProvider     string        // STOCKWEAR_EMBEDDING_PROVIDER (default: auto from URL)
	EmbeddingServiceURL   string        // STOCKWEAR_EMBEDDING_SERVICE_URL
	EmbeddingServiceToken string        // STOCKWEAR_EMBEDDING_SERVICE_TOKEN
	EmbeddingTimeout      time.Duration // STOCKWEAR_EMBEDDING_TIMEOUT (default: 30s)
	SimilarityThreshold   float64       // STOCKWEAR_SIMILARITY_THRESHOLD (default: 0.82)
	CatalogCacheTTL       time.Duration // STOCKWEAR_CATALOG_CACHE_TTL (default: 60s)

	// Background embedding runner
	RunnerEnabled   bool          // STOCKWEAR_RUNNER_ENABLED (default: true)
	RunnerInterval  time.Duration // STOCKWEAR_RUNNER_INTERVAL (default: 2m)
	RunnerBatchSize int           // STOCKWEAR_RUNNER_BATCH_SIZE (default: 8)

	// Per-tenant rate limit for recognition requests
	RateLimitPerSecond float64 // STOCKWEAR_RATE_LIMIT_RPS (default: 10)
	RateLimitBurst     int     // STOCKWEAR_RATE_LIMIT_BURST (default: 20)
}

const (
	defaultSimilarityThreshold = 0.82
	defaultCatalogCacheTTL     = 60 * time.Second
	defaultEmbeddingTimeout    = 30 * time.Second
	defaultRunnerInterval      = 2 * time.Minute
	defaultRunnerBatchSize     = 8
	defaultRateLimitPerSecond  = 10
	defaultRateLimitBurst      = 20
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsEmbeddingEnabled returns true if an embedding producer is reachable.
func (p *Profile) IsEmbeddingEnabled() bool {
	return p.EmbeddingProvider != "disabled" && p.EmbeddingServiceURL != ""
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		slog.Warn("invalid float environment variable, using default", "key", key, "value", raw)
		return defaultValue
	}
	return value
}

func getIntEnv(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid int environment variable, using default", "key", key, "value", raw)
		return defaultValue
	}
	return value
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration environment variable, using default", "key", key, "value", raw)
		return defaultValue
	}
	return value
}

// FromEnv loads recognition configuration from STOCKWEAR_* environment variables.
func (p *Profile) FromEnv() {
	p.EmbeddingProvider = os.Getenv("STOCKWEAR_EMBEDDING_PROVIDER")
	p.EmbeddingServiceURL = os.Getenv("STOCKWEAR_EMBEDDING_SERVICE_URL")
	p.EmbeddingServiceToken = os.Getenv("STOCKWEAR_EMBEDDING_SERVICE_TOKEN")
	p.EmbeddingTimeout = getDurationEnv("STOCKWEAR_EMBEDDING_TIMEOUT", defaultEmbeddingTimeout)
	p.SimilarityThreshold = getFloatEnv("STOCKWEAR_SIMILARITY_THRESHOLD", defaultSimilarityThreshold)
	p.CatalogCacheTTL = getDurationEnv("STOCKWEAR_CATALOG_CACHE_TTL", defaultCatalogCacheTTL)

	p.RunnerEnabled = getEnvOrDefault("STOCKWEAR_RUNNER_ENABLED", "true") == "true"
	p.RunnerInterval = getDurationEnv("STOCKWEAR_RUNNER_INTERVAL", defaultRunnerInterval)
	p.RunnerBatchSize = getIntEnv("STOCKWEAR_RUNNER_BATCH_SIZE", defaultRunnerBatchSize)

	p.RateLimitPerSecond = getFloatEnv("STOCKWEAR_RATE_LIMIT_RPS", defaultRateLimitPerSecond)
	p.RateLimitBurst = getIntEnv("STOCKWEAR_RATE_LIMIT_BURST", defaultRateLimitBurst)
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "stockwear")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/stockwear"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("stockwear_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}

	if p.SimilarityThreshold < 0 || p.SimilarityThreshold > 1 {
		return errors.Errorf("similarity threshold must be within [0, 1], got %v", p.SimilarityThreshold)
	}
	if p.CatalogCacheTTL <= 0 {
		p.CatalogCacheTTL = defaultCatalogCacheTTL
	}
	if p.RunnerBatchSize <= 0 {
		p.RunnerBatchSize = defaultRunnerBatchSize
	}
	if p.RunnerInterval <= 0 {
		p.RunnerInterval = defaultRunnerInterval
	}

	return nil
}
