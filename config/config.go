// config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is everything the indexer reads from the environment.
type Config struct {
	HTTPAddr       string   `env:"HTTP_ADDR" envDefault:":5300"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	AdminToken     string   `env:"ADMIN_TOKEN"`

	// DatabaseURL is a postgres DSN, or "sqlite:<path>". Empty keeps the projection in memory.
	DatabaseURL string `env:"DATABASE_URL"`

	RPCURL           string        `env:"RPC_URL"`
	ContractAddress  string        `env:"CONTRACT_ADDRESS"`
	Network          string        `env:"NETWORK" envDefault:"localhost"`
	StartBlock       int64         `env:"START_BLOCK" envDefault:"0"`
	Confirmations    int64         `env:"CONFIRMATIONS" envDefault:"0"`
	BatchSize        int64         `env:"BATCH_SIZE" envDefault:"2000"`
	PollInterval     time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	SkipUndecodable  bool          `env:"SKIP_UNDECODABLE" envDefault:"true"`
	InitialHealth    int64         `env:"INITIAL_HEALTH" envDefault:"100"`
	CurseInterval    int64         `env:"CURSE_INTERVAL" envDefault:"10"`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"10m"`
	// SnapshotDir writes snapshots to a local directory when no R2 bucket is configured.
	SnapshotDir string `env:"SNAPSHOT_DIR"`

	R2 R2Config `envPrefix:"R2_"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// R2Config points snapshot exports at a Cloudflare R2 (S3 compatible) bucket.
type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET_NAME"`
	Endpoint        string `env:"ENDPOINT"`
}

// Enabled reports whether snapshot uploads are configured.
func (c R2Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKeyID != ""
}

// Load reads an optional .env file, then parses the environment.
func Load(files ...string) (Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load(files...)
	return Parse()
}

// Parse reads the environment without touching .env files.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.ContractAddress = strings.ToLower(strings.TrimSpace(cfg.ContractAddress))
	return cfg, nil
}

// Validate reports every setting that makes the indexer unable to run.
func (c Config) Validate() error {
	var errs []error
	if c.RPCURL == "" {
		errs = append(errs, errors.New("RPC_URL is required"))
	}
	if c.ContractAddress == "" {
		errs = append(errs, errors.New("CONTRACT_ADDRESS is required"))
	}
	if c.BatchSize <= 0 {
		errs = append(errs, fmt.Errorf("BATCH_SIZE must be positive, got %d", c.BatchSize))
	}
	if c.Confirmations < 0 {
		errs = append(errs, fmt.Errorf("CONFIRMATIONS must not be negative, got %d", c.Confirmations))
	}
	if c.StartBlock < 0 {
		errs = append(errs, fmt.Errorf("START_BLOCK must not be negative, got %d", c.StartBlock))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("POLL_INTERVAL must be positive"))
	}
	return errors.Join(errs...)
}

// SQLitePath returns the path of a "sqlite:" DATABASE_URL.
func (c Config) SQLitePath() (string, bool) {
	path, ok := strings.CutPrefix(c.DatabaseURL, "sqlite:")
	return path, ok
}
