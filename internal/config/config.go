package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env         string `yaml:"env"`
	ListenAddr  string `yaml:"listen-addr"`
	DatabaseURL string `yaml:"database-url"`
	Migrate     bool   `yaml:"migrate"`

	// Bake workers
	BakeWorkers      int           `yaml:"bake-workers"`
	BakePollInterval time.Duration `yaml:"bake-poll-interval"`
	RenderDPI        int           `yaml:"render-dpi"`

	// HTTP limits
	MaxConnections int   `yaml:"max-connections"`
	MaxUploadBytes int64 `yaml:"max-upload-bytes"`

	SaveRetries int `yaml:"save-retries"`

	// Artifact storage; an empty bucket keeps artifacts in memory, which
	// is only allowed without a database.
	ArtifactBucket    string        `yaml:"artifact-bucket"`
	ArtifactEndpoint  string        `yaml:"artifact-endpoint"`
	ArtifactRegion    string        `yaml:"artifact-region"`
	ArtifactAccessKey string        `yaml:"artifact-access-key"`
	ArtifactSecretKey string        `yaml:"artifact-secret-key"`
	ArtifactURLTTL    time.Duration `yaml:"artifact-url-ttl"`
}

// ConfigError names the offending setting.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func defaults() Config {
	return Config{
		Env:              "development",
		ListenAddr:       ":8080",
		BakeWorkers:      2,
		BakePollInterval: 500 * time.Millisecond,
		RenderDPI:        72,
		MaxConnections:   256,
		MaxUploadBytes:   25 << 20,
		SaveRetries:      3,
		ArtifactRegion:   "us-east-1",
		ArtifactURLTTL:   15 * time.Minute,
	}
}

// Load builds the config from defaults, then CONFIG_FILE if set, then the
// environment. Later sources win.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: "CONFIG_FILE", Message: "cannot read " + path, Err: err}
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return &ConfigError{Field: "CONFIG_FILE", Message: "invalid yaml", Err: err}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.Env = getenv("APP_ENV", cfg.Env)
	cfg.ListenAddr = getenv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.DatabaseURL = getenv("DATABASE_URL", cfg.DatabaseURL)
	cfg.Migrate = getenvBool("MIGRATE", cfg.Migrate)
	cfg.BakeWorkers = getenvInt("BAKE_WORKERS", cfg.BakeWorkers)
	cfg.BakePollInterval = getenvDuration("BAKE_POLL_INTERVAL", cfg.BakePollInterval)
	cfg.RenderDPI = getenvInt("RENDER_DPI", cfg.RenderDPI)
	cfg.MaxConnections = getenvInt("MAX_CONNECTIONS", cfg.MaxConnections)
	cfg.MaxUploadBytes = int64(getenvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))
	cfg.SaveRetries = getenvInt("SAVE_RETRIES", cfg.SaveRetries)
	cfg.ArtifactBucket = getenv("ARTIFACT_BUCKET", cfg.ArtifactBucket)
	cfg.ArtifactEndpoint = getenv("ARTIFACT_ENDPOINT", cfg.ArtifactEndpoint)
	cfg.ArtifactRegion = getenv("ARTIFACT_REGION", cfg.ArtifactRegion)
	cfg.ArtifactAccessKey = getenv("ARTIFACT_ACCESS_KEY", cfg.ArtifactAccessKey)
	cfg.ArtifactSecretKey = getenv("ARTIFACT_SECRET_KEY", cfg.ArtifactSecretKey)
	cfg.ArtifactURLTTL = getenvDuration("ARTIFACT_URL_TTL", cfg.ArtifactURLTTL)
}

// Validate rejects settings the server cannot start with. An empty
// DATABASE_URL is allowed and selects the in-memory store.
func (c Config) Validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, &ConfigError{Field: "LISTEN_ADDR", Message: "required"})
	}
	if c.BakeWorkers < 0 {
		errs = append(errs, &ConfigError{Field: "BAKE_WORKERS", Message: "must not be negative"})
	}
	if c.BakePollInterval <= 0 {
		errs = append(errs, &ConfigError{Field: "BAKE_POLL_INTERVAL", Message: "must be positive"})
	}
	if c.RenderDPI < 36 || c.RenderDPI > 600 {
		errs = append(errs, &ConfigError{Field: "RENDER_DPI", Message: "must be between 36 and 600"})
	}
	if c.MaxConnections < 0 {
		errs = append(errs, &ConfigError{Field: "MAX_CONNECTIONS", Message: "must not be negative"})
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, &ConfigError{Field: "MAX_UPLOAD_BYTES", Message: "must be positive"})
	}
	if c.SaveRetries < 0 {
		errs = append(errs, &ConfigError{Field: "SAVE_RETRIES", Message: "must not be negative"})
	}
	if c.ArtifactURLTTL <= 0 {
		errs = append(errs, &ConfigError{Field: "ARTIFACT_URL_TTL", Message: "must be positive"})
	}
	if c.ArtifactEndpoint != "" && c.ArtifactBucket == "" {
		errs = append(errs, &ConfigError{Field: "ARTIFACT_BUCKET", Message: "required when ARTIFACT_ENDPOINT is set"})
	}
	// Baked artifacts must outlive the process once documents do.
	if c.DatabaseURL != "" && c.ArtifactBucket == "" {
		errs = append(errs, &ConfigError{Field: "ARTIFACT_BUCKET", Message: "required when DATABASE_URL is set"})
	}
	return errors.Join(errs...)
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getenvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
