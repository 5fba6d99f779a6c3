// Package config loads service configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Snapshot SnapshotConfig `yaml:"snapshot"`
	Blob     BlobConfig     `yaml:"blob"`
	Log      LogConfig      `yaml:"log"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SnapshotConfig configures the document snapshot backend.
type SnapshotConfig struct {
	// Driver selects the backend: memory|sqlite|postgres.
	Driver string `yaml:"driver"`
	// SQLitePath is the database file when driver=sqlite.
	SQLitePath string `yaml:"sqlite_path"`
	// PostgresDSN is the connection string when driver=postgres.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// BlobConfig configures the archive storage backend.
type BlobConfig struct {
	// Driver selects the backend: fs|s3|memory.
	Driver string `yaml:"driver"`
	// FSRoot is the directory root when driver=fs.
	FSRoot string `yaml:"fs_root"`
	// S3Bucket is required when driver=s3.
	S3Bucket string `yaml:"s3_bucket"`
	// S3Region defaults to us-east-1.
	S3Region string `yaml:"s3_region"`
	// S3Endpoint enables MinIO style endpoints.
	S3Endpoint string `yaml:"s3_endpoint"`
	// S3PathStyle forces path-style addressing.
	S3PathStyle bool `yaml:"s3_path_style"`
}

// LogConfig configures diagnostics.
type LogConfig struct {
	// Level is one of debug|info|warn|error.
	Level string `yaml:"level"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Expvar publishes process-local metrics under this name when set.
	Expvar string `yaml:"expvar"`
	// PrometheusNamespace prefixes Prometheus metric names.
	PrometheusNamespace string `yaml:"prometheus_namespace"`
}

// Default returns a configuration with working development defaults.
func Default() *Config {
	return &Config{
		Snapshot: SnapshotConfig{Driver: "sqlite", SQLitePath: "modelcore.db"},
		Blob:     BlobConfig{Driver: "fs", FSRoot: "./archives", S3Region: "us-east-1"},
		Log:      LogConfig{Level: "info"},
		Metrics:  MetricsConfig{PrometheusNamespace: "modelcore"},
	}
}

// FromEnv returns the defaults with MODELCORE_* environment overrides
// applied. No validation runs; the storage factories reject unknown
// drivers themselves.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

// LoadFile reads a YAML configuration file over the defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Load builds the effective configuration: defaults, then the YAML file
// (when path is non-empty), then environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		loaded, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides fields from MODELCORE_* environment variables, which
// the storage factories also honor on their own.
func (c *Config) applyEnv() {
	set := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	set(&c.Snapshot.Driver, "MODELCORE_SNAPSHOT_DRIVER")
	set(&c.Snapshot.SQLitePath, "MODELCORE_SNAPSHOT_SQLITE_PATH")
	set(&c.Snapshot.PostgresDSN, "MODELCORE_SNAPSHOT_POSTGRES_DSN")
	set(&c.Blob.Driver, "MODELCORE_BLOB_DRIVER")
	set(&c.Blob.FSRoot, "MODELCORE_BLOB_FS_ROOT")
	set(&c.Blob.S3Bucket, "MODELCORE_BLOB_S3_BUCKET")
	set(&c.Blob.S3Region, "MODELCORE_BLOB_S3_REGION")
	set(&c.Blob.S3Endpoint, "MODELCORE_BLOB_S3_ENDPOINT")
	set(&c.Log.Level, "MODELCORE_LOG_LEVEL")
	if v := os.Getenv("MODELCORE_BLOB_S3_PATH_STYLE"); v != "" {
		c.Blob.S3PathStyle = strings.EqualFold(v, "true")
	}
}

// Validate checks cross-field consistency.
func (c *Config) Validate() error {
	switch c.Snapshot.Driver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("config: unknown snapshot driver %q", c.Snapshot.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "s3", "memory":
	default:
		return fmt.Errorf("config: unknown blob driver %q", c.Blob.Driver)
	}
	if c.Blob.Driver == "s3" && c.Blob.S3Bucket == "" {
		return fmt.Errorf("config: blob.s3_bucket is required for the s3 driver")
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: unknown log level %q", c.Log.Level)
	}
	return nil
}
