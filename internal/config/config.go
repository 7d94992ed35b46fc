// Package config loads application settings from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/pklundberg/logsieve/internal/logging"
	"github.com/pklundberg/logsieve/internal/storage"
)

// Config is the full application configuration.
type Config struct {
	// PatternsFile points at the YAML pattern declarations. Empty means
	// the built-in defaults.
	PatternsFile string `yaml:"patterns_file"`

	// TimestampFormatsFile points at the YAML timestamp format list.
	// Empty means the built-in defaults.
	TimestampFormatsFile string `yaml:"timestamp_formats_file"`

	// LogDir is the base directory holding unprocessed/, processed/ and
	// errors/ subdirectories.
	LogDir string `yaml:"log_dir"`

	// FoldContinuations folds indented unmatched lines into the previous
	// record's message.
	FoldContinuations bool `yaml:"fold_continuations"`

	// Workers bounds concurrent file processing.
	Workers int `yaml:"workers"`

	Storage storage.Config `yaml:"storage"`
	API     APIConfig      `yaml:"api"`
	OTLP    OTLPConfig     `yaml:"otlp"`
	S3      S3Config       `yaml:"s3"`
	Logging logging.Config `yaml:"logging"`
}

// APIConfig configures the REST API server.
type APIConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// OTLPConfig configures the OTLP log receivers.
type OTLPConfig struct {
	Enabled  bool   `yaml:"enabled"`
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// S3Config configures post-run artifact archival.
type S3Config struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	KeyPrefix string `yaml:"key_prefix"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		LogDir:  "logs",
		Workers: 4,
		Storage: storage.DefaultConfig(),
		API:     APIConfig{Addr: "0.0.0.0:8080"},
		OTLP:    OTLPConfig{GRPCAddr: "0.0.0.0:4317", HTTPAddr: "0.0.0.0:4318"},
		S3:      S3Config{Region: "us-east-1"},
		Logging: logging.DefaultConfig(),
	}
}

// Load reads the config file (when path is non-empty) on top of defaults,
// then applies LOGSIEVE_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return cfg, nil
}

// applyEnv lets deployment environments override file settings without
// editing the file.
func (c *Config) applyEnv() {
	c.PatternsFile = getEnv("LOGSIEVE_PATTERNS_FILE", c.PatternsFile)
	c.TimestampFormatsFile = getEnv("LOGSIEVE_TIMESTAMP_FORMATS_FILE", c.TimestampFormatsFile)
	c.LogDir = getEnv("LOGSIEVE_LOG_DIR", c.LogDir)
	c.FoldContinuations = getEnvBool("LOGSIEVE_FOLD_CONTINUATIONS", c.FoldContinuations)
	c.Workers = getEnvInt("LOGSIEVE_WORKERS", c.Workers)

	c.Storage.Backend = getEnv("LOGSIEVE_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = getEnv("LOGSIEVE_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.ClickHouseAddr = getEnv("LOGSIEVE_CLICKHOUSE_ADDR", c.Storage.ClickHouseAddr)
	c.Storage.ClickHousePassword = getEnv("LOGSIEVE_CLICKHOUSE_PASSWORD", c.Storage.ClickHousePassword)

	c.API.Enabled = getEnvBool("LOGSIEVE_API_ENABLED", c.API.Enabled)
	c.API.Addr = getEnv("LOGSIEVE_API_ADDR", c.API.Addr)
	c.OTLP.Enabled = getEnvBool("LOGSIEVE_OTLP_ENABLED", c.OTLP.Enabled)
	c.OTLP.GRPCAddr = getEnv("LOGSIEVE_OTLP_GRPC_ADDR", c.OTLP.GRPCAddr)
	c.OTLP.HTTPAddr = getEnv("LOGSIEVE_OTLP_HTTP_ADDR", c.OTLP.HTTPAddr)

	c.S3.Enabled = getEnvBool("LOGSIEVE_S3_ENABLED", c.S3.Enabled)
	c.S3.Endpoint = getEnv("LOGSIEVE_S3_ENDPOINT", c.S3.Endpoint)
	c.S3.Region = getEnv("LOGSIEVE_S3_REGION", c.S3.Region)
	c.S3.Bucket = getEnv("LOGSIEVE_S3_BUCKET", c.S3.Bucket)
	c.S3.KeyPrefix = getEnv("LOGSIEVE_S3_KEY_PREFIX", c.S3.KeyPrefix)
	c.S3.AccessKey = getEnv("LOGSIEVE_S3_ACCESS_KEY", c.S3.AccessKey)
	c.S3.SecretKey = getEnv("LOGSIEVE_S3_SECRET_KEY", c.S3.SecretKey)

	c.Logging.Level = getEnv("LOGSIEVE_LOG_LEVEL", c.Logging.Level)
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default fallback.
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default fallback.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
