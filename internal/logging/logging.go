// Package logging assembles the application logger from declarative
// configuration: console and/or rotating file output, with an optional
// per-process timestamped file name so every run gets a fresh log.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"
)

// Config describes the handler assembly. It is usually embedded in the
// application config file under `logging:`.
type Config struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// Console enables stdout output.
	Console bool `yaml:"console"`

	// File enables rotating file output when Path or Dir is set.
	File FileConfig `yaml:"file"`
}

// FileConfig configures the rotating file handler.
type FileConfig struct {
	// Path is the log file. Mutually exclusive with Dir.
	Path string `yaml:"path"`

	// Dir, when set instead of Path, produces a timestamped file name
	// (app_2006-01-02_15-04-05.log) inside it, so each process execution
	// writes a new file.
	Dir string `yaml:"dir"`

	MaxSizeMB  int  `yaml:"max_size_mb"`
	MaxBackups int  `yaml:"max_backups"`
	MaxAgeDays int  `yaml:"max_age_days"`
	Compress   bool `yaml:"compress"`
}

// DefaultConfig returns console-only logging at info.
func DefaultConfig() Config {
	return Config{Level: "info", Console: true}
}

// LoadConfig reads a standalone logging config from a YAML file.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading logging config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing logging config: %w", err)
	}
	return cfg, nil
}

// New builds a zap logger from the config. With both console and file
// enabled the two cores are teed; with neither, a no-op logger is
// returned.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(defaultString(cfg.Level, "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var cores []zapcore.Core

	if cfg.Console {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc := zapcore.NewConsoleEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), zap.NewAtomicLevelAt(level)))
	}

	if path := cfg.File.Path; path != "" || cfg.File.Dir != "" {
		if path == "" {
			path = timestampedName(cfg.File.Dir)
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("creating log directory: %w", err)
		}
		sink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   path,
			MaxSize:    defaultInt(cfg.File.MaxSizeMB, 100),
			MaxBackups: defaultInt(cfg.File.MaxBackups, 5),
			MaxAge:     defaultInt(cfg.File.MaxAgeDays, 30),
			Compress:   cfg.File.Compress,
		})
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		enc := zapcore.NewJSONEncoder(encCfg)
		cores = append(cores, zapcore.NewCore(enc, sink, zap.NewAtomicLevelAt(level)))
	}

	if len(cores) == 0 {
		return zap.NewNop(), nil
	}
	return zap.New(zapcore.NewTee(cores...)), nil
}

// timestampedName mirrors the convention of one log file per process
// execution.
func timestampedName(dir string) string {
	return filepath.Join(dir, fmt.Sprintf("app_%s.log", time.Now().Format("2006-01-02_15-04-05")))
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
