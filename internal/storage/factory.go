package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/pklundberg/logsieve/internal/storage/clickhouse"
	"github.com/pklundberg/logsieve/internal/storage/memory"
	"github.com/pklundberg/logsieve/internal/storage/sqlite"
)

// Config selects and configures a storage backend.
type Config struct {
	// Backend is one of "memory", "sqlite", "clickhouse".
	Backend string `yaml:"backend"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `yaml:"sqlite_path"`

	// ClickHouse connection settings.
	ClickHouseAddr     string `yaml:"clickhouse_addr"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
	ClickHouseUser     string `yaml:"clickhouse_user"`
	ClickHousePassword string `yaml:"clickhouse_password"`
}

// DefaultConfig returns the default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            "memory",
		SQLitePath:         "logsieve.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
		ClickHouseUser:     "default",
	}
}

// New creates a storage implementation based on configuration.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (Storage, error) {
	switch cfg.Backend {
	case "", "memory":
		logger.Info("using in-memory storage")
		return memory.New(), nil

	case "sqlite":
		logger.Info("using sqlite storage", zap.String("path", cfg.SQLitePath))
		return sqlite.New(sqlite.Config{DBPath: cfg.SQLitePath})

	case "clickhouse":
		logger.Info("using clickhouse storage", zap.String("addr", cfg.ClickHouseAddr))
		chCfg := clickhouse.DefaultConfig()
		chCfg.Addr = cfg.ClickHouseAddr
		if cfg.ClickHouseDatabase != "" {
			chCfg.Database = cfg.ClickHouseDatabase
		}
		if cfg.ClickHouseUser != "" {
			chCfg.Username = cfg.ClickHouseUser
		}
		chCfg.Password = cfg.ClickHousePassword
		return clickhouse.NewStore(ctx, chCfg, logger)

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse)", cfg.Backend)
	}
}
