package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

const runsTableDDL = `
CREATE TABLE IF NOT EXISTS parse_runs (
    id            String,
    source        String,
    started_at    DateTime64(3, 'UTC'),
    completed_at  DateTime64(3, 'UTC'),
    lines         UInt64,
    unmatched     UInt64,
    folded        UInt64,
    matches_json  String
) ENGINE = ReplacingMergeTree()
ORDER BY (id)
`

const recordsTableDDL = `
CREATE TABLE IF NOT EXISTS parse_records (
    run_id            String,
    seq               UInt64,
    source_line       String,
    pattern_name      LowCardinality(String),
    level             LowCardinality(String),
    fields_json       String,
    timestamp_raw     UInt8,
    level_nonstandard UInt8
) ENGINE = MergeTree()
ORDER BY (run_id, seq)
`

// InitializeSchema creates the required tables if they don't exist.
func InitializeSchema(ctx context.Context, conn driver.Conn) error {
	tables := []struct {
		name string
		ddl  string
	}{
		{"parse_runs", runsTableDDL},
		{"parse_records", recordsTableDDL},
	}

	for _, table := range tables {
		if err := conn.Exec(ctx, table.ddl); err != nil {
			return fmt.Errorf("creating table %s: %w", table.name, err)
		}
	}
	return nil
}
