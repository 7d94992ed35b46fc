// Package clickhouse provides a ClickHouse-backed storage implementation,
// intended for bulk archival of parsed records.
package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/pklundberg/logsieve/pkg/models"
)

// Store is a ClickHouse-backed store for runs and records.
type Store struct {
	conn   driver.Conn
	logger *zap.Logger
}

// NewStore connects, initializes the schema and returns the store.
func NewStore(ctx context.Context, cfg *ConnectionConfig, logger *zap.Logger) (*Store, error) {
	conn, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := InitializeSchema(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{conn: conn, logger: logger}, nil
}

// StoreRun persists a run summary.
func (s *Store) StoreRun(ctx context.Context, run *models.Run) error {
	if run == nil || run.ID == "" {
		return errors.New("run with a non-empty id is required")
	}
	matches, err := json.Marshal(run.Matches)
	if err != nil {
		return fmt.Errorf("marshaling matches: %w", err)
	}
	err = s.conn.Exec(ctx, `
		INSERT INTO parse_runs (id, source, started_at, completed_at, lines, unmatched, folded, matches_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.StartedAt, run.CompletedAt,
		uint64(run.Lines), uint64(run.Unmatched), uint64(run.Folded), string(matches),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// StoreRecords batch-inserts a run's records.
func (s *Store) StoreRecords(ctx context.Context, runID string, records []models.Record) error {
	if runID == "" {
		return errors.New("run id cannot be empty")
	}
	if len(records) == 0 {
		return nil
	}

	var next uint64
	row := s.conn.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq)+1, 0) FROM parse_records WHERE run_id = ?`, runID)
	if err := row.Scan(&next); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}

	batch, err := s.conn.PrepareBatch(ctx, "INSERT INTO parse_records")
	if err != nil {
		return fmt.Errorf("preparing batch: %w", err)
	}
	for i := range records {
		rec := &records[i]
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("marshaling fields: %w", err)
		}
		var level string
		if sev, ok := rec.Severity(); ok {
			level = string(sev)
		}
		if err := batch.Append(
			runID, next+uint64(i), rec.SourceLine, rec.PatternName, level,
			string(fields), boolUint8(rec.TimestampRaw), boolUint8(rec.LevelNonstandard),
		); err != nil {
			return fmt.Errorf("appending record: %w", err)
		}
	}
	if err := batch.Send(); err != nil {
		return fmt.Errorf("sending batch: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.conn.QueryRow(ctx, `
		SELECT id, source, started_at, completed_at, lines, unmatched, folded, matches_json
		FROM parse_runs FINAL WHERE id = ?`, id)

	run, err := scanRun(row)
	if err != nil {
		// The driver has no sql.ErrNoRows equivalent worth matching on;
		// treat any scan failure on a point lookup as not-found.
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]*models.Run, error) {
	rows, err := s.conn.Query(ctx, `
		SELECT id, source, started_at, completed_at, lines, unmatched, folded, matches_json
		FROM parse_runs FINAL ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ListRecords returns a run's records in stored order, filtered.
func (s *Store) ListRecords(ctx context.Context, runID string, f models.RecordFilter) ([]models.Record, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}

	query := `
		SELECT source_line, pattern_name, fields_json, timestamp_raw, level_nonstandard
		FROM parse_records WHERE run_id = ?`
	args := []any{runID}
	if f.Pattern != "" {
		query += " AND pattern_name = ?"
		args = append(args, f.Pattern)
	}
	if f.Level != "" {
		query += " AND level = ?"
		args = append(args, strings.ToUpper(f.Level))
	}
	query += " ORDER BY seq"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := s.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		var rec models.Record
		var fieldsJSON string
		var tsRaw, lvlNonstd uint8
		if err := rows.Scan(&rec.SourceLine, &rec.PatternName, &fieldsJSON, &tsRaw, &lvlNonstd); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if err := json.Unmarshal([]byte(fieldsJSON), &rec.Fields); err != nil {
			return nil, fmt.Errorf("unmarshaling fields: %w", err)
		}
		rec.TimestampRaw = tsRaw != 0
		rec.LevelNonstandard = lvlNonstd != 0
		records = append(records, rec)
	}
	return records, rows.Err()
}

// PatternStats counts records per pattern name across all runs.
func (s *Store) PatternStats(ctx context.Context) (map[string]int64, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT pattern_name, COUNT(*) FROM parse_records GROUP BY pattern_name`)
	if err != nil {
		return nil, fmt.Errorf("querying pattern stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var name string
		var count uint64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats[name] = int64(count)
	}
	return stats, rows.Err()
}

// Close closes the connection.
func (s *Store) Close() error {
	return s.conn.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var lines, unmatched, folded uint64
	var matchesJSON string
	if err := row.Scan(&run.ID, &run.Source, &run.StartedAt, &run.CompletedAt,
		&lines, &unmatched, &folded, &matchesJSON); err != nil {
		return nil, err
	}
	run.Lines = int(lines)
	run.Unmatched = int(unmatched)
	run.Folded = int(folded)
	if err := json.Unmarshal([]byte(matchesJSON), &run.Matches); err != nil {
		return nil, fmt.Errorf("unmarshaling matches: %w", err)
	}
	return &run, nil
}

func boolUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
