// Package sqlite provides a SQLite-backed storage implementation.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pklundberg/logsieve/pkg/models"
)

//go:embed migrations/001_initial_schema.up.sql
var migrationSQL string

// Store is a SQLite-backed store for runs and records. Record fields are
// serialized to JSON; reading them back yields generic JSON values, which
// is sufficient for the archival/reporting role this backend plays.
type Store struct {
	db *sql.DB
}

// Config holds SQLite store configuration.
type Config struct {
	DBPath string
}

// New opens the database, applies pragmas and runs migrations.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if _, err := db.Exec(migrationSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
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
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, source, started_at, completed_at, lines, unmatched, folded, matches_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Source, run.StartedAt, run.CompletedAt,
		run.Lines, run.Unmatched, run.Folded, string(matches),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// StoreRecords inserts a run's records in one transaction, preserving
// order through an explicit sequence number.
func (s *Store) StoreRecords(ctx context.Context, runID string, records []models.Record) error {
	if runID == "" {
		return errors.New("run id cannot be empty")
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq)+1, 0) FROM records WHERE run_id = ?`, runID,
	).Scan(&next); err != nil {
		return fmt.Errorf("reading sequence: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records
			(run_id, seq, source_line, pattern_name, level, fields_json, timestamp_raw, level_nonstandard)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		rec := &records[i]
		fields, err := json.Marshal(rec.Fields)
		if err != nil {
			return fmt.Errorf("marshaling fields: %w", err)
		}
		var level sql.NullString
		if sev, ok := rec.Severity(); ok {
			level = sql.NullString{String: string(sev), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			runID, next+i, rec.SourceLine, rec.PatternName, level,
			string(fields), boolInt(rec.TimestampRaw), boolInt(rec.LevelNonstandard),
		); err != nil {
			return fmt.Errorf("inserting record %d: %w", next+i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing records: %w", err)
	}
	return nil
}

// GetRun retrieves one run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, started_at, completed_at, lines, unmatched, folded, matches_json
		FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	return run, err
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]*models.Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, started_at, completed_at, lines, unmatched, folded, matches_json
		FROM runs ORDER BY started_at DESC`)
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
		FROM records WHERE run_id = ?`
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
	} else if f.Offset > 0 {
		query += " LIMIT -1 OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	records := make([]models.Record, 0)
	for rows.Next() {
		var rec models.Record
		var fieldsJSON string
		var tsRaw, lvlNonstd int
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
	rows, err := s.db.QueryContext(ctx,
		`SELECT pattern_name, COUNT(*) FROM records GROUP BY pattern_name`)
	if err != nil {
		return nil, fmt.Errorf("querying pattern stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int64)
	for rows.Next() {
		var name string
		var count int64
		if err := rows.Scan(&name, &count); err != nil {
			return nil, fmt.Errorf("scanning stats: %w", err)
		}
		stats[name] = count
	}
	return stats, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*models.Run, error) {
	var run models.Run
	var started, completed time.Time
	var matchesJSON string
	if err := row.Scan(&run.ID, &run.Source, &started, &completed,
		&run.Lines, &run.Unmatched, &run.Folded, &matchesJSON); err != nil {
		return nil, err
	}
	run.StartedAt = started
	run.CompletedAt = completed
	if err := json.Unmarshal([]byte(matchesJSON), &run.Matches); err != nil {
		return nil, fmt.Errorf("unmarshaling matches: %w", err)
	}
	return &run, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
