// Package storage defines the store for processing runs and their parsed
// records.
package storage

import (
	"context"

	"github.com/pklundberg/logsieve/pkg/models"
)

// Storage persists parse runs and records. Implementations must be safe
// for concurrent use; the directory runner writes from several workers.
type Storage interface {
	// StoreRun persists the summary of a completed run.
	StoreRun(ctx context.Context, run *models.Run) error

	// StoreRecords persists the records of a run, preserving their order.
	StoreRecords(ctx context.Context, runID string, records []models.Record) error

	// GetRun retrieves one run by id.
	GetRun(ctx context.Context, id string) (*models.Run, error)

	// ListRuns returns all runs, most recent first.
	ListRuns(ctx context.Context) ([]*models.Run, error)

	// ListRecords returns a run's records in stored order, filtered.
	ListRecords(ctx context.Context, runID string, f models.RecordFilter) ([]models.Record, error)

	// PatternStats returns total matched-line counts per pattern name
	// across all runs, with the unmatched sentinel counted like any other.
	PatternStats(ctx context.Context) (map[string]int64, error)

	// Close releases backend resources.
	Close() error
}
