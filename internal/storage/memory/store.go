// Package memory provides an in-memory storage implementation, used by
// default and in tests.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pklundberg/logsieve/pkg/models"
)

// Store is an in-memory store for runs and records.
type Store struct {
	mu      sync.RWMutex
	runs    map[string]*models.Run
	records map[string][]models.Record
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		runs:    make(map[string]*models.Run),
		records: make(map[string][]models.Record),
	}
}

// StoreRun stores a run summary.
func (s *Store) StoreRun(ctx context.Context, run *models.Run) error {
	if run == nil {
		return errors.New("run cannot be nil")
	}
	if run.ID == "" {
		return errors.New("run id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

// StoreRecords appends records under a run id, preserving order.
func (s *Store) StoreRecords(ctx context.Context, runID string, records []models.Record) error {
	if runID == "" {
		return errors.New("run id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[runID] = append(s.records[runID], records...)
	return nil
}

// GetRun retrieves a run by id.
func (s *Store) GetRun(ctx context.Context, id string) (*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, fmt.Errorf("run %s: %w", id, models.ErrNotFound)
	}
	return run, nil
}

// ListRuns returns all runs, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]*models.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]*models.Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}

// ListRecords returns a run's records in stored order, filtered.
func (s *Store) ListRecords(ctx context.Context, runID string, f models.RecordFilter) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored, exists := s.records[runID]
	if !exists {
		if _, runExists := s.runs[runID]; !runExists {
			return nil, fmt.Errorf("run %s: %w", runID, models.ErrNotFound)
		}
	}

	out := make([]models.Record, 0, len(stored))
	for _, rec := range stored {
		if !matchesFilter(&rec, f) {
			continue
		}
		out = append(out, rec)
	}
	return paginate(out, f), nil
}

// PatternStats counts records per pattern name across all runs.
func (s *Store) PatternStats(ctx context.Context) (map[string]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := make(map[string]int64)
	for _, recs := range s.records {
		for i := range recs {
			stats[recs[i].PatternName]++
		}
	}
	return stats, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

func matchesFilter(rec *models.Record, f models.RecordFilter) bool {
	if f.Pattern != "" && rec.PatternName != f.Pattern {
		return false
	}
	if f.Level != "" {
		sev, ok := rec.Severity()
		if !ok || !strings.EqualFold(string(sev), f.Level) {
			return false
		}
	}
	return true
}

func paginate(recs []models.Record, f models.RecordFilter) []models.Record {
	if f.Offset > 0 {
		if f.Offset >= len(recs) {
			return []models.Record{}
		}
		recs = recs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(recs) {
		recs = recs[:f.Limit]
	}
	return recs
}
