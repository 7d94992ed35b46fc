package processor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pklundberg/logsieve/internal/storage"
	"github.com/pklundberg/logsieve/pkg/models"
)

// Subdirectories the runner maintains under its base directory. Files land
// in unprocessed/, and are moved to processed/ on success or errors/ when
// the source itself could not be read.
const (
	DirUnprocessed = "unprocessed"
	DirProcessed   = "processed"
	DirErrors      = "errors"
)

// RunnerOptions tune a Runner.
type RunnerOptions struct {
	// Workers bounds how many files are processed concurrently. Each file
	// gets its own sequential pass; the pattern set is shared read-only.
	Workers int
}

// Runner processes every file in a drop directory, persists the results
// and moves each file out of unprocessed/ when done.
type Runner struct {
	proc    *Processor
	store   storage.Storage
	baseDir string
	opts    RunnerOptions
	logger  *zap.Logger
}

// NewRunner creates a Runner rooted at baseDir.
func NewRunner(proc *Processor, store storage.Storage, baseDir string, logger *zap.Logger, opts RunnerOptions) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{proc: proc, store: store, baseDir: baseDir, opts: opts, logger: logger}
}

// Run processes all files currently in unprocessed/ and returns the stored
// run summaries. A file that fails to read is moved to errors/ and reported
// in the error return; the other files still complete.
func (r *Runner) Run(ctx context.Context) ([]*models.Run, error) {
	for _, dir := range []string{DirUnprocessed, DirProcessed, DirErrors} {
		if err := os.MkdirAll(filepath.Join(r.baseDir, dir), 0o755); err != nil {
			return nil, fmt.Errorf("creating %s directory: %w", dir, err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(r.baseDir, DirUnprocessed))
	if err != nil {
		return nil, fmt.Errorf("listing unprocessed directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() {
			paths = append(paths, filepath.Join(r.baseDir, DirUnprocessed, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		runs []*models.Run
		errs []error
	)
	sem := make(chan struct{}, r.opts.Workers)
	var wg sync.WaitGroup
	for _, path := range paths {
		wg.Add(1)
		sem <- struct{}{}
		go func(path string) {
			defer wg.Done()
			defer func() { <-sem }()

			run, err := r.runFile(ctx, path)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			runs = append(runs, run)
		}(path)
	}
	wg.Wait()

	return runs, errors.Join(errs...)
}

// runFile processes one file, stores the outcome and relocates the file.
func (r *Runner) runFile(ctx context.Context, path string) (*models.Run, error) {
	name := filepath.Base(path)
	started := time.Now().UTC()

	result, err := r.proc.ProcessFile(ctx, path)
	if err != nil {
		r.logger.Error("processing failed", zap.String("file", name), zap.Error(err))
		if moveErr := r.move(path, DirErrors); moveErr != nil {
			return nil, errors.Join(err, moveErr)
		}
		return nil, err
	}

	run := &models.Run{
		ID:          uuid.NewString(),
		Source:      name,
		StartedAt:   started,
		CompletedAt: time.Now().UTC(),
		Lines:       result.Lines(),
		Unmatched:   result.Unmatched,
		Folded:      result.Folded,
		Matches:     result.Matches,
	}
	if err := r.store.StoreRun(ctx, run); err != nil {
		return nil, fmt.Errorf("storing run for %s: %w", name, err)
	}
	if err := r.store.StoreRecords(ctx, run.ID, result.Records); err != nil {
		return nil, fmt.Errorf("storing records for %s: %w", name, err)
	}

	if err := r.move(path, DirProcessed); err != nil {
		return nil, err
	}
	r.logger.Info("file processed",
		zap.String("file", name),
		zap.String("run_id", run.ID),
		zap.Int("lines", run.Lines),
		zap.Int("unmatched", run.Unmatched),
	)
	return run, nil
}

func (r *Runner) move(path, dir string) error {
	dest := filepath.Join(r.baseDir, dir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		return fmt.Errorf("moving %s to %s: %w", filepath.Base(path), dir, err)
	}
	return nil
}
