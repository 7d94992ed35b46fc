// Package receiver implements OTLP log ingestion as a second line source:
// every received log body runs through the same classify/extract pipeline
// as file input.
package receiver

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	"go.uber.org/zap"

	"github.com/pklundberg/logsieve/internal/classify"
	"github.com/pklundberg/logsieve/internal/coerce"
	"github.com/pklundberg/logsieve/internal/patterns"
	"github.com/pklundberg/logsieve/internal/storage"
	"github.com/pklundberg/logsieve/pkg/models"
)

// Pipeline classifies received log bodies and persists them under one
// long-lived ingest run per receiver process.
type Pipeline struct {
	set     *patterns.Set
	coercer *coerce.Coercer
	store   storage.Storage
	logger  *zap.Logger

	mu  sync.Mutex
	run *models.Run
}

// NewPipeline creates a pipeline and registers its ingest run.
func NewPipeline(ctx context.Context, set *patterns.Set, coercer *coerce.Coercer, store storage.Storage, logger *zap.Logger) (*Pipeline, error) {
	if coercer == nil {
		coercer = coerce.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	run := &models.Run{
		ID:        uuid.NewString(),
		Source:    "otlp",
		StartedAt: time.Now().UTC(),
		Matches:   make(map[string]int),
	}
	if err := store.StoreRun(ctx, snapshotRun(run)); err != nil {
		return nil, fmt.Errorf("registering ingest run: %w", err)
	}
	return &Pipeline{set: set, coercer: coercer, store: store, logger: logger, run: run}, nil
}

// RunID returns the id of the ingest run.
func (p *Pipeline) RunID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.run.ID
}

// IngestExport processes every log record body in an OTLP export request.
// Returns the number of rejected (empty-body) records.
func (p *Pipeline) IngestExport(ctx context.Context, req *collogspb.ExportLogsServiceRequest) (int64, error) {
	var lines []string
	var rejected int64
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				body := lr.GetBody().GetStringValue()
				if body == "" {
					rejected++
					continue
				}
				lines = append(lines, body)
			}
		}
	}
	if len(lines) == 0 {
		return rejected, nil
	}
	if err := p.Ingest(ctx, lines); err != nil {
		return rejected, err
	}
	return rejected, nil
}

// snapshotRun copies a run, including its Matches map, so the copy handed
// to storage is never written again while later batches keep mutating the
// live run. Readers iterate stored runs without holding the pipeline lock.
func snapshotRun(run *models.Run) *models.Run {
	snapshot := *run
	snapshot.Matches = make(map[string]int, len(run.Matches))
	for name, n := range run.Matches {
		snapshot.Matches[name] = n
	}
	return &snapshot
}

// Ingest classifies and stores a batch of lines.
func (p *Pipeline) Ingest(ctx context.Context, lines []string) error {
	records := make([]models.Record, 0, len(lines))
	unmatched := 0
	matches := make(map[string]int)
	for _, line := range lines {
		def, m := classify.Classify(line, p.set)
		if def == nil {
			records = append(records, models.UnmatchedRecord(line))
			unmatched++
			continue
		}
		records = append(records, p.coercer.Extract(line, def, m))
		matches[def.Name]++
	}

	p.mu.Lock()
	p.run.Lines += len(records)
	p.run.Unmatched += unmatched
	for name, n := range matches {
		p.run.Matches[name] += n
	}
	p.run.CompletedAt = time.Now().UTC()
	snapshot := snapshotRun(p.run)
	p.mu.Unlock()

	if err := p.store.StoreRecords(ctx, snapshot.ID, records); err != nil {
		return fmt.Errorf("storing ingested records: %w", err)
	}
	if err := p.store.StoreRun(ctx, snapshot); err != nil {
		return fmt.Errorf("updating ingest run: %w", err)
	}
	p.logger.Debug("otlp batch ingested",
		zap.Int("lines", len(records)),
		zap.Int("unmatched", unmatched),
	)
	return nil
}
