package receiver

import (
	"context"
	"sync"
	"testing"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"

	"github.com/pklundberg/logsieve/internal/patterns"
	"github.com/pklundberg/logsieve/internal/storage/memory"
	"github.com/pklundberg/logsieve/pkg/models"
)

func testPipeline(t *testing.T) (*Pipeline, *memory.Store) {
	t.Helper()
	set, err := patterns.New(patterns.Definition{
		Name:       "dashed",
		Expression: `^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}) - (?P<level>\w+) - (?P<message>.*)$`,
		Columns:    []string{"timestamp", "level", "message"},
		Enabled:    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	store := memory.New()
	p, err := NewPipeline(context.Background(), set, nil, store, nil)
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	return p, store
}

func exportRequest(bodies ...string) *collogspb.ExportLogsServiceRequest {
	records := make([]*logspb.LogRecord, 0, len(bodies))
	for _, body := range bodies {
		var value *commonpb.AnyValue
		if body != "" {
			value = &commonpb.AnyValue{Value: &commonpb.AnyValue_StringValue{StringValue: body}}
		}
		records = append(records, &logspb.LogRecord{Body: value})
	}
	return &collogspb.ExportLogsServiceRequest{
		ResourceLogs: []*logspb.ResourceLogs{{
			ScopeLogs: []*logspb.ScopeLogs{{LogRecords: records}},
		}},
	}
}

func TestNewPipelineRegistersRun(t *testing.T) {
	p, store := testPipeline(t)

	run, err := store.GetRun(context.Background(), p.RunID())
	if err != nil {
		t.Fatalf("ingest run not registered: %v", err)
	}
	if run.Source != "otlp" {
		t.Errorf("Source = %q", run.Source)
	}
	if run.Lines != 0 {
		t.Errorf("fresh run has %d lines", run.Lines)
	}
}

func TestIngestExport(t *testing.T) {
	ctx := context.Background()
	p, store := testPipeline(t)

	req := exportRequest(
		"2024-01-15 10:23:45 - ERROR - task failed",
		"free-form noise",
		"", // empty body, rejected
	)

	rejected, err := p.IngestExport(ctx, req)
	if err != nil {
		t.Fatalf("IngestExport failed: %v", err)
	}
	if rejected != 1 {
		t.Errorf("rejected = %d, want 1", rejected)
	}

	records, err := store.ListRecords(ctx, p.RunID(), models.RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("got %d records", len(records))
	}
	if records[0].PatternName != "dashed" {
		t.Errorf("first record pattern = %q", records[0].PatternName)
	}
	if sev, ok := records[0].Severity(); !ok || sev != models.SeverityError {
		t.Errorf("Severity = %v (%v)", sev, ok)
	}
	if !records[1].Unmatched() {
		t.Error("noise body should be unmatched")
	}

	run, err := store.GetRun(ctx, p.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if run.Lines != 2 || run.Unmatched != 1 || run.Matches["dashed"] != 1 {
		t.Errorf("run = %+v", run)
	}
}

func TestIngestExportAllEmpty(t *testing.T) {
	ctx := context.Background()
	p, store := testPipeline(t)

	rejected, err := p.IngestExport(ctx, exportRequest("", ""))
	if err != nil {
		t.Fatalf("IngestExport failed: %v", err)
	}
	if rejected != 2 {
		t.Errorf("rejected = %d, want 2", rejected)
	}

	records, err := store.ListRecords(ctx, p.RunID(), models.RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("Expected no records, got %d", len(records))
	}
}

// Stored run summaries must be immutable: later batches keep counting on
// the live run, while API readers iterate previously stored summaries
// without any pipeline synchronization.
func TestIngestStoredRunsAreImmutable(t *testing.T) {
	ctx := context.Background()
	p, store := testPipeline(t)

	if err := p.Ingest(ctx, []string{"2024-01-15 10:23:45 - INFO - first"}); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if err := p.Ingest(ctx, []string{"2024-01-15 10:23:46 - INFO - more"}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			run, err := store.GetRun(ctx, p.RunID())
			if err != nil {
				t.Error(err)
				return
			}
			total := 0
			for _, n := range run.Matches {
				total += n
			}
			if total > run.Lines {
				t.Errorf("matches %d exceed lines %d", total, run.Lines)
				return
			}
		}
	}()
	wg.Wait()

	run, err := store.GetRun(ctx, p.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if run.Lines != 101 || run.Matches["dashed"] != 101 {
		t.Errorf("run = %+v", run)
	}
}

func TestIngestAccumulatesAcrossBatches(t *testing.T) {
	ctx := context.Background()
	p, store := testPipeline(t)

	if err := p.Ingest(ctx, []string{"2024-01-15 10:23:45 - INFO - one"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Ingest(ctx, []string{"2024-01-15 10:23:46 - INFO - two", "noise"}); err != nil {
		t.Fatal(err)
	}

	run, err := store.GetRun(ctx, p.RunID())
	if err != nil {
		t.Fatal(err)
	}
	if run.Lines != 3 || run.Unmatched != 1 || run.Matches["dashed"] != 2 {
		t.Errorf("run = %+v", run)
	}

	records, err := store.ListRecords(ctx, p.RunID(), models.RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 3 || records[0].Message() != "one" {
		t.Errorf("records = %+v", records)
	}
}
