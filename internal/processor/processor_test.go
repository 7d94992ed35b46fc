package processor

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pklundberg/logsieve/internal/patterns"
	"github.com/pklundberg/logsieve/pkg/models"
)

func testSet(t *testing.T) *patterns.Set {
	t.Helper()
	set, err := patterns.New(
		patterns.Definition{
			Name:       "threaded",
			Expression: `^\[(?P<level>\w+)\] (?P<timestamp>\S+ \S+) (?P<logger>\S+) \[(?P<thread_id>\d+)\] (?P<message>.*)$`,
			Columns:    []string{"level", "timestamp", "logger", "thread_id", "message"},
			Enabled:    true,
		},
		patterns.Definition{
			Name:       "dashed",
			Expression: `^(?P<timestamp>\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}(?:[.,]\d+)?) - (?P<level>\w+) - (?P<message>.*)$`,
			Columns:    []string{"timestamp", "level", "message"},
			Enabled:    true,
		},
	)
	if err != nil {
		t.Fatalf("building pattern set: %v", err)
	}
	return set
}

func TestProcess(t *testing.T) {
	input := strings.Join([]string{
		"[INFO] 2024-01-15 10:23:45,123 worker [7] started",
		"2024-01-15 10:23:46 - ERROR - task failed",
		"completely free-form noise",
		"[WARN] 2024-01-15 10:23:47 worker [7] retrying",
	}, "\n")

	proc := New(testSet(t), nil, nil, Options{})
	result, err := proc.Process(context.Background(), "test", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if got := len(result.Records); got != 4 {
		t.Fatalf("Expected 4 records, got %d", got)
	}
	if result.Lines() != 4 {
		t.Errorf("Lines() = %d, want 4", result.Lines())
	}
	if result.Unmatched != 1 {
		t.Errorf("Unmatched = %d, want 1", result.Unmatched)
	}
	if result.Matches["threaded"] != 2 || result.Matches["dashed"] != 1 {
		t.Errorf("Matches = %v", result.Matches)
	}

	// Input order is preserved and every source line round-trips.
	wantLines := strings.Split(input, "\n")
	for i, rec := range result.Records {
		if rec.SourceLine != wantLines[i] {
			t.Errorf("record %d SourceLine = %q, want %q", i, rec.SourceLine, wantLines[i])
		}
	}

	if result.Records[2].PatternName != models.PatternUnmatched {
		t.Errorf("noise line classified as %q", result.Records[2].PatternName)
	}
	if !result.Records[2].Unmatched() {
		t.Error("noise record should report Unmatched()")
	}

	first := result.Records[0]
	if ts, ok := first.Timestamp(); !ok {
		t.Error("first record should carry a parsed timestamp")
	} else if ts.Year() != 2024 {
		t.Errorf("Timestamp = %v", ts)
	}
	if sev, ok := first.Severity(); !ok || sev != models.SeverityInfo {
		t.Errorf("Severity = %v (%v)", sev, ok)
	}
	if id, ok := first.Fields["thread_id"].(int64); !ok || id != 7 {
		t.Errorf("thread_id = %v", first.Fields["thread_id"])
	}

	// WARN normalizes to the fixed vocabulary.
	if sev, ok := result.Records[3].Severity(); !ok || sev != models.SeverityWarning {
		t.Errorf("WARN record Severity = %v (%v)", sev, ok)
	}
}

func TestProcessEmptyInput(t *testing.T) {
	proc := New(testSet(t), nil, nil, Options{})
	result, err := proc.Process(context.Background(), "empty", strings.NewReader(""))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Records) != 0 || result.Unmatched != 0 {
		t.Errorf("Expected empty result, got %d records, %d unmatched", len(result.Records), result.Unmatched)
	}
}

func TestProcessAllUnmatched(t *testing.T) {
	input := "alpha\nbeta\ngamma\n"
	proc := New(testSet(t), nil, nil, Options{})
	result, err := proc.Process(context.Background(), "noise", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Records) != 3 || result.Unmatched != 3 {
		t.Fatalf("Expected 3 unmatched records, got %d records, %d unmatched", len(result.Records), result.Unmatched)
	}
	for i, rec := range result.Records {
		if !rec.Unmatched() {
			t.Errorf("record %d should be unmatched", i)
		}
	}
}

func TestProcessFolding(t *testing.T) {
	input := strings.Join([]string{
		"2024-01-15 10:23:46 - ERROR - task failed",
		"    at deep.Stack.frame(one)",
		"\tat deep.Stack.frame(two)",
		"2024-01-15 10:23:47 - INFO - recovered",
	}, "\n")

	proc := New(testSet(t), nil, nil, Options{FoldContinuations: true})
	result, err := proc.Process(context.Background(), "fold", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(result.Records) != 2 {
		t.Fatalf("Expected 2 records after folding, got %d", len(result.Records))
	}
	if result.Folded != 2 {
		t.Errorf("Folded = %d, want 2", result.Folded)
	}
	// Folded lines still count toward the line total.
	if result.Lines() != 4 {
		t.Errorf("Lines() = %d, want 4", result.Lines())
	}

	msg := result.Records[0].Message()
	if !strings.Contains(msg, "at deep.Stack.frame(one)") || !strings.Contains(msg, "at deep.Stack.frame(two)") {
		t.Errorf("continuations not folded into message: %q", msg)
	}
}

func TestProcessFoldingOffByDefault(t *testing.T) {
	input := "2024-01-15 10:23:46 - ERROR - task failed\n    at deep.Stack.frame(one)"
	proc := New(testSet(t), nil, nil, Options{})
	result, err := proc.Process(context.Background(), "nofold", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Records) != 2 || result.Folded != 0 {
		t.Errorf("Expected 2 records and no folding, got %d records, folded %d", len(result.Records), result.Folded)
	}
}

func TestProcessFoldingWithoutPredecessor(t *testing.T) {
	// An indented line with nothing before it has nowhere to fold; it must
	// surface as an unmatched record, not be dropped.
	input := "    orphan continuation"
	proc := New(testSet(t), nil, nil, Options{FoldContinuations: true})
	result, err := proc.Process(context.Background(), "orphan", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Records) != 1 || result.Unmatched != 1 || result.Folded != 0 {
		t.Errorf("got %d records, unmatched %d, folded %d", len(result.Records), result.Unmatched, result.Folded)
	}
}

func TestProcessContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	proc := New(testSet(t), nil, nil, Options{})
	_, err := proc.Process(ctx, "cancelled", strings.NewReader("line\n"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestProcessFileMissing(t *testing.T) {
	proc := New(testSet(t), nil, nil, Options{})
	_, err := proc.ProcessFile(context.Background(), filepath.Join(t.TempDir(), "does-not-exist.log"))
	if !errors.Is(err, ErrSourceRead) {
		t.Errorf("Expected ErrSourceRead, got %v", err)
	}
}

func TestProcessDefaultPatterns(t *testing.T) {
	input := strings.Join([]string{
		"[ERROR] 2024-01-15 10:23:45,123 app.worker [42] connection refused",
		"2024-01-15 10:23:45,456 WARNING  app.db - slow query",
		"2024-01-15 10:23:46 - INFO - heartbeat",
		"2024/01/15 10:23:47 INFO startup complete",
		"2024-01-15T10:23:48.123Z [DEBUG] cache warm",
	}, "\n")

	proc := New(patterns.Default(), nil, nil, Options{})
	result, err := proc.Process(context.Background(), "defaults", strings.NewReader(input))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if result.Unmatched != 0 {
		t.Fatalf("Unmatched = %d, records: %+v", result.Unmatched, result.Records)
	}

	wantPatterns := []string{"aws_threaded_log", "logger_dashed", "format6", "slashed_date", "bracketed_level"}
	for i, want := range wantPatterns {
		if got := result.Records[i].PatternName; got != want {
			t.Errorf("line %d matched %q, want %q", i, got, want)
		}
	}

	for i, rec := range result.Records {
		if _, ok := rec.Timestamp(); !ok {
			t.Errorf("line %d: timestamp not parsed: %v", i, rec.Fields["timestamp"])
		}
	}

	want := time.Date(2024, 1, 15, 10, 23, 45, 123_000_000, time.UTC)
	if ts, _ := result.Records[0].Timestamp(); !ts.Equal(want) {
		t.Errorf("first timestamp = %v, want %v", ts, want)
	}
}
