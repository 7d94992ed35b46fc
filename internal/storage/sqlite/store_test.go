package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/pklundberg/logsieve/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRun(id string) *models.Run {
	started := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	return &models.Run{
		ID:          id,
		Source:      id + ".log",
		StartedAt:   started,
		CompletedAt: started.Add(time.Second),
		Lines:       3,
		Unmatched:   1,
		Matches:     map[string]int{"p": 2},
	}
}

func testRecords() []models.Record {
	return []models.Record{
		{SourceLine: "a", PatternName: "p", Fields: map[string]any{"level": models.SeverityInfo, "message": "a"}},
		{SourceLine: "b", PatternName: "p", Fields: map[string]any{"level": models.SeverityError, "message": "b"}, TimestampRaw: true},
		models.UnmatchedRecord("c"),
	}
}

func TestRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	run := testRun("r1")
	if err := store.StoreRun(ctx, run); err != nil {
		t.Fatalf("StoreRun failed: %v", err)
	}

	got, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Source != "r1.log" || got.Lines != 3 || got.Unmatched != 1 {
		t.Errorf("GetRun = %+v", got)
	}
	if got.Matches["p"] != 2 {
		t.Errorf("Matches = %v", got.Matches)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, run.StartedAt)
	}

	if _, err := store.GetRun(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestStoreRunUpsert(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	run := testRun("r1")
	if err := store.StoreRun(ctx, run); err != nil {
		t.Fatal(err)
	}
	run.Lines = 10
	if err := store.StoreRun(ctx, run); err != nil {
		t.Fatal(err)
	}

	got, err := store.GetRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Lines != 10 {
		t.Errorf("Lines = %d after upsert, want 10", got.Lines)
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Errorf("upsert created %d rows", len(runs))
	}
}

func TestListRunsOrder(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	for i, id := range []string{"old", "new"} {
		run := testRun(id)
		run.StartedAt = run.StartedAt.Add(time.Duration(i) * time.Hour)
		if err := store.StoreRun(ctx, run); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" {
		t.Errorf("order = %+v", runs)
	}
}

func TestRecordsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.StoreRun(ctx, testRun("r1")); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreRecords(ctx, "r1", testRecords()); err != nil {
		t.Fatalf("StoreRecords failed: %v", err)
	}

	all, err := store.ListRecords(ctx, "r1", models.RecordFilter{})
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(all))
	}
	if all[0].SourceLine != "a" || all[1].SourceLine != "b" || all[2].SourceLine != "c" {
		t.Errorf("order broken: %+v", all)
	}
	if !all[1].TimestampRaw {
		t.Error("TimestampRaw flag lost")
	}
	// Fields survive as JSON values.
	if all[0].Fields["message"] != "a" {
		t.Errorf("fields = %v", all[0].Fields)
	}
	if all[2].PatternName != models.PatternUnmatched {
		t.Errorf("sentinel pattern name = %q", all[2].PatternName)
	}
}

func TestRecordsSequenceAcrossBatches(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.StoreRun(ctx, testRun("r1")); err != nil {
		t.Fatal(err)
	}
	recs := testRecords()
	if err := store.StoreRecords(ctx, "r1", recs[:2]); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreRecords(ctx, "r1", recs[2:]); err != nil {
		t.Fatal(err)
	}

	all, err := store.ListRecords(ctx, "r1", models.RecordFilter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[2].SourceLine != "c" {
		t.Errorf("sequence across batches broken: %+v", all)
	}
}

func TestListRecordsFilters(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	if err := store.StoreRun(ctx, testRun("r1")); err != nil {
		t.Fatal(err)
	}
	if err := store.StoreRecords(ctx, "r1", testRecords()); err != nil {
		t.Fatal(err)
	}

	byPattern, err := store.ListRecords(ctx, "r1", models.RecordFilter{Pattern: "p"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byPattern) != 2 {
		t.Errorf("pattern filter returned %d records", len(byPattern))
	}

	byLevel, err := store.ListRecords(ctx, "r1", models.RecordFilter{Level: "error"})
	if err != nil {
		t.Fatal(err)
	}
	if len(byLevel) != 1 || byLevel[0].SourceLine != "b" {
		t.Errorf("level filter = %+v", byLevel)
	}

	paged, err := store.ListRecords(ctx, "r1", models.RecordFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(paged) != 1 || paged[0].SourceLine != "b" {
		t.Errorf("pagination = %+v", paged)
	}

	offsetOnly, err := store.ListRecords(ctx, "r1", models.RecordFilter{Offset: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(offsetOnly) != 1 || offsetOnly[0].SourceLine != "c" {
		t.Errorf("offset-only = %+v", offsetOnly)
	}

	if _, err := store.ListRecords(ctx, "missing", models.RecordFilter{}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPatternStats(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	for _, id := range []string{"r1", "r2"} {
		if err := store.StoreRun(ctx, testRun(id)); err != nil {
			t.Fatal(err)
		}
		if err := store.StoreRecords(ctx, id, testRecords()); err != nil {
			t.Fatal(err)
		}
	}

	stats, err := store.PatternStats(ctx)
	if err != nil {
		t.Fatalf("PatternStats failed: %v", err)
	}
	if stats["p"] != 4 || stats[models.PatternUnmatched] != 2 {
		t.Errorf("stats = %v", stats)
	}
}
