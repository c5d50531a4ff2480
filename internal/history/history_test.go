package history_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"podscribe/internal/history"
	"podscribe/internal/testsupport"
)

func openStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.OpenStore(filepath.Join(t.TempDir(), "data", "history.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	started := time.Now().Add(-time.Minute)
	if err := store.StartRun(ctx, history.Run{ID: "run-1", StartedAt: started, Model: "base", Limit: 2}); err != nil {
		t.Fatalf("StartRun: %v", err)
	}
	attempts := []history.Attempt{
		{RunID: "run-1", EpisodeID: "abc123def456", Title: "One", Status: history.AttemptSucceeded, AudioBytes: 1024, Duration: 1500 * time.Millisecond},
		{RunID: "run-1", EpisodeID: "fff000fff000", Title: "Two", Status: history.AttemptFailed, FailureKind: "not_found", Error: "404"},
	}
	for _, attempt := range attempts {
		if err := store.RecordAttempt(ctx, attempt); err != nil {
			t.Fatalf("RecordAttempt: %v", err)
		}
	}
	if err := store.FinishRun(ctx, "run-1", history.Outcome{Attempted: 2, Succeeded: 1, Failed: 1, Total: 7}); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := store.RecentRuns(ctx, 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != history.RunCompleted || run.Succeeded != 1 || run.Failed != 1 || run.Total != 7 {
		t.Fatalf("unexpected run %+v", run)
	}
	if run.FinishedAt == nil || run.Duration() <= 0 {
		t.Fatalf("expected finished run with duration, got %+v", run)
	}

	got, err := store.AttemptsForEpisode(ctx, "fff000fff000")
	if err != nil {
		t.Fatalf("AttemptsForEpisode: %v", err)
	}
	if len(got) != 1 || got[0].FailureKind != "not_found" || got[0].Error != "404" {
		t.Fatalf("unexpected attempts %+v", got)
	}
	ok, err := store.AttemptsForEpisode(ctx, "abc123def456")
	if err != nil || len(ok) != 1 || ok[0].Duration != 1500*time.Millisecond || ok[0].AudioBytes != 1024 {
		t.Fatalf("unexpected success attempt %+v (%v)", ok, err)
	}
}

func TestFinishRunRecordsFailure(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.StartRun(ctx, history.Run{ID: "run-2", Model: "base", Limit: 1}); err != nil {
		t.Fatal(err)
	}
	if err := store.FinishRun(ctx, "run-2", history.Outcome{Err: errors.New("disk full")}); err != nil {
		t.Fatal(err)
	}
	runs, err := store.RecentRuns(ctx, 1)
	if err != nil {
		t.Fatal(err)
	}
	if runs[0].Status != history.RunFailed || runs[0].Error != "disk full" {
		t.Fatalf("unexpected run %+v", runs[0])
	}
	if err := store.FinishRun(ctx, "missing", history.Outcome{}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestAttemptRequiresExistingRun(t *testing.T) {
	store := openStore(t)
	err := store.RecordAttempt(context.Background(), history.Attempt{RunID: "nope", EpisodeID: "x", Title: "x", Status: history.AttemptFailed})
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	store, err := history.OpenStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.StartRun(context.Background(), history.Run{ID: "run-3", Model: "tiny", Limit: 1}); err != nil {
		t.Fatal(err)
	}
	_ = store.Close()

	reopened, err := history.OpenStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	runs, err := reopened.RecentRuns(context.Background(), 10)
	if err != nil || len(runs) != 1 || runs[0].Status != history.RunRunning {
		t.Fatalf("unexpected runs after reopen %+v (%v)", runs, err)
	}
}

func TestOpenRespectsEnabledFlag(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithHistoryDisabled())
	journal, err := history.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := journal.(history.Noop); !ok {
		t.Fatalf("expected noop journal, got %T", journal)
	}

	cfg = testsupport.NewConfig(t)
	journal, err = history.Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer journal.Close()
	if _, ok := journal.(*history.Store); !ok {
		t.Fatalf("expected sqlite journal, got %T", journal)
	}
}
