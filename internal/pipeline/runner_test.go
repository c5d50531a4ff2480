package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"podscribe/internal/config"
	"podscribe/internal/download"
	"podscribe/internal/episodeid"
	"podscribe/internal/feed"
	"podscribe/internal/history"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/pipeline"
	"podscribe/internal/services"
	"podscribe/internal/store"
	"podscribe/internal/testsupport"
	"podscribe/internal/transcription"
)

type fakeTranscriber struct {
	calls atomic.Int64
	fail  map[string]error
}

func (f *fakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.calls.Add(1)
	id := strings.TrimSuffix(filepath.Base(audioPath), filepath.Ext(audioPath))
	if err, ok := f.fail[id]; ok {
		return "", err
	}
	return "transcript of " + id, nil
}

type fakeLoader struct {
	loads       atomic.Int64
	transcriber *fakeTranscriber
}

func (l *fakeLoader) Load(context.Context, string) (transcription.Transcriber, error) {
	l.loads.Add(1)
	return l.transcriber, nil
}

type harness struct {
	cfg      *config.Config
	server   *testsupport.PodcastServer
	loader   *fakeLoader
	out      *bytes.Buffer
	journal  history.Journal
	notifier notifications.Service
}

func newHarness(t *testing.T, items ...testsupport.FeedItem) *harness {
	t.Helper()
	server := testsupport.NewPodcastServer(t, "")
	for i := range items {
		if strings.HasPrefix(items[i].AudioURL, "/audio/") {
			items[i].AudioURL = server.AudioURL(strings.TrimPrefix(items[i].AudioURL, "/audio/"))
		}
	}
	server.SetFeed(testsupport.RSSFeed(items...))
	cfg := testsupport.NewConfig(t, testsupport.WithFeedURL(server.FeedURL()))
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	return &harness{
		cfg:    cfg,
		server: server,
		loader: &fakeLoader{transcriber: &fakeTranscriber{fail: map[string]error{}}},
		out:    &bytes.Buffer{},
	}
}

// run performs one full scan-and-process pass with freshly opened stores.
func (h *harness) run(t *testing.T, limit int) pipeline.Summary {
	t.Helper()
	ctx := context.Background()
	logger := logging.NewNop()
	ledger, err := store.OpenLedger(h.cfg.LedgerPath(), logger)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	archive, err := store.OpenArchive(h.cfg.ArchivePath(), logger)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	scanner := feed.NewScanner(h.cfg.Feed, logger)
	candidates, err := scanner.Scan(ctx, h.cfg.Feed.URL, limit+h.cfg.Feed.Lookahead, ledger)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	runner, err := pipeline.NewRunner(pipeline.Deps{
		Config:   h.cfg,
		Fetcher:  download.NewFetcher(h.cfg.Download, logger),
		Loader:   h.loader,
		Archive:  archive,
		Ledger:   ledger,
		Journal:  h.journal,
		Notifier: h.notifier,
		Logger:   logger,
		Out:      h.out,
		RunID:    "run-" + t.Name(),
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	summary, err := runner.Run(ctx, candidates, "base", limit)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return summary
}

func (h *harness) reload(t *testing.T) (*store.Ledger, *store.Archive) {
	t.Helper()
	ledger, err := store.OpenLedger(h.cfg.LedgerPath(), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	archive, err := store.OpenArchive(h.cfg.ArchivePath(), logging.NewNop())
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	return ledger, archive
}

func threeEpisodes() []testsupport.FeedItem {
	return []testsupport.FeedItem{
		{GUID: "ep-3", Title: "Third", Description: "newest", Published: "Wed, 03 Jan 2024 10:00:00 +0000", AudioURL: "/audio/three.mp3", AudioType: "audio/mpeg"},
		{GUID: "ep-2", Title: "Second", Description: "middle", Published: "Tue, 02 Jan 2024 10:00:00 +0000", AudioURL: "/audio/two.mp3", AudioType: "audio/mpeg"},
		{GUID: "ep-1", Title: "First", Description: "oldest", Published: "Mon, 01 Jan 2024 10:00:00 +0000", AudioURL: "/audio/one.mp3", AudioType: "audio/mpeg"},
	}
}

func TestRunProcessesEpisodesEndToEnd(t *testing.T) {
	h := newHarness(t, threeEpisodes()...)

	summary := h.run(t, 5)
	if summary.Attempted != 3 || summary.Succeeded != 3 || summary.Failed != 0 || summary.Total != 3 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if h.loader.loads.Load() != 1 {
		t.Fatalf("expected model loaded once, got %d", h.loader.loads.Load())
	}

	ledger, archive := h.reload(t)
	if ledger.Count() != 3 {
		t.Fatalf("expected 3 processed ids, got %v", ledger.IDs())
	}
	episodes := archive.Episodes()
	if len(episodes) != 3 {
		t.Fatalf("expected 3 archived episodes, got %d", len(episodes))
	}
	// Feed order is newest first and each record is prepended, so the oldest
	// processed episode ends up first.
	if episodes[0].Title != "First" || episodes[2].Title != "Third" {
		t.Fatalf("unexpected archive order: %q, %q, %q", episodes[0].Title, episodes[1].Title, episodes[2].Title)
	}
	first := episodes[0]
	if first.Date != "2024-01-01" || first.Summary != "oldest" || first.Companies == nil {
		t.Fatalf("unexpected record %+v", first)
	}
	if !strings.HasPrefix(first.Content, "transcript of ") {
		t.Fatalf("unexpected content %q", first.Content)
	}
	if !ledger.Contains(first.ID) {
		t.Fatalf("ledger missing %s", first.ID)
	}
	if _, err := os.Stat(h.cfg.AudioPath(first.ID)); err != nil {
		t.Fatalf("expected audio file retained: %v", err)
	}

	out := h.out.String()
	for _, fragment := range []string{"Processing 1/3: Third", "Done: Third", "Processing 3/3: First"} {
		if !strings.Contains(out, fragment) {
			t.Fatalf("expected %q in output %q", fragment, out)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	h := newHarness(t, threeEpisodes()...)
	h.run(t, 5)

	archiveBefore, err := os.ReadFile(h.cfg.ArchivePath())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	audioHits := h.server.AudioHits.Load()

	summary := h.run(t, 5)
	if summary.Attempted != 0 || summary.Total != 3 {
		t.Fatalf("expected no work on second run, got %+v", summary)
	}
	if h.server.AudioHits.Load() != audioHits {
		t.Fatalf("expected no downloads on second run")
	}
	archiveAfter, err := os.ReadFile(h.cfg.ArchivePath())
	if err != nil {
		t.Fatalf("read archive: %v", err)
	}
	if !bytes.Equal(archiveBefore, archiveAfter) {
		t.Fatal("archive changed on idempotent run")
	}
}

func TestRunRespectsLimit(t *testing.T) {
	h := newHarness(t, threeEpisodes()...)

	summary := h.run(t, 1)
	if summary.Attempted != 1 || summary.Total != 1 {
		t.Fatalf("expected one episode processed, got %+v", summary)
	}
	_, archive := h.reload(t)
	if archive.Episodes()[0].Title != "Third" {
		t.Fatalf("expected newest episode processed first, got %q", archive.Episodes()[0].Title)
	}

	summary = h.run(t, 1)
	if summary.Attempted != 1 || summary.Total != 2 {
		t.Fatalf("expected next episode on second run, got %+v", summary)
	}
}

func TestRunReusesExistingAudio(t *testing.T) {
	h := newHarness(t, threeEpisodes()[:1]...)

	// Simulate a crash after download but before commit.
	candidates, err := feed.NewScanner(h.cfg.Feed, logging.NewNop()).Scan(context.Background(), h.cfg.Feed.URL, 1, feed.SeenFunc(func(string) bool { return false }))
	if err != nil || len(candidates) != 1 {
		t.Fatalf("scan: %v (%d)", err, len(candidates))
	}
	testsupport.WriteAudio(t, h.cfg.AudioPath(candidates[0].ID), 128)

	summary := h.run(t, 5)
	if summary.Succeeded != 1 {
		t.Fatalf("expected success, got %+v", summary)
	}
	if hits := h.server.AudioHits.Load(); hits != 0 {
		t.Fatalf("expected existing audio reused, got %d downloads", hits)
	}
}

func TestRunIsolatesEpisodeFailures(t *testing.T) {
	items := threeEpisodes()
	items[1].AudioURL = "/audio/missing.mp3"
	h := newHarness(t, items...)

	summary := h.run(t, 5)
	if summary.Attempted != 3 || summary.Succeeded != 2 || summary.Failed != 1 || summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if !strings.Contains(h.out.String(), "Error processing Second:") {
		t.Fatalf("expected failure line, got %q", h.out.String())
	}

	ledger, archive := h.reload(t)
	for _, ep := range archive.Episodes() {
		if ep.Title == "Second" {
			t.Fatal("failed episode must not be archived")
		}
	}
	if ledger.Count() != 2 {
		t.Fatalf("failed episode must not be marked processed, got %v", ledger.IDs())
	}

	// The failed episode is picked up again once its audio becomes available.
	items[1].AudioURL = h.server.AudioURL("two.mp3")
	items[0].AudioURL = h.server.AudioURL("three.mp3")
	items[2].AudioURL = h.server.AudioURL("one.mp3")
	h.server.SetFeed(testsupport.RSSFeed(items...))
	summary = h.run(t, 5)
	if summary.Attempted != 1 || summary.Succeeded != 1 || summary.Total != 3 {
		t.Fatalf("expected retry of failed episode, got %+v", summary)
	}
}

func TestRunIsolatesTranscriptionFailures(t *testing.T) {
	h := newHarness(t, threeEpisodes()...)
	candidates, err := feed.NewScanner(h.cfg.Feed, logging.NewNop()).Scan(context.Background(), h.cfg.Feed.URL, 3, feed.SeenFunc(func(string) bool { return false }))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	h.loader.transcriber.fail[candidates[0].ID] = services.Wrap(services.ErrExternalTool, services.StageTranscribe, "whisper", "exit status 1", nil)

	summary := h.run(t, 5)
	if summary.Failed != 1 || summary.Succeeded != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	_, archive := h.reload(t)
	if _, ok := archive.Get(candidates[0].ID); ok {
		t.Fatal("failed transcription must not be archived")
	}
}

func TestRunRepairsLedgerWhenArchiveAlreadyHasEpisode(t *testing.T) {
	h := newHarness(t, threeEpisodes()[:1]...)
	candidates, err := feed.NewScanner(h.cfg.Feed, logging.NewNop()).Scan(context.Background(), h.cfg.Feed.URL, 1, feed.SeenFunc(func(string) bool { return false }))
	if err != nil || len(candidates) != 1 {
		t.Fatalf("scan: %v", err)
	}

	// Archive written but ledger not, as after a crash between the two saves.
	_, archive := h.reload(t)
	if err := archive.Prepend(store.NewEpisode(candidates[0], "earlier transcript", nil)); err != nil {
		t.Fatalf("Prepend: %v", err)
	}
	if err := archive.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	summary := h.run(t, 5)
	if summary.Succeeded != 1 || summary.Total != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	ledger, archive := h.reload(t)
	if !ledger.Contains(candidates[0].ID) {
		t.Fatal("expected ledger repaired")
	}
	if archive.Count() != 1 {
		t.Fatalf("expected no duplicate record, got %d", archive.Count())
	}
}

func TestRunMixedFeedPrependsAheadOfExistingArchive(t *testing.T) {
	items := []testsupport.FeedItem{
		{GUID: "ep-seen", Title: "Already Done", Description: "seen", Published: "Fri, 05 Jan 2024 10:00:00 +0000", AudioURL: "/audio/seen.mp3", AudioType: "audio/mpeg"},
		{GUID: "ep-video", Title: "No Audio", Description: "video only", Published: "Thu, 04 Jan 2024 10:00:00 +0000", AudioURL: "/audio/video.mp4", AudioType: "video/mp4"},
		{GUID: "ep-new", Title: "Fresh Episode", Description: "valid", Published: "Wed, 03 Jan 2024 10:00:00 +0000", AudioURL: "/audio/new.mp3", AudioType: "audio/mpeg"},
	}
	h := newHarness(t, items...)

	seenID := episodeid.Fingerprint("ep-seen")
	ledger, archive := h.reload(t)
	if _, err := ledger.Add(seenID); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := ledger.Save(); err != nil {
		t.Fatalf("Save ledger: %v", err)
	}
	existing := store.Episode{ID: "0123456789ab", Date: "2023-12-31", Title: "Older Episode", Summary: "older", Content: "older transcript", Tags: []string{}, Companies: []string{}}
	if err := archive.Prepend(existing); err != nil {
		t.Fatalf("Prepend: %v", err)
	}
	if err := archive.Save(); err != nil {
		t.Fatalf("Save archive: %v", err)
	}

	summary := h.run(t, 5)
	if summary.Attempted != 1 || summary.Succeeded != 1 || summary.Failed != 0 || summary.Total != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if hits := h.server.AudioHits.Load(); hits != 1 {
		t.Fatalf("expected only the valid episode downloaded, got %d", hits)
	}

	ledger, archive = h.reload(t)
	episodes := archive.Episodes()
	if len(episodes) != 2 {
		t.Fatalf("expected 2 archived episodes, got %d", len(episodes))
	}
	newID := episodeid.Fingerprint("ep-new")
	if episodes[0].ID != newID || episodes[0].Title != "Fresh Episode" {
		t.Fatalf("expected new record first, got %+v", episodes[0])
	}
	if episodes[1].ID != existing.ID {
		t.Fatalf("expected existing record second, got %+v", episodes[1])
	}
	if !ledger.Contains(seenID) || !ledger.Contains(newID) {
		t.Fatalf("unexpected ledger %v", ledger.IDs())
	}
	if ledger.Contains(episodeid.Fingerprint("ep-video")) {
		t.Fatal("entry without audio must not be marked processed")
	}
	if strings.Contains(h.out.String(), "Already Done") || strings.Contains(h.out.String(), "No Audio") {
		t.Fatalf("skipped entries must not be processed, got %q", h.out.String())
	}
}

func TestRunCountsDuplicateEntryAsSkipped(t *testing.T) {
	var mu sync.Mutex
	var titles []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer ntfy.Close()

	// The same guid listed twice yields two candidates for one fingerprint.
	items := []testsupport.FeedItem{
		{GUID: "ep-dup", Title: "Reposted", Description: "again", Published: "Tue, 02 Jan 2024 10:00:00 +0000", AudioURL: "/audio/dup.mp3", AudioType: "audio/mpeg"},
		{GUID: "ep-dup", Title: "Original", Description: "first", Published: "Mon, 01 Jan 2024 10:00:00 +0000", AudioURL: "/audio/dup.mp3", AudioType: "audio/mpeg"},
	}
	h := newHarness(t, items...)
	h.notifier = notifications.NewService(testsupport.NewConfig(t, testsupport.WithNtfyTopic(ntfy.URL)))
	journal, err := history.OpenStore(h.cfg.History.Path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	h.journal = journal

	summary := h.run(t, 5)
	if summary.Attempted != 2 || summary.Succeeded != 1 || summary.Skipped != 1 || summary.Failed != 0 || summary.Total != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	out := h.out.String()
	if strings.Count(out, "Done:") != 1 || !strings.Contains(out, "Skipped (already processed): Original") {
		t.Fatalf("unexpected output %q", out)
	}

	mu.Lock()
	transcribed := 0
	for _, title := range titles {
		if title == "Podscribe - Episode Transcribed" {
			transcribed++
		}
	}
	mu.Unlock()
	if transcribed != 1 {
		t.Fatalf("expected 1 transcribed notification, got %v", titles)
	}

	attempts, err := journal.AttemptsForEpisode(context.Background(), episodeid.Fingerprint("ep-dup"))
	if err != nil {
		t.Fatalf("AttemptsForEpisode: %v", err)
	}
	statuses := map[string]int{}
	for _, a := range attempts {
		statuses[a.Status]++
	}
	if statuses[history.AttemptSucceeded] != 1 || statuses[history.AttemptSkipped] != 1 {
		t.Fatalf("unexpected attempt statuses %v", statuses)
	}
}

func TestRunJournalsAttempts(t *testing.T) {
	items := threeEpisodes()
	items[2].AudioURL = "/audio/missing.mp3"
	h := newHarness(t, items...)
	journal, err := history.OpenStore(h.cfg.History.Path)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	t.Cleanup(func() { _ = journal.Close() })
	h.journal = journal

	h.run(t, 5)

	runs, err := journal.RecentRuns(context.Background(), 5)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one run, got %d", len(runs))
	}
	run := runs[0]
	if run.Status != history.RunCompleted || run.Succeeded != 2 || run.Failed != 1 || run.Total != 2 {
		t.Fatalf("unexpected run %+v", run)
	}

	ledger, _ := h.reload(t)
	var failedID string
	candidates, _ := feed.NewScanner(h.cfg.Feed, logging.NewNop()).Scan(context.Background(), h.cfg.Feed.URL, 3, ledger)
	if len(candidates) == 1 {
		failedID = candidates[0].ID
	}
	attempts, err := journal.AttemptsForEpisode(context.Background(), failedID)
	if err != nil {
		t.Fatalf("AttemptsForEpisode: %v", err)
	}
	if len(attempts) != 1 || attempts[0].FailureKind != "not_found" {
		t.Fatalf("unexpected attempts %+v", attempts)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	h := newHarness(t, threeEpisodes()...)
	logger := logging.NewNop()
	ledger, archive := h.reload(t)
	candidates, err := feed.NewScanner(h.cfg.Feed, logger).Scan(context.Background(), h.cfg.Feed.URL, 3, ledger)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	runner, err := pipeline.NewRunner(pipeline.Deps{
		Config:  h.cfg,
		Fetcher: download.NewFetcher(h.cfg.Download, logger),
		Loader:  h.loader,
		Archive: archive,
		Ledger:  ledger,
	})
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := runner.Run(ctx, candidates, "base", 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if summary.Attempted != 0 {
		t.Fatalf("expected no attempts, got %+v", summary)
	}
}

func TestNewRunnerRequiresCollaborators(t *testing.T) {
	if _, err := pipeline.NewRunner(pipeline.Deps{}); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestRunSendsNotifications(t *testing.T) {
	var mu sync.Mutex
	var titles []string
	ntfy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
	}))
	defer ntfy.Close()

	items := threeEpisodes()
	items[0].AudioURL = "/audio/missing.mp3"
	h := newHarness(t, items...)
	h.notifier = notifications.NewService(testsupport.NewConfig(t, testsupport.WithNtfyTopic(ntfy.URL)))

	h.run(t, 5)

	mu.Lock()
	defer mu.Unlock()
	counts := map[string]int{}
	for _, title := range titles {
		counts[title]++
	}
	if counts["Podscribe - Episode Transcribed"] != 2 {
		t.Fatalf("expected 2 transcribed notifications, got %v", titles)
	}
	if counts["Podscribe - Episode Failed"] != 1 {
		t.Fatalf("expected 1 failure notification, got %v", titles)
	}
	if counts["Podscribe - Run Complete (with errors)"] != 1 {
		t.Fatalf("expected 1 run notification, got %v", titles)
	}
}
