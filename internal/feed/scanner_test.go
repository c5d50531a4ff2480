package feed_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/episodeid"
	"podscribe/internal/feed"
	"podscribe/internal/services"
	"podscribe/internal/testsupport"
)

func newScanner(now time.Time) *feed.Scanner {
	cfg := config.Default()
	return feed.NewScanner(cfg.Feed, nil, feed.WithClock(func() time.Time { return now }))
}

func TestScanReturnsCandidatesInFeedOrder(t *testing.T) {
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.RSSFeed(
		testsupport.FeedItem{GUID: "g-3", Title: "Third", Published: "Wed, 03 Jan 2024 10:00:00 +0000", AudioURL: srv.AudioURL("3.mp3"), AudioType: "audio/mpeg", Description: "three"},
		testsupport.FeedItem{GUID: "g-2", Title: "Second", Published: "Tue, 02 Jan 2024 10:00:00 +0000", AudioURL: srv.AudioURL("2.mp3"), AudioType: "audio/mpeg"},
		testsupport.FeedItem{GUID: "g-1", Title: "First", Published: "Mon, 01 Jan 2024 10:00:00 +0000", AudioURL: srv.AudioURL("1.mp3"), AudioType: "audio/mpeg"},
	))

	candidates, err := newScanner(time.Now()).Scan(context.Background(), srv.FeedURL(), 5, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(candidates) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(candidates))
	}
	wantTitles := []string{"Third", "Second", "First"}
	for i, c := range candidates {
		if c.Title != wantTitles[i] {
			t.Fatalf("candidate %d: got %q, want %q", i, c.Title, wantTitles[i])
		}
	}
	first := candidates[0]
	if first.ID != episodeid.Fingerprint("g-3") {
		t.Fatalf("unexpected fingerprint %q", first.ID)
	}
	if first.Date != "2024-01-03" {
		t.Fatalf("unexpected date %q", first.Date)
	}
	if first.Summary != "three" {
		t.Fatalf("unexpected summary %q", first.Summary)
	}
	if first.AudioURL != srv.AudioURL("3.mp3") {
		t.Fatalf("unexpected audio url %q", first.AudioURL)
	}
}

func TestScanHonorsFetchCountAndSeen(t *testing.T) {
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.RSSFeed(
		testsupport.FeedItem{GUID: "a", Title: "A", AudioURL: srv.AudioURL("a.mp3"), AudioType: "audio/mpeg"},
		testsupport.FeedItem{GUID: "b", Title: "B", AudioURL: srv.AudioURL("b.mp3"), AudioType: "audio/mpeg"},
		testsupport.FeedItem{GUID: "c", Title: "C", AudioURL: srv.AudioURL("c.mp3"), AudioType: "audio/mpeg"},
	))

	seen := feed.SeenFunc(func(id string) bool { return id == episodeid.Fingerprint("a") })
	candidates, err := newScanner(time.Now()).Scan(context.Background(), srv.FeedURL(), 2, seen)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Title != "B" {
		t.Fatalf("expected only B within the first two entries, got %+v", candidates)
	}
}

func TestScanDropsEntriesWithoutAudio(t *testing.T) {
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.RSSFeed(
		testsupport.FeedItem{GUID: "video", Title: "Video", AudioURL: srv.AudioURL("v.mp4"), AudioType: "video/mp4"},
		testsupport.FeedItem{GUID: "none", Title: "None"},
		testsupport.FeedItem{GUID: "ok", Title: "Ok", AudioURL: srv.AudioURL("ok.mp3"), AudioType: "audio/x-m4a"},
	))

	candidates, err := newScanner(time.Now()).Scan(context.Background(), srv.FeedURL(), 10, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Title != "Ok" {
		t.Fatalf("expected only the audio entry, got %+v", candidates)
	}
}

func TestScanAtomPrefersTypedLinkOverEnclosure(t *testing.T) {
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.AtomFeed(testsupport.FeedItem{
		GUID:          "urn:episode:1",
		Title:         "Atom Episode",
		Published:     "2024-02-10T08:30:00Z",
		TypedLinkURL:  srv.AudioURL("link.mp3"),
		TypedLinkType: "audio/mpeg",
		AudioURL:      srv.AudioURL("enclosure.wav"),
		AudioType:     "audio/wav",
	}))

	candidates, err := newScanner(time.Now()).Scan(context.Background(), srv.FeedURL(), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 {
		t.Fatalf("expected one candidate, got %d", len(candidates))
	}
	if candidates[0].AudioURL != srv.AudioURL("link.mp3") {
		t.Fatalf("expected typed link to win, got %q", candidates[0].AudioURL)
	}
	if candidates[0].Date != "2024-02-10" {
		t.Fatalf("expected ISO date fallback, got %q", candidates[0].Date)
	}
}

func TestScanFallsBackToLinkIdentifier(t *testing.T) {
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.RSSFeed(testsupport.FeedItem{
		Link: "https://example.com/ep/9", Title: "No GUID", AudioURL: srv.AudioURL("9.mp3"), AudioType: "audio/mpeg",
	}))
	candidates, err := newScanner(time.Now()).Scan(context.Background(), srv.FeedURL(), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].ID != episodeid.Fingerprint("https://example.com/ep/9") {
		t.Fatalf("expected link-derived fingerprint, got %+v", candidates)
	}
}

func TestScanUnparseableDateUsesToday(t *testing.T) {
	now := time.Date(2025, 6, 7, 12, 0, 0, 0, time.Local)
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.RSSFeed(testsupport.FeedItem{
		GUID: "x", Title: "X", Published: "sometime last week", AudioURL: srv.AudioURL("x.mp3"), AudioType: "audio/mpeg",
	}))
	candidates, err := newScanner(now).Scan(context.Background(), srv.FeedURL(), 5, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 1 || candidates[0].Date != "2025-06-07" {
		t.Fatalf("expected today's date, got %+v", candidates)
	}
}

func TestScanReportsHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newScanner(time.Now()).Scan(context.Background(), srv.URL+"/feed.xml", 5, nil)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestScanZeroFetchCount(t *testing.T) {
	srv := testsupport.NewPodcastServer(t, "")
	srv.SetFeed(testsupport.RSSFeed(testsupport.FeedItem{GUID: "a", Title: "A", AudioURL: srv.AudioURL("a.mp3"), AudioType: "audio/mpeg"}))
	candidates, err := newScanner(time.Now()).Scan(context.Background(), srv.FeedURL(), 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(candidates) != 0 {
		t.Fatalf("expected no candidates, got %d", len(candidates))
	}
}
