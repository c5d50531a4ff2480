package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscribe/internal/feed"
	"podscribe/internal/store"
)

func TestOpenMissingFilesYieldsEmptyStores(t *testing.T) {
	dir := t.TempDir()
	ledger, err := store.OpenLedger(filepath.Join(dir, "processed.json"), nil)
	if err != nil {
		t.Fatalf("OpenLedger: %v", err)
	}
	if ledger.Count() != 0 {
		t.Fatalf("expected empty ledger, got %d", ledger.Count())
	}
	archive, err := store.OpenArchive(filepath.Join(dir, "episodes.json"), nil)
	if err != nil {
		t.Fatalf("OpenArchive: %v", err)
	}
	if archive.Count() != 0 {
		t.Fatalf("expected empty archive, got %d", archive.Count())
	}
}

func TestMalformedDocumentsAreFatal(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "processed.json")
	archivePath := filepath.Join(dir, "episodes.json")
	for _, path := range []string{ledgerPath, archivePath} {
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := store.OpenLedger(ledgerPath, nil); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt from ledger, got %v", err)
	}
	if _, err := store.OpenArchive(archivePath, nil); !errors.Is(err, store.ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt from archive, got %v", err)
	}

	data, err := os.ReadFile(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{not json" {
		t.Fatalf("corrupt archive must be left untouched, got %q", data)
	}
}

func TestLedgerSetSemanticsAndPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "processed.json")
	ledger, err := store.OpenLedger(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"aaaaaaaaaaaa", "bbbbbbbbbbbb", "aaaaaaaaaaaa"} {
		if _, err := ledger.Add(id); err != nil {
			t.Fatal(err)
		}
	}
	if added, _ := ledger.Add("bbbbbbbbbbbb"); added {
		t.Fatal("expected duplicate add to report false")
	}
	if ledger.Count() != 2 {
		t.Fatalf("expected 2 ids, got %d", ledger.Count())
	}
	if _, err := ledger.Add(""); err == nil {
		t.Fatal("expected empty id to be rejected")
	}
	if err := ledger.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"processed": [`) {
		t.Fatalf("unexpected document shape: %s", data)
	}

	reloaded, err := store.OpenLedger(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !reloaded.Contains("aaaaaaaaaaaa") || !reloaded.Contains("bbbbbbbbbbbb") {
		t.Fatalf("expected reloaded ledger to contain both ids, got %v", reloaded.IDs())
	}
}

func TestArchivePrependOrderAndDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.json")
	archive, err := store.OpenArchive(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"first0000000", "second000000", "third0000000"} {
		if err := archive.Prepend(store.Episode{ID: id, Title: id}); err != nil {
			t.Fatal(err)
		}
	}
	if err := archive.Prepend(store.Episode{ID: "second000000"}); err == nil {
		t.Fatal("expected duplicate id to be rejected")
	}

	episodes := archive.Episodes()
	got := []string{episodes[0].ID, episodes[1].ID, episodes[2].ID}
	want := []string{"third0000000", "second000000", "first0000000"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected newest-first order %v, got %v", want, got)
		}
	}
	if _, ok := archive.Get("second000000"); !ok {
		t.Fatal("expected Get to find record")
	}
}

func TestArchiveRoundTripPreservesNonASCII(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.json")
	archive, err := store.OpenArchive(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	original := store.Episode{
		ID:        "abc123def456",
		Date:      "2024-03-05",
		Title:     "Café <Talk> & «Ideas» 日本",
		Summary:   "Résumé",
		Content:   "Transcript with ünïcödé",
		Tags:      []string{"tech", "news"},
		Companies: []string{"Acme"},
	}
	if err := archive.Prepend(original); err != nil {
		t.Fatal(err)
	}
	if err := archive.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, fragment := range []string{"Café <Talk> & «Ideas» 日本", `"episodes": [`, "\n    {"} {
		if !strings.Contains(text, fragment) {
			t.Fatalf("expected %q literally in document:\n%s", fragment, text)
		}
	}

	reloaded, err := store.OpenArchive(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, ok := reloaded.Get(original.ID)
	if !ok {
		t.Fatal("record missing after reload")
	}
	if got.Title != original.Title || got.Content != original.Content || got.Companies[0] != "Acme" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if err := reloaded.Save(); err != nil {
		t.Fatal(err)
	}
	again, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(again) != text {
		t.Fatalf("load/save changed document:\n%s\nvs\n%s", text, again)
	}
}

func TestNewEpisodeShapesRecord(t *testing.T) {
	candidate := feed.Candidate{
		ID:      "abc123def456",
		Title:   "Episode",
		Date:    "2024-01-02",
		Summary: strings.Repeat("x", 250),
	}
	ep := store.NewEpisode(candidate, "hello world", []string{"tech", "news"})
	if ep.Summary != strings.Repeat("x", 200)+"..." {
		t.Fatalf("expected truncated summary, got %d chars", len(ep.Summary))
	}
	if ep.Content != "hello world" {
		t.Fatalf("unexpected content %q", ep.Content)
	}
	if ep.Companies == nil || len(ep.Companies) != 0 {
		t.Fatalf("expected empty non-nil companies, got %#v", ep.Companies)
	}

	candidate.Summary = strings.Repeat("y", 150)
	ep = store.NewEpisode(candidate, "", nil)
	if ep.Summary != candidate.Summary {
		t.Fatalf("expected short summary unchanged")
	}
	if ep.Tags == nil {
		t.Fatal("expected non-nil tags")
	}
}

func TestCompaniesEncodeAsEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "episodes.json")
	archive, err := store.OpenArchive(path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := archive.Prepend(store.Episode{ID: "abc123def456"}); err != nil {
		t.Fatal(err)
	}
	if err := archive.Save(); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"companies": []`) || strings.Contains(string(data), "null") {
		t.Fatalf("expected empty arrays, got %s", data)
	}
}
