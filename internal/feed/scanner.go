package feed

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/mmcdole/gofeed/atom"

	"podscribe/internal/config"
	"podscribe/internal/episodeid"
	"podscribe/internal/logging"
	"podscribe/internal/services"
)

const maxFeedBytes = 32 << 20

// Option customizes a Scanner.
type Option func(*Scanner)

// WithHTTPClient overrides the HTTP client used to fetch the feed.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scanner) {
		if client != nil {
			s.client = client
		}
	}
}

// WithClock overrides the time source used for the date fallback.
func WithClock(now func() time.Time) Option {
	return func(s *Scanner) {
		if now != nil {
			s.now = now
		}
	}
}

// Scanner fetches a feed and selects new episode candidates.
type Scanner struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
	now       func() time.Time
}

// NewScanner constructs a scanner using the feed configuration.
func NewScanner(cfg config.Feed, logger *slog.Logger, opts ...Option) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	timeout := time.Duration(cfg.RequestTimeoutSeconds) * time.Second
	s := &Scanner{
		client:    &http.Client{Timeout: timeout},
		userAgent: strings.TrimSpace(cfg.UserAgent),
		logger:    logging.NewComponentLogger(logger, "feed"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan fetches feedURL and returns candidates from its first fetchCount
// entries, preserving feed order. Entries already in seen and entries with no
// audio URL are skipped.
func (s *Scanner) Scan(ctx context.Context, feedURL string, fetchCount int, seen Seen) ([]Candidate, error) {
	ctx = services.WithStage(ctx, services.StageScan)
	logger := logging.WithContext(ctx, s.logger)

	entries, err := s.Fetch(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	logger.Debug("feed fetched",
		logging.String("url", feedURL),
		logging.Int("entry_count", len(entries)))

	return s.Select(ctx, entries, fetchCount, seen), nil
}

// Select applies the candidate rules to already parsed entries.
func (s *Scanner) Select(ctx context.Context, entries []Entry, fetchCount int, seen Seen) []Candidate {
	logger := logging.WithContext(ctx, s.logger)
	if fetchCount <= 0 {
		return nil
	}
	if fetchCount < len(entries) {
		entries = entries[:fetchCount]
	}

	now := s.now()
	candidates := make([]Candidate, 0, len(entries))
	for _, entry := range entries {
		id := episodeid.Fingerprint(episodeid.Identifier(entry.ID, entry.Link))
		if seen != nil && seen.Contains(id) {
			logger.Info("already processed", logging.Args(logging.Episode(id, entry.Title)...)...)
			continue
		}

		audioURL, ok := ResolveAudioURL(entry)
		if !ok {
			logging.WarnWithContext(logger, "no audio URL found", "feed_entry_without_audio",
				append(logging.Episode(id, entry.Title),
					logging.String(logging.FieldErrorHint, "entry has no audio/* link or enclosure"),
					logging.String(logging.FieldImpact, "entry skipped"))...)
			continue
		}

		candidates = append(candidates, Candidate{
			ID:       id,
			Title:    entry.Title,
			Date:     NormalizeDate(entry.Published, entry.PublishedParsed, now),
			Summary:  entry.Summary,
			AudioURL: audioURL,
		})
	}
	return candidates
}

// Fetch downloads and parses the feed into entries.
func (s *Scanner) Fetch(ctx context.Context, feedURL string) ([]Entry, error) {
	body, err := s.download(ctx, feedURL)
	if err != nil {
		return nil, err
	}
	return Parse(body)
}

func (s *Scanner) download(ctx context.Context, feedURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, services.StageScan, "build request", "invalid feed url", err)
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageScan, "fetch feed", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		marker := services.ErrTransient
		if resp.StatusCode == http.StatusNotFound {
			marker = services.ErrNotFound
		}
		return nil, services.Wrap(marker, services.StageScan, "fetch feed", feedURL, fmt.Errorf("unexpected status %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, services.StageScan, "read feed", feedURL, err)
	}
	return body, nil
}

// Parse converts a raw RSS or Atom document into entries. Atom documents are
// parsed a second time with the Atom parser so entry links keep their MIME
// types.
func Parse(data []byte) ([]Entry, error) {
	parsed, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, services.StageScan, "parse feed", "unreadable feed document", err)
	}

	var atomEntries []*atom.Entry
	if parsed.FeedType == "atom" {
		atomFeed, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, services.StageScan, "parse feed", "unreadable atom document", err)
		}
		atomEntries = atomFeed.Entries
	}

	entries := make([]Entry, 0, len(parsed.Items))
	for idx, item := range parsed.Items {
		if item == nil {
			continue
		}
		entry := Entry{
			ID:              item.GUID,
			Link:            item.Link,
			Title:           item.Title,
			Summary:         item.Description,
			Published:       item.Published,
			PublishedParsed: item.PublishedParsed,
		}
		if idx < len(atomEntries) && atomEntries[idx] != nil {
			for _, link := range atomEntries[idx].Links {
				if link == nil {
					continue
				}
				entry.Links = append(entry.Links, Link{Href: link.Href, Type: link.Type, Rel: link.Rel})
			}
		}
		for _, enc := range item.Enclosures {
			if enc == nil {
				continue
			}
			entry.Enclosures = append(entry.Enclosures, Link{Href: enc.URL, Type: enc.Type, Rel: "enclosure"})
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
