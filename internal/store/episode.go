package store

import (
	"podscribe/internal/feed"
	"podscribe/internal/textutil"
)

// Episode is one processed episode as persisted in the archive. Field order
// defines the JSON key order.
type Episode struct {
	ID        string   `json:"id"`
	Date      string   `json:"date"`
	Title     string   `json:"title"`
	Summary   string   `json:"summary"`
	Content   string   `json:"content"`
	Tags      []string `json:"tags"`
	Companies []string `json:"companies"`
}

// NewEpisode shapes a transcribed candidate into an archive record. The summary
// is truncated to textutil.SummaryLimit characters and companies starts empty.
func NewEpisode(candidate feed.Candidate, transcript string, tags []string) Episode {
	return Episode{
		ID:        candidate.ID,
		Date:      candidate.Date,
		Title:     candidate.Title,
		Summary:   textutil.Summarize(candidate.Summary),
		Content:   transcript,
		Tags:      cloneStrings(tags),
		Companies: []string{},
	}
}

// normalize replaces nil slices so they encode as [] rather than null.
func (e Episode) normalize() Episode {
	if e.Tags == nil {
		e.Tags = []string{}
	}
	if e.Companies == nil {
		e.Companies = []string{}
	}
	return e
}

func cloneStrings(values []string) []string {
	out := make([]string, len(values))
	copy(out, values)
	return out
}
