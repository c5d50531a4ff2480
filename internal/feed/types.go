package feed

import "time"

// Link is a typed reference attached to an entry, either an entry-level link
// or an enclosure.
type Link struct {
	Href string
	Type string
	Rel  string
}

// Entry is the subset of a parsed feed item the scanner relies on.
type Entry struct {
	ID              string
	Link            string
	Title           string
	Summary         string
	Published       string
	PublishedParsed *time.Time
	Links           []Link
	Enclosures      []Link
}

// Candidate is a feed entry that has not been processed yet and has a
// resolvable audio URL.
type Candidate struct {
	ID       string
	Title    string
	Date     string
	Summary  string
	AudioURL string
}

// Seen reports whether an episode fingerprint has already been committed.
type Seen interface {
	Contains(id string) bool
}

// SeenFunc adapts a function to the Seen interface.
type SeenFunc func(id string) bool

// Contains implements Seen.
func (f SeenFunc) Contains(id string) bool { return f(id) }
