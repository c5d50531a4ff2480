package store

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"podscribe/internal/logging"
)

type archiveDocument struct {
	Episodes []Episode `json:"episodes"`
}

// Archive holds processed episode records, newest first.
type Archive struct {
	path   string
	logger *slog.Logger

	mu       sync.RWMutex
	episodes []Episode
}

// OpenArchive loads the archive at path. A missing file yields an empty
// archive.
func OpenArchive(path string, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	a := &Archive{
		path:   path,
		logger: logging.NewComponentLogger(logger, "archive"),
	}

	var doc archiveDocument
	found, err := readDocument(path, &doc)
	if err != nil {
		return nil, err
	}
	a.episodes = make([]Episode, 0, len(doc.Episodes))
	for _, ep := range doc.Episodes {
		a.episodes = append(a.episodes, ep.normalize())
	}
	if found {
		a.logger.Debug("loaded episode archive",
			logging.Int("entry_count", len(a.episodes)),
			logging.String("path", path))
	}
	return a, nil
}

// Path returns the document location.
func (a *Archive) Path() string { return a.path }

// Prepend inserts ep at the front of the archive. Records with an id already
// present are rejected.
func (a *Archive) Prepend(ep Episode) error {
	if strings.TrimSpace(ep.ID) == "" {
		return fmt.Errorf("episode id cannot be empty")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, existing := range a.episodes {
		if existing.ID == ep.ID {
			return fmt.Errorf("episode %s already archived", ep.ID)
		}
	}
	a.episodes = append([]Episode{ep.normalize()}, a.episodes...)
	return nil
}

// Episodes returns a copy of the records in archive order.
func (a *Archive) Episodes() []Episode {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]Episode, len(a.episodes))
	copy(out, a.episodes)
	return out
}

// Get returns the record with the given id.
func (a *Archive) Get(id string) (Episode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, ep := range a.episodes {
		if ep.ID == id {
			return ep, true
		}
	}
	return Episode{}, false
}

// Count returns the number of archived records.
func (a *Archive) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.episodes)
}

// Save writes the archive to disk.
func (a *Archive) Save() error {
	a.mu.RLock()
	doc := archiveDocument{Episodes: make([]Episode, len(a.episodes))}
	copy(doc.Episodes, a.episodes)
	a.mu.RUnlock()
	return writeDocument(a.path, doc)
}
