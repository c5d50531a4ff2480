package store

import (
	"errors"
	"log/slog"
	"strings"
	"sync"

	"podscribe/internal/logging"
)

type ledgerDocument struct {
	Processed []string `json:"processed"`
}

// Ledger is the set of fingerprints whose episodes have been committed.
type Ledger struct {
	path   string
	logger *slog.Logger

	mu    sync.RWMutex
	order []string
	index map[string]struct{}
}

// OpenLedger loads the ledger at path. A missing file yields an empty ledger.
func OpenLedger(path string, logger *slog.Logger) (*Ledger, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	l := &Ledger{
		path:   path,
		logger: logging.NewComponentLogger(logger, "ledger"),
		index:  make(map[string]struct{}),
	}

	var doc ledgerDocument
	found, err := readDocument(path, &doc)
	if err != nil {
		return nil, err
	}
	for _, id := range doc.Processed {
		l.add(id)
	}
	if found {
		l.logger.Debug("loaded processed ledger",
			logging.Int("entry_count", len(l.order)),
			logging.String("path", path))
	}
	return l, nil
}

// Path returns the document location.
func (l *Ledger) Path() string { return l.path }

// Contains reports whether id has been committed.
func (l *Ledger) Contains(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.index[id]
	return ok
}

// Add records id, returning false when it was already present.
func (l *Ledger) Add(id string) (bool, error) {
	if strings.TrimSpace(id) == "" {
		return false, errors.New("episode id cannot be empty")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.add(id), nil
}

func (l *Ledger) add(id string) bool {
	if _, ok := l.index[id]; ok {
		return false
	}
	l.index[id] = struct{}{}
	l.order = append(l.order, id)
	return true
}

// IDs returns the committed fingerprints in insertion order.
func (l *Ledger) IDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return cloneStrings(l.order)
}

// Count returns the number of committed fingerprints.
func (l *Ledger) Count() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Save writes the ledger to disk.
func (l *Ledger) Save() error {
	l.mu.RLock()
	doc := ledgerDocument{Processed: cloneStrings(l.order)}
	l.mu.RUnlock()
	return writeDocument(l.path, doc)
}
