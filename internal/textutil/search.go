package textutil

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/search"
)

// Matcher finds query text inside episode fields ignoring case and
// diacritics, so "cafe" matches "Café".
type Matcher struct {
	matcher *search.Matcher
}

// NewMatcher builds a language-neutral matcher.
func NewMatcher() *Matcher {
	return &Matcher{matcher: search.New(language.Und, search.IgnoreCase, search.IgnoreDiacritics)}
}

// Contains reports whether query occurs in text. An empty query matches
// everything.
func (m *Matcher) Contains(text, query string) bool {
	query = strings.TrimSpace(query)
	if query == "" {
		return true
	}
	if text == "" {
		return false
	}
	start, _ := m.matcher.IndexString(text, query)
	return start >= 0
}

// ContainsAny reports whether query occurs in any of fields.
func (m *Matcher) ContainsAny(query string, fields ...string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	for _, field := range fields {
		if m.Contains(field, query) {
			return true
		}
	}
	return false
}
