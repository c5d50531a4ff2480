package textutil

import (
	"strings"
	"unicode/utf8"
)

// SummaryLimit is the maximum number of characters kept in an episode summary.
const SummaryLimit = 200

// Ellipsis is appended to truncated summaries.
const Ellipsis = "..."

// Truncate returns value unchanged when it holds at most limit characters.
// Longer values are cut to their first limit characters and marker is
// appended. Characters are counted as runes.
func Truncate(value string, limit int, marker string) string {
	if limit < 0 {
		limit = 0
	}
	if utf8.RuneCountInString(value) <= limit {
		return value
	}
	count := 0
	for idx := range value {
		if count == limit {
			return value[:idx] + marker
		}
		count++
	}
	return value + marker
}

// Summarize applies the standard summary truncation to description.
func Summarize(description string) string {
	return Truncate(description, SummaryLimit, Ellipsis)
}

// CollapseWhitespace trims value and folds internal whitespace runs to single
// spaces. Used for one-line table cells.
func CollapseWhitespace(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
