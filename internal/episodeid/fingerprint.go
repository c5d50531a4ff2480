package episodeid

import (
	"crypto/md5" //nolint:gosec // identity hash, not a security boundary
	"encoding/hex"
	"strings"
)

// Length is the number of hex characters kept from the digest.
const Length = 12

// Identifier picks the canonical identifier for a feed entry: its id when
// present, else its link, else the empty string.
func Identifier(id, link string) string {
	if strings.TrimSpace(id) != "" {
		return id
	}
	if strings.TrimSpace(link) != "" {
		return link
	}
	return ""
}

// Fingerprint derives the stable short key used as the episode primary key and
// deduplication token.
//
// Entries without an id or a link all hash the empty string and therefore
// share one fingerprint; only the first such entry is ever processed.
func Fingerprint(identifier string) string {
	sum := md5.Sum([]byte(identifier)) //nolint:gosec
	return hex.EncodeToString(sum[:])[:Length]
}

// Valid reports whether value has the shape of a fingerprint.
func Valid(value string) bool {
	if len(value) != Length {
		return false
	}
	for _, r := range value {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f':
		default:
			return false
		}
	}
	return true
}
