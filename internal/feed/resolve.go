package feed

import (
	"net/mail"
	"strings"
	"time"
)

const (
	audioMIMEPrefix = "audio/"
	dateLayout      = "2006-01-02"
)

// ResolveAudioURL returns the first entry link whose MIME type starts with
// "audio/", falling back to the first such enclosure. Matching is a strict
// prefix test; entries typed only as video or application are not audio.
func ResolveAudioURL(entry Entry) (string, bool) {
	if href, ok := firstAudio(entry.Links); ok {
		return href, true
	}
	return firstAudio(entry.Enclosures)
}

func firstAudio(links []Link) (string, bool) {
	for _, link := range links {
		if strings.HasPrefix(link.Type, audioMIMEPrefix) && strings.TrimSpace(link.Href) != "" {
			return link.Href, true
		}
	}
	return "", false
}

// NormalizeDate converts a feed publication date to YYYY-MM-DD.
//
// RFC 2822 strings are formatted in the zone they carry. Otherwise the
// parser's own timestamp is used, and when neither is available the date of
// now in the local zone is returned.
func NormalizeDate(raw string, parsed *time.Time, now time.Time) string {
	if raw = strings.TrimSpace(raw); raw != "" {
		if t, err := mail.ParseDate(raw); err == nil {
			return t.Format(dateLayout)
		}
	}
	if parsed != nil && !parsed.IsZero() {
		return parsed.Format(dateLayout)
	}
	return now.Local().Format(dateLayout)
}
