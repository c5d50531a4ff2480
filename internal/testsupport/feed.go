package testsupport

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

// FeedItem describes one entry in a generated feed document.
type FeedItem struct {
	GUID        string
	Link        string
	Title       string
	Description string
	Published   string
	// AudioURL and AudioType render as an enclosure. Empty AudioURL omits it.
	AudioURL  string
	AudioType string
	// TypedLinkURL and TypedLinkType render as an extra typed <link> in Atom.
	TypedLinkURL  string
	TypedLinkType string
}

// RSSFeed renders an RSS 2.0 document.
func RSSFeed(items ...FeedItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<rss version="2.0"><channel><title>Test Podcast</title><link>https://example.com</link><description>test</description>` + "\n")
	for _, item := range items {
		b.WriteString("<item>")
		fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(item.Title))
		if item.GUID != "" {
			fmt.Fprintf(&b, `<guid isPermaLink="false">%s</guid>`, html.EscapeString(item.GUID))
		}
		if item.Link != "" {
			fmt.Fprintf(&b, "<link>%s</link>", html.EscapeString(item.Link))
		}
		if item.Description != "" {
			fmt.Fprintf(&b, "<description>%s</description>", html.EscapeString(item.Description))
		}
		if item.Published != "" {
			fmt.Fprintf(&b, "<pubDate>%s</pubDate>", item.Published)
		}
		if item.AudioURL != "" {
			fmt.Fprintf(&b, `<enclosure url="%s" length="1" type="%s"/>`, html.EscapeString(item.AudioURL), item.AudioType)
		}
		b.WriteString("</item>\n")
	}
	b.WriteString("</channel></rss>\n")
	return b.String()
}

// AtomFeed renders an Atom 1.0 document. TypedLinkURL is emitted before the
// enclosure link.
func AtomFeed(items ...FeedItem) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	b.WriteString(`<feed xmlns="http://www.w3.org/2005/Atom"><title>Test Podcast</title><id>urn:test:feed</id><updated>2024-01-01T00:00:00Z</updated>` + "\n")
	for _, item := range items {
		b.WriteString("<entry>")
		fmt.Fprintf(&b, "<title>%s</title>", html.EscapeString(item.Title))
		if item.GUID != "" {
			fmt.Fprintf(&b, "<id>%s</id>", html.EscapeString(item.GUID))
		}
		if item.Link != "" {
			fmt.Fprintf(&b, `<link rel="alternate" type="text/html" href="%s"/>`, html.EscapeString(item.Link))
		}
		if item.TypedLinkURL != "" {
			fmt.Fprintf(&b, `<link rel="alternate" type="%s" href="%s"/>`, item.TypedLinkType, html.EscapeString(item.TypedLinkURL))
		}
		if item.AudioURL != "" {
			fmt.Fprintf(&b, `<link rel="enclosure" type="%s" href="%s"/>`, item.AudioType, html.EscapeString(item.AudioURL))
		}
		if item.Description != "" {
			fmt.Fprintf(&b, "<summary>%s</summary>", html.EscapeString(item.Description))
		}
		if item.Published != "" {
			fmt.Fprintf(&b, "<published>%s</published>", item.Published)
		}
		b.WriteString("</entry>\n")
	}
	b.WriteString("</feed>\n")
	return b.String()
}

// PodcastServer serves a feed document at /feed.xml and audio bytes at
// /audio/<name>. Hits counts audio requests.
type PodcastServer struct {
	*httptest.Server
	Feed      atomic.Value
	AudioHits atomic.Int64
	FeedHits  atomic.Int64
}

// NewPodcastServer starts a server that serves feedBody. Feed items should
// reference audio as server.URL + "/audio/<name>"; use AudioURL to build them.
func NewPodcastServer(t testing.TB, feedBody string) *PodcastServer {
	t.Helper()
	ps := &PodcastServer{}
	ps.Feed.Store(feedBody)
	mux := http.NewServeMux()
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, _ *http.Request) {
		ps.FeedHits.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(ps.Feed.Load().(string)))
	})
	mux.HandleFunc("/audio/", func(w http.ResponseWriter, r *http.Request) {
		ps.AudioHits.Add(1)
		name := strings.TrimPrefix(r.URL.Path, "/audio/")
		if strings.HasPrefix(name, "missing") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3 fake audio for " + name))
	})
	ps.Server = httptest.NewServer(mux)
	t.Cleanup(ps.Close)
	return ps
}

// FeedURL returns the served feed location.
func (ps *PodcastServer) FeedURL() string {
	return ps.URL + "/feed.xml"
}

// AudioURL returns a served audio location for name.
func (ps *PodcastServer) AudioURL(name string) string {
	return ps.URL + "/audio/" + name
}

// SetFeed replaces the served feed document.
func (ps *PodcastServer) SetFeed(body string) {
	ps.Feed.Store(body)
}
