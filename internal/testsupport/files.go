package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

// WriteAudio places a fake MP3 of size bytes at path, creating parent
// directories. The file starts with an ID3 tag marker so it resembles a
// download from PodcastServer. A size below the marker length writes just the
// marker.
func WriteAudio(t testing.TB, path string, size int) {
	t.Helper()

	payload := []byte("ID3")
	if pad := size - len(payload); pad > 0 {
		payload = append(payload, bytes.Repeat([]byte{0x42}, pad)...)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
