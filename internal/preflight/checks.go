package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"podscribe/internal/config"
	"podscribe/internal/deps"
	"podscribe/internal/transcription"
)

const feedCheckTimeout = 10 * time.Second

// CheckFeed verifies the feed URL answers a GET with a 2xx status.
func CheckFeed(ctx context.Context, feedURL, userAgent string) Result {
	const name = "Feed"

	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return Result{Name: name, Detail: "missing url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, feedCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, feedURL, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %v)", feedURL, err)}
	}
	if ua := strings.TrimSpace(userAgent); ua != "" {
		req.Header.Set("User-Agent", ua)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: %s)", feedURL, summarizeNetError(err))}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Name: name, Detail: fmt.Sprintf("%s (status %d)", feedURL, resp.StatusCode)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", feedURL)}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the binaries the configured transcription backend
// needs.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	description := "Required for Whisper transcription"
	name := "Whisper"
	if cfg.Transcription.Backend == config.BackendWhisperX {
		name = "uvx"
		description = "Required for WhisperX-driven transcription"
	}
	return deps.CheckBinaries([]deps.Requirement{
		{
			Name:        name,
			Command:     transcription.Binary(cfg.Transcription),
			Description: description,
		},
		deps.FFmpeg(),
	})
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timed out"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timed out"
	}
	return err.Error()
}
