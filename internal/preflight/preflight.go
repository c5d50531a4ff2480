package preflight

import (
	"context"

	"podscribe/internal/config"
	"podscribe/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the directory and feed checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Audio directory", cfg.Paths.AudioDir),
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckFeed(ctx, cfg.Feed.URL, cfg.Feed.UserAgent),
	}
	return results
}

// Failed reports whether any result or required dependency did not pass.
func Failed(results []Result, statuses []deps.Status) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return true
		}
	}
	return false
}
