// Package history keeps a SQLite journal of pipeline runs and the episode
// attempts made during each run.
//
// The journal is advisory: the JSON ledger and archive remain the source of
// truth for what has been processed. Journal writes that fail are logged by
// callers and never fail an episode. When history is disabled a no-op journal
// stands in so the pipeline code path stays the same.
package history
