// Package pipeline runs episode candidates through acquire, transcribe,
// shape, commit, and report, one episode at a time.
//
// Failures are isolated per episode: a download or transcription error is
// logged, notified, and journaled, and the run moves on without committing
// anything for that episode. Only a failure to persist the archive or ledger
// aborts the run. The archive document is written before the ledger, and a
// commit is skipped when the ledger already holds the fingerprint, so an
// interrupted or overlapping run can at worst redo work, never duplicate a
// record.
package pipeline
