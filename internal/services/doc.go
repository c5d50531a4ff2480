// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, episode fingerprints, and stage
//     names for logging and history.
//   - Structured error markers plus the Wrap helper so per-episode failures
//     keep a consistent classification.
//
// The transcription engines live in subpackages of internal/transcription;
// this package stays dependency-free so every layer can import it.
package services
