// Package store persists the two documents that make up podscribe's durable
// state: the processed-ID ledger and the newest-first episode archive.
//
// Both documents are loaded fully into memory, mutated by the pipeline, and
// written back with an atomic temp-file rename after every committed episode.
// A missing file is an empty store; a malformed one is a fatal error so that a
// corrupt archive is never silently overwritten.
package store
