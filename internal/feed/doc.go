// Package feed turns a podcast feed into the list of episode candidates that
// still need processing.
//
// The scanner fetches the feed document, parses it with gofeed, and walks the
// first N entries in feed order. Each entry is fingerprinted, checked against
// the processed ledger, and resolved to an audio URL: typed entry links are
// consulted first, then enclosures, matching on an "audio/" MIME prefix.
// Entries without audio are dropped with a warning rather than failing the
// scan. Publication dates are normalized to YYYY-MM-DD, falling back to the
// current local date when the feed date is unusable.
package feed
