// Package download retrieves episode audio over HTTP.
//
// Each attempt runs under its own timeout and streams into "<dest>.part",
// which is renamed onto dest only after the body has been fully written and
// synced. Transient failures are retried with exponential backoff; client
// errors other than 408 and 429 are treated as permanent.
package download
