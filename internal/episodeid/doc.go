// Package episodeid derives the fingerprints that identify feed entries.
//
// A fingerprint is the first 12 hex characters of the MD5 digest of the
// entry's id (falling back to its link). It doubles as the archive primary
// key, the ledger token, and the local audio file name, so its derivation
// must never change once episodes have been recorded.
package episodeid
