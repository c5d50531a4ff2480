// Package textutil provides small text helpers shared by the feed scanner and
// the CLI.
//
// Truncate shortens summaries on rune boundaries so multi-byte text is never
// split mid-character. Matcher performs case- and diacritic-insensitive
// substring search for the episodes search command.
package textutil
