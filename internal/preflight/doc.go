// Package preflight provides readiness checks for the filesystem paths,
// binaries, and feed endpoint podscribe depends on.
//
// The "podscribe doctor" command runs every check and prints the results.
// Checks never mutate state: missing directories are reported, not created.
package preflight
