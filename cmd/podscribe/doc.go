// Command podscribe scans a podcast feed, transcribes new episodes, and
// appends them to a JSON archive.
//
// Running podscribe with no subcommand processes up to --limit new episodes.
// Subcommands inspect the archive, the run history, and the environment.
package main
