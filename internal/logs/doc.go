// Package logs reads the podscribe log file for the `podscribe logs` command.
//
// Last returns the final lines of the file with bounded memory, and Follow
// polls for appended lines until its context is cancelled. A missing log file
// reads as empty so the command works before the first run.
package logs
