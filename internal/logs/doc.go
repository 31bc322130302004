// Package logs reads the JSON log file written by the daemon and CLI.
//
// Last returns the trailing lines with bounded memory, Follow polls for
// appended lines until its context ends, and Filter narrows records to a job
// or a minimum level.
package logs
