// Package logs reads the daemon's JSON log file for the CLI.
//
// Tail prints the last N matching records and, in follow mode, polls the
// file for new ones until the context ends. Filters select records for a
// single run or at a minimum level.
package logs
