// Command tipflow is the operator CLI for the tip video upload pipeline.
//
// It runs the daemon in the foreground, emits upload events straight into
// the run store, inspects and retries runs, validates configuration, and
// sends test notifications. Every command except daemon works against the
// SQLite run store directly, so it is safe to use while a daemon is running.
package main
