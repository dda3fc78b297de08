// Package queue persists workflow runs and their step log in SQLite.
//
// The Store manages the database connection, first-use table creation, run
// claiming, heartbeat tracking, stale-run recovery, and the per-step
// checkpoints that let a resumed run skip work it already committed. Runs
// capture the triggering event payload and the final output; steps capture
// each durable step's status, attempt count, and JSON result keyed by
// (run id, step name).
//
// The layout version lives in PRAGMA user_version. Open refuses a database
// stamped with another version; operators remove it to adopt a new layout.
package queue
