// Package daemon coordinates the long-running tipflow process.
//
// It wires configuration, the run store, the workflow manager, the optional
// AMQP consumer, and the HTTP API into a single lifecycle with flock-based
// locking to prevent multiple instances. Start runs preflight checks, returns
// runs orphaned by a previous process to pending, and then starts workers,
// intake, and the API. The daemon also exposes the run inspection and retry
// helpers the API serves.
//
// Keep orchestration logic here: workflow steps live in their own packages
// while the daemon focuses on startup, shutdown, and intake.
package daemon
