// Package services defines shared utilities consumed by the ingestion steps
// and the vendor integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, step names, workflow names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that let the step runtime
//     decide between retrying a failure and failing the run outright.
//
// Use these helpers when wiring new steps or clients so operational behaviour
// (error handling, observability, retries) stays uniform across the workflow.
package services
