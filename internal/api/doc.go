// Package api defines wire-format types and converters for the HTTP API and
// the CLI. It translates internal run and step models into transport-friendly
// DTOs so consumers never couple to the store's types.
//
// # Key Types
//
// Run: transport representation of a workflow run with its triggering event
// and output passed through as raw JSON.
//
// Step: one checkpoint from a run's step log.
//
// WorkflowStatus: manager running state, queue stats, workflow health, and
// the most recent run.
//
// DaemonStatus: aggregated runtime information for GET /api/status.
//
// # Converters
//
// FromRun/FromRuns/FromStep: queue models -> DTOs.
//
// FromStatusSummary: workflow.StatusSummary -> WorkflowStatus.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Enums are exposed as lowercase strings.
// Timestamps use RFC3339 with milliseconds. Event and output payloads are
// json.RawMessage to avoid double-encoding.
package api
