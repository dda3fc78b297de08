// Package preflight provides readiness checks for the filesystem paths and
// integrations tipflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting workers and refuses to start
//     when a required check fails.
//   - The CLI "config validate" command prints every result.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
