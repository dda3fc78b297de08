// Package logging builds the slog loggers used by the daemon and the CLI.
//
// Records go to a console or JSON handler on stdout and, when a log
// directory is configured, to a JSON file that `tipflow logs` tails. Run ids,
// step names, and correlation ids ride on the context and are attached with
// WithContext. Credential-looking keys are redacted by both handlers.
package logging
