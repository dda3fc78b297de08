package preflight

import (
	"context"
	"errors"
	"fmt"

	"tipflow/internal/config"
)

// Result is the outcome of one check, rendered as a row by `tipflow config
// validate` and logged by the daemon before it starts.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

func (r Result) err() error {
	if r.Passed {
		return nil
	}
	return fmt.Errorf("%s: %s", r.Name, r.Detail)
}

// RunAll checks the directories, vendor credentials, and, when the broker
// intake is enabled, that the AMQP endpoint accepts connections.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	checks := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckIntegrations(cfg),
	}
	if cfg.Broker.Enabled {
		checks = append(checks, CheckBroker(ctx, cfg.Broker.URL))
	}
	return checks
}

// Failures collapses every failed result into one error. It returns nil when
// all checks passed.
func Failures(results []Result) error {
	errs := make([]error, 0, len(results))
	for _, r := range results {
		if err := r.err(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("preflight checks failed: %w", errors.Join(errs...))
}
