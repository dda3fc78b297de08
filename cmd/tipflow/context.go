package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"tipflow/internal/config"
	"tipflow/internal/queue"
)

// commandContext is shared by every subcommand. The configuration is loaded
// at most once per invocation, after flag parsing.
type commandContext struct {
	configFlag *string
	load       func() (*config.Config, error)
}

func newCommandContext(configFlag *string) *commandContext {
	c := &commandContext{configFlag: configFlag}
	c.load = sync.OnceValues(func() (*config.Config, error) {
		cfg, _, _, err := config.Load(c.configPath())
		if err != nil {
			return nil, err
		}
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, err
		}
		return cfg, nil
	})
	return c
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

func (c *commandContext) ensureConfig() (*config.Config, error) { return c.load() }

// withStore opens the run log for the duration of fn. WAL mode lets the CLI
// read and write it while the daemon is running.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

// shouldSkipConfig reports whether cmd or one of its parents opts out of the
// root command's config load, as `config init` and `config validate` do.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
