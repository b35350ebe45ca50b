package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"donelog/internal/config"
	"donelog/internal/eventstore"
	"donelog/internal/exitcode"
	"donelog/internal/runstate"
	"donelog/internal/weeklog"
)

func init() {
	Register(&StatusCmd{})
}

// StatusCmd prints what the workspace currently holds. It needs no backend.
type StatusCmd struct{}

func (c *StatusCmd) Name() string       { return "status" }
func (c *StatusCmd) Aliases() []string  { return nil }
func (c *StatusCmd) Synopsis() string   { return "Show workspace state" }
func (c *StatusCmd) Usage() string      { return "donelog status [common flags]" }
func (c *StatusCmd) NeedsService() bool { return false }

func (c *StatusCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *StatusCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	cfg := env.Config

	file, err := config.LoadFile(cfg.ConfigPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: config: %v\n", err)
		return exitcode.AuthError
	}

	state, err := runstate.Load(cfg.StatePath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.StorageError
	}
	lastRun := "never"
	if state.LastRunISO != "" {
		lastRun = state.LastRunISO
	}

	store, err := eventstore.Open(cfg.EventsPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.StorageError
	}

	tail, err := weeklog.ReadTail(cfg.LogPath())
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.StorageError
	}
	logLine := "not created"
	if tail.Exists {
		logLine = fmt.Sprintf("%d bytes", tail.Size)
		if tail.Heading != "" {
			logLine += ", last section " + tail.Heading
		}
	}

	token := "not set"
	if config.APIToken() != "" {
		token = "set"
	}
	if file.Backend == config.BackendGoogleTasks {
		token = "not logged in"
		if cfg.HasToken() {
			token = "logged in"
		}
	}

	fmt.Fprintf(out, "workspace:  %s\n", cfg.Dir)
	fmt.Fprintf(out, "backend:    %s (%s)\n", file.Backend, token)
	fmt.Fprintf(out, "allowlist:  %d root(s)\n", len(file.AllowedRootTaskIDs))
	fmt.Fprintf(out, "timezone:   %s\n", file.Location())
	fmt.Fprintf(out, "last run:   %s\n", lastRun)
	fmt.Fprintf(out, "events:     %d (%s)\n", store.Len(), store.Path())
	fmt.Fprintf(out, "log:        %s (%s)\n", cfg.LogPath(), logLine)
	if _, err := os.Stat(cfg.ConfigPath()); err != nil {
		fmt.Fprintf(out, "config:     %s (missing, nothing will be published)\n", cfg.ConfigPath())
	}
	return exitcode.Success
}
