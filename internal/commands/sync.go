package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"donelog/internal/exitcode"
	"donelog/internal/ingest"
)

func init() {
	Register(&SyncCmd{})
	if err := DefaultRegistry.SetDefault("sync"); err != nil {
		panic(err)
	}
}

// SyncCmd runs one ingest pass over the workspace.
type SyncCmd struct {
	lookbackHours int
}

func (c *SyncCmd) Name() string       { return "sync" }
func (c *SyncCmd) Aliases() []string  { return []string{"run"} }
func (c *SyncCmd) Synopsis() string   { return "Publish newly completed tasks to the weekly log" }
func (c *SyncCmd) Usage() string      { return "donelog sync [common flags] [--lookback <hours>]" }
func (c *SyncCmd) NeedsService() bool { return true }

func (c *SyncCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.lookbackHours, "lookback", 0, "")
}

func (c *SyncCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if c.lookbackHours < 0 {
		fmt.Fprintln(errOut, "error: --lookback must not be negative")
		return exitcode.UserError
	}

	file := env.File
	if c.lookbackHours > 0 {
		file.LookbackHours = c.lookbackHours
	}

	runner := &ingest.Runner{
		Config:  env.Config,
		File:    file,
		Service: env.Service,
		Logger:  env.logger(),
	}
	res, err := runner.Run(ctx)
	if err != nil {
		env.logger().Error("sync failed", "error", err)
		fmt.Fprintf(errOut, "error: %v\n", err)
		return ExitCode(err)
	}

	if !env.Config.Quiet {
		fmt.Fprintf(out, "%d fetched, %d new, %d published (%s)\n", res.Fetched, res.New, res.Published, res.Window)
	}
	return exitcode.Success
}
