package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"donelog/internal/exitcode"
)

func init() {
	Register(&HelpCmd{})
}

// HelpCmd implements the help command.
type HelpCmd struct{}

func (c *HelpCmd) Name() string       { return "help" }
func (c *HelpCmd) Aliases() []string  { return nil }
func (c *HelpCmd) Synopsis() string   { return "Print usage" }
func (c *HelpCmd) Usage() string      { return "donelog help" }
func (c *HelpCmd) NeedsService() bool { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	fmt.Fprint(out, helpText)
	return exitcode.Success
}

const helpText = `Usage:
  donelog                                      Same as donelog sync
  donelog sync [common flags] [--lookback <hours>]
                                               Publish newly completed tasks
  donelog lookup [common flags] [--snippet] <text...>
                                               Find open tasks and print their ids
  donelog status [common flags]                Show workspace state
  donelog login [common flags]                 Authorize read-only Google Tasks
  donelog logout [common flags]                Remove the Google Tasks token
  donelog help
  donelog version

Common flags:
  --dir <dir>      Workspace directory (default: current directory)
  --config <dir>   Override the credentials directory
  --quiet          Only log warnings and errors
  --debug          Print debug logs to stderr

Environment:
  TODOIST_API_TOKEN   Todoist API token (todoist backend)

Workspace files:
  config.json                allowed_root_task_ids, timezone, lookback_hours, backend
  state.json                 end of the last successful run
  data/events.jsonl          every completion seen so far
  data/task_cache.json       task metadata cache
  activity/completed.md      published weekly log
`
