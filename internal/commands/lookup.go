package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"donelog/internal/exitcode"
	"donelog/internal/output"
	"donelog/internal/service"
)

func init() {
	Register(&LookupCmd{})
}

// LookupCmd searches open tasks so their ids can be put in the allowlist.
type LookupCmd struct {
	snippet bool
}

func (c *LookupCmd) Name() string       { return "lookup" }
func (c *LookupCmd) Aliases() []string  { return []string{"find"} }
func (c *LookupCmd) Synopsis() string   { return "Find open tasks by title and print their ids" }
func (c *LookupCmd) Usage() string      { return "donelog lookup [common flags] [--snippet] <text...>" }
func (c *LookupCmd) NeedsService() bool { return true }

func (c *LookupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.snippet, "snippet", false, "")
}

func (c *LookupCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		fmt.Fprintf(errOut, "error: missing search text\nusage: %s\n", c.Usage())
		return exitcode.UserError
	}

	tasks, err := env.Service.ListActiveTasks(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return ExitCode(err)
	}
	projects, err := env.Service.ListProjects(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return ExitCode(err)
	}
	names := service.ProjectNames(projects)

	matches := matchTasks(tasks, query)
	if len(matches) == 0 {
		fmt.Fprintf(out, "no open task matches: %s\n", query)
		return exitcode.Success
	}

	if c.snippet {
		ids := make([]service.TaskID, len(matches))
		for i, t := range matches {
			ids[i] = t.ID
		}
		if err := output.FormatAllowlistSnippet(out, ids); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		return exitcode.Success
	}

	for _, t := range matches {
		output.FormatTaskMatch(out, t, names[t.ProjectID])
	}
	return exitcode.Success
}

// matchTasks returns tasks whose content contains query, compared
// case-insensitively, ordered by content then id.
func matchTasks(tasks []service.Task, query string) []service.Task {
	fold := cases.Fold()
	needle := fold.String(query)

	var matches []service.Task
	for _, t := range tasks {
		if strings.Contains(fold.String(t.Content), needle) {
			matches = append(matches, t)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Content != matches[j].Content {
			return matches[i].Content < matches[j].Content
		}
		return matches[i].ID < matches[j].ID
	})
	return matches
}
