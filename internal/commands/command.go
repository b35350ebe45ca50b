// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"

	"donelog/internal/config"
	"donelog/internal/exitcode"
	"donelog/internal/ingest"
	"donelog/internal/service"
)

// Env is what a command runs against.
type Env struct {
	// Config is always set.
	Config *config.Config

	// File is the loaded workspace configuration. It holds defaults for
	// commands that do not need a service.
	File config.File

	// Service is nil unless NeedsService returns true.
	Service service.Service

	// Logger carries the run id. Never nil when created by the dispatcher.
	Logger *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsService returns true if the command talks to the task backend.
	// The dispatcher then loads the workspace configuration and builds the
	// backend before Run.
	NeedsService() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command with positional args and returns the exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}

// ExitCode classifies err for the process exit status.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return exitcode.Success
	case errors.Is(err, service.ErrUnauthorized):
		return exitcode.AuthError
	case ingest.IsStorage(err):
		return exitcode.StorageError
	}
	return exitcode.BackendError
}
