// Package cli parses the command line and dispatches to commands.
package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"donelog/internal/commands"
	"donelog/internal/config"
	"donelog/internal/exitcode"
	"donelog/internal/logs"
	"donelog/internal/service"
)

// ServiceFactory creates the task backend selected by the workspace
// configuration. Used to inject the backend during dispatch.
type ServiceFactory func(ctx context.Context, cfg *config.Config, file config.File, logger *slog.Logger) (service.Service, error)

// LoggerFactory builds the process logger writing to w.
type LoggerFactory func(w io.Writer, level slog.Leveler) *slog.Logger

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry  *commands.Registry
	factory   ServiceFactory
	newLogger LoggerFactory
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	return &Dispatcher{
		registry:  registry,
		factory:   factory,
		newLogger: logs.New,
	}
}

// WithLogger replaces the logger factory.
func (d *Dispatcher) WithLogger(f LoggerFactory) *Dispatcher {
	d.newLogger = f
	return d
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No command name runs the default command; common flags still apply.
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		cmd, ok := d.registry.Default()
		if !ok {
			if len(args) > 0 {
				fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
			} else {
				fmt.Fprintln(errOut, "error: missing command")
			}
			return exitcode.UserError
		}
		return d.dispatchCommand(ctx, cmd, args, out, errOut)
	}

	cmd, ok := d.registry.Find(args[0])
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args[1:], out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var workDir, configDir string
	var quiet, debug bool

	fs.StringVar(&workDir, "dir", "", "")
	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(errOut, "error: %s\n", flagError(err))
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positional := fs.Args()
	if len(positional) > 0 && strings.HasPrefix(positional[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positional[0])
		return exitcode.UserError
	}

	cfg, err := config.New(workDir, configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	logger, _ := logs.WithRun(d.newLogger(errOut, logs.Level(debug, quiet)))
	logger = logger.With("command", cmd.Name())
	logger.Debug("dispatch", "dir", cfg.Dir, "config_dir", cfg.ConfigDir)

	env := &commands.Env{
		Config: cfg,
		File:   config.DefaultFile(),
		Logger: logger,
	}

	if cmd.NeedsService() {
		env.File, err = config.LoadFile(cfg.ConfigPath())
		if err != nil {
			logger.Error("invalid configuration", "path", cfg.ConfigPath(), "error", err)
			fmt.Fprintf(errOut, "error: config: %s\n", err)
			return exitcode.AuthError
		}
		if d.factory == nil {
			fmt.Fprintln(errOut, "error: no backend configured")
			return exitcode.AuthError
		}
		env.Service, err = d.factory(ctx, cfg, env.File, logger)
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				fmt.Fprintf(errOut, "error: auth error: %s\n", err)
				return exitcode.AuthError
			}
			fmt.Fprintf(errOut, "error: backend error: %s\n", err)
			return exitcode.BackendError
		}
	}

	return cmd.Run(ctx, env, positional, out, errOut)
}

// flagError rewrites flag package errors into the CLI's message style.
func flagError(err error) string {
	msg := err.Error()
	switch {
	case strings.HasPrefix(msg, "flag needs an argument: "):
		return msg
	case strings.HasPrefix(msg, "flag provided but not defined: "):
		return "unknown flag: " + strings.TrimPrefix(msg, "flag provided but not defined: ")
	}
	return msg
}
