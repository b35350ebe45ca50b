// Package main is the entry point for the donelog CLI.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"donelog/internal/backend/googletasks"
	"donelog/internal/backend/todoist"
	"donelog/internal/cli"
	"donelog/internal/commands"
	"donelog/internal/config"
	"donelog/internal/service"
)

func main() {
	// Cancelled on SIGINT/SIGTERM; a run in progress stops before its
	// next durable write.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dispatcher := cli.NewDispatcher(commands.DefaultRegistry, newService)
	code := dispatcher.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// newService builds the backend named by the workspace configuration.
func newService(ctx context.Context, cfg *config.Config, file config.File, logger *slog.Logger) (service.Service, error) {
	switch file.Backend {
	case config.BackendGoogleTasks:
		c, err := googletasks.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendTodoist, "":
		c, err := todoist.New(ctx, config.APIToken(), logger)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	return nil, fmt.Errorf("unknown backend %q", file.Backend)
}
