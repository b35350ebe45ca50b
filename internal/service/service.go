// Package service defines the backend-agnostic interface for task operations.
package service

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a task or project does not exist or is
	// no longer visible to the authenticated user.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the backend rejects the credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// Service defines the interface for task backend operations.
// The ingest pipeline and the commands only ever talk to a backend through
// this interface.
type Service interface {
	// ListCompleted returns one page of tasks completed in [since, until).
	// An empty cursor requests the first page; the returned page carries the
	// cursor for the next one, empty when there are no more pages.
	ListCompleted(ctx context.Context, since, until time.Time, cursor string) (CompletedPage, error)

	// ListProjects returns every project visible to the user.
	ListProjects(ctx context.Context) ([]Project, error)

	// GetTask returns metadata for a single task.
	// Returns an error wrapping ErrNotFound if the task does not exist.
	GetTask(ctx context.Context, id TaskID) (Task, error)

	// ListActiveTasks returns all open tasks in API order.
	ListActiveTasks(ctx context.Context) ([]Task, error)
}

// ProjectNames builds an id -> name map from a project listing.
func ProjectNames(projects []Project) map[ProjectID]string {
	names := make(map[ProjectID]string, len(projects))
	for _, p := range projects {
		names[p.ID] = p.Name
	}
	return names
}
