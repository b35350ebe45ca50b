// Package ingest runs one end-to-end sync: fetch completions, filter them
// against the allowlist, append them to the weekly log and event store,
// then advance the run state.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"donelog/internal/allowlist"
	"donelog/internal/ancestry"
	"donelog/internal/config"
	"donelog/internal/eventstore"
	"donelog/internal/runstate"
	"donelog/internal/service"
	"donelog/internal/taskcache"
	"donelog/internal/weeklog"
)

// maxPages bounds pagination in case the backend keeps returning cursors.
const maxPages = 10000

// StorageError is a failure to read or write local persistent data.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	return &StorageError{Op: op, Err: err}
}

// Result summarises a run.
type Result struct {
	Window    runstate.Window
	Fetched   int // completions returned by the backend
	New       int // completions not seen by an earlier run
	Published int // lines appended to the weekly log
}

// Runner performs sync runs against a workspace.
type Runner struct {
	Config  *config.Config
	File    config.File
	Service service.Service
	Logger  *slog.Logger

	// Now is the clock; defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Run executes one sync. State is committed only after both the log and
// the event store were written; on any earlier error nothing is committed
// and the next run covers the same window again. With an empty allowlist
// the run writes nothing at all.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	log := r.logger()
	cfg := r.Config

	state, err := runstate.Load(cfg.StatePath())
	if err != nil {
		return Result{}, storageErr("load run state", err)
	}
	res := Result{Window: state.Window(r.now(), r.File.Lookback())}
	log.Info("sync started", "window", res.Window.String())

	if !res.Window.Start.Before(res.Window.End) {
		log.Warn("empty window, last run is in the future; nothing to do", "window", res.Window.String())
		return res, nil
	}

	store, err := eventstore.Open(cfg.EventsPath())
	if err != nil {
		return res, storageErr("open event store", err)
	}

	cache, err := taskcache.Load(cfg.TaskCachePath())
	if err != nil {
		log.Warn("task cache unreadable, starting empty", "path", cfg.TaskCachePath(), "error", err)
		cache = taskcache.New(cfg.TaskCachePath())
	}

	fetched, err := r.fetch(ctx, res.Window)
	if err != nil {
		return res, err
	}
	res.Fetched = len(fetched)

	var fresh []service.CompletedTask
	seen := make(map[service.TaskID]struct{}, len(fetched))
	for _, ev := range fetched {
		if _, dup := seen[ev.ID]; dup || store.Has(ev.ID) {
			continue
		}
		seen[ev.ID] = struct{}{}
		fresh = append(fresh, ev)
	}
	res.New = len(fresh)
	log.Info("fetched completions", "fetched", res.Fetched, "new", res.New)

	roots := allowlist.NewSet(r.File.AllowedRootTaskIDs)
	if roots.Len() == 0 {
		// Nothing is recorded either, so a later run with a configured
		// allowlist still sees these completions as new.
		log.Info("allowlist is empty, nothing written", "config", cfg.ConfigPath(), "new", res.New)
		return res, nil
	}

	resolver := ancestry.New(roots, r.Service, cache, log)
	for _, ev := range fresh {
		resolver.Observe(ev)
	}

	var accepted []service.CompletedTask
	filter := allowlist.NewFilter(roots, resolver)
	for _, ev := range fresh {
		ok, err := filter.Include(ctx, ev)
		if err != nil {
			return res, fmt.Errorf("filter task %s: %w", ev.ID, err)
		}
		if ok {
			accepted = append(accepted, ev)
		} else {
			log.Debug("task excluded", "task_id", ev.ID)
		}
	}

	if len(accepted) > 0 {
		projects, err := r.projects(ctx)
		if err != nil {
			return res, err
		}
		renderer := &weeklog.Renderer{
			Location: r.File.Location(),
			Projects: projects,
			Parents:  resolver,
		}
		n, err := renderer.Append(ctx, cfg.LogPath(), accepted)
		if err != nil {
			return res, storageErr("append weekly log", err)
		}
		res.Published = n
	}

	if _, err := store.Append(fresh...); err != nil {
		return res, storageErr("append event store", err)
	}
	if err := runstate.Commit(cfg.StatePath(), res.Window.End); err != nil {
		return res, storageErr("commit run state", err)
	}
	if err := cache.Save(); err != nil {
		log.Warn("saving task cache failed", "path", cfg.TaskCachePath(), "error", err)
	}

	log.Info("sync finished",
		"fetched", res.Fetched,
		"new", res.New,
		"published", res.Published,
		"window_end", res.Window.End.Format(runstate.ISOLayout),
	)
	return res, nil
}

// fetch pages through every completion in w.
func (r *Runner) fetch(ctx context.Context, w runstate.Window) ([]service.CompletedTask, error) {
	var all []service.CompletedTask
	cursor := ""
	seen := make(map[string]struct{})
	for page := 0; ; page++ {
		if page >= maxPages {
			return nil, fmt.Errorf("list completed tasks: more than %d pages", maxPages)
		}
		p, err := r.Service.ListCompleted(ctx, w.Start, w.End, cursor)
		if err != nil {
			return nil, fmt.Errorf("list completed tasks: %w", err)
		}
		all = append(all, p.Items...)
		if p.NextCursor == "" {
			return all, nil
		}
		if _, again := seen[p.NextCursor]; again {
			return nil, fmt.Errorf("list completed tasks: cursor %q repeated", p.NextCursor)
		}
		seen[p.NextCursor] = struct{}{}
		cursor = p.NextCursor
	}
}

func (r *Runner) projects(ctx context.Context) (map[service.ProjectID]string, error) {
	projects, err := r.Service.ListProjects(ctx)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	return service.ProjectNames(projects), nil
}

// IsStorage reports whether err came from local persistence.
func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
