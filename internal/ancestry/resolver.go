// Package ancestry resolves whether a task sits beneath an allowed root by
// walking parent links upward.
//
// The walk is bounded and cycle-safe. Anything it cannot establish is
// reported as Unknown, which callers treat exactly like Denied.
package ancestry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"donelog/internal/service"
	"donelog/internal/taskcache"
)

// MaxDepth bounds the upward walk; real hierarchies are a handful deep.
const MaxDepth = 32

// Verdict is the outcome of a resolution. The zero value is Unknown.
type Verdict int

const (
	Unknown Verdict = iota
	Denied
	Allowed
)

func (v Verdict) String() string {
	switch v {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	default:
		return "unknown"
	}
}

// Roots reports whether an id is an allowed hierarchy root.
type Roots interface {
	Contains(id service.TaskID) bool
}

// Fetcher looks up a single task. service.Service satisfies it.
type Fetcher interface {
	GetTask(ctx context.Context, id service.TaskID) (service.Task, error)
}

// Resolver walks ancestor chains with a two-tier cache: tasks seen or
// fetched during this run, then the persisted cache, then the Fetcher.
type Resolver struct {
	roots   Roots
	fetcher Fetcher
	cache   *taskcache.Cache
	logger  *slog.Logger
	run     map[service.TaskID]service.Task

	// MaxDepth overrides the package default when positive.
	MaxDepth int
}

// New creates a resolver. cache may be nil.
func New(roots Roots, fetcher Fetcher, cache *taskcache.Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		roots:   roots,
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
		run:     make(map[service.TaskID]service.Task),
	}
}

// Observe records a freshly fetched completed task in both cache tiers.
func (r *Resolver) Observe(ev service.CompletedTask) {
	r.run[ev.ID] = service.Task{ID: ev.ID, Content: ev.Content, ParentID: ev.ParentID, ProjectID: ev.ProjectID}
	if r.cache != nil {
		r.cache.Observe(ev)
	}
}

// Resolve walks from id (whose parent is parentID) towards the root.
//
// A verdict of Allowed is only returned on links fetched or observed during
// this run: if the persisted cache contributed a link, the walk is repeated
// without it. Errors other than service.ErrNotFound abort resolution.
func (r *Resolver) Resolve(ctx context.Context, id, parentID service.TaskID) (Verdict, error) {
	v, usedPersisted, err := r.walk(ctx, id, parentID, true)
	if err != nil {
		return Unknown, err
	}
	if v == Allowed && usedPersisted {
		r.logger.Debug("re-verifying cached ancestor chain", "task_id", id)
		v, _, err = r.walk(ctx, id, parentID, false)
		if err != nil {
			return Unknown, err
		}
	}
	return v, nil
}

func (r *Resolver) walk(ctx context.Context, id, parentID service.TaskID, usePersisted bool) (Verdict, bool, error) {
	if r.roots.Contains(id) {
		return Allowed, false, nil
	}

	limit := r.MaxDepth
	if limit <= 0 {
		limit = MaxDepth
	}

	var usedPersisted bool
	visited := map[service.TaskID]struct{}{id: {}}
	parent := parentID

	for depth := 0; ; depth++ {
		if parent == "" {
			return Denied, usedPersisted, nil
		}
		// Roots are matched by id alone and never fetched.
		if r.roots.Contains(parent) {
			return Allowed, usedPersisted, nil
		}
		if _, seen := visited[parent]; seen {
			r.unknown(id, "cycle in parent links", parent)
			return Unknown, usedPersisted, nil
		}
		if depth >= limit {
			r.unknown(id, "ancestor chain too deep", parent)
			return Unknown, usedPersisted, nil
		}
		visited[parent] = struct{}{}

		t, fromPersisted, err := r.lookup(ctx, parent, usePersisted)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				r.unknown(id, "ancestor not found", parent)
				return Unknown, usedPersisted, nil
			}
			return Unknown, usedPersisted, fmt.Errorf("resolve ancestors of %s: %w", id, err)
		}
		usedPersisted = usedPersisted || fromPersisted
		parent = t.ParentID
	}
}

// ParentTitle returns a display title for the task id, best effort.
func (r *Resolver) ParentTitle(ctx context.Context, id service.TaskID) (string, bool) {
	t, _, err := r.lookup(ctx, id, true)
	if err != nil {
		r.logger.Debug("parent title unavailable", "task_id", id, "error", err)
		return "", false
	}
	title := strings.TrimSpace(t.Content)
	return title, title != ""
}

func (r *Resolver) lookup(ctx context.Context, id service.TaskID, usePersisted bool) (service.Task, bool, error) {
	if t, ok := r.run[id]; ok {
		return t, false, nil
	}
	if usePersisted && r.cache != nil {
		if e, ok := r.cache.Get(id); ok {
			return service.Task{ID: id, Content: e.Content, ParentID: e.ParentID, ProjectID: e.ProjectID}, true, nil
		}
	}

	t, err := r.fetcher.GetTask(ctx, id)
	if err != nil {
		return service.Task{}, false, err
	}
	if t.ID == "" {
		t.ID = id
	}
	r.remember(t)
	return t, false, nil
}

func (r *Resolver) remember(t service.Task) {
	r.run[t.ID] = t
	if r.cache != nil {
		r.cache.Put(t)
	}
}

func (r *Resolver) unknown(id service.TaskID, reason string, at service.TaskID) {
	r.logger.Info("ancestor chain unresolved, excluding task", "task_id", id, "reason", reason, "at", at)
}
