// Package allowlist decides which completed tasks may be published.
package allowlist

import (
	"context"

	"donelog/internal/ancestry"
	"donelog/internal/service"
)

// Set is an immutable set of allowed root task ids.
type Set struct {
	ids map[service.TaskID]struct{}
}

// NewSet builds a set from ids, ignoring duplicates and empty ids.
func NewSet(ids []service.TaskID) Set {
	s := Set{ids: make(map[service.TaskID]struct{}, len(ids))}
	for _, id := range ids {
		if id != "" {
			s.ids[id] = struct{}{}
		}
	}
	return s
}

// Contains reports whether id is an allowed root.
func (s Set) Contains(id service.TaskID) bool {
	_, ok := s.ids[id]
	return ok
}

// Len returns the number of roots.
func (s Set) Len() int { return len(s.ids) }

// Resolver is the subset of ancestry.Resolver the filter needs.
type Resolver interface {
	Resolve(ctx context.Context, id, parentID service.TaskID) (ancestry.Verdict, error)
}

// Filter includes an event only when it is, or descends from, an allowed root.
type Filter struct {
	roots    Set
	resolver Resolver
}

// NewFilter creates a filter over roots.
func NewFilter(roots Set, resolver Resolver) *Filter {
	return &Filter{roots: roots, resolver: resolver}
}

// Include reports whether ev may be published. Denied and Unknown both
// exclude; an empty allowlist excludes everything without any lookups.
func (f *Filter) Include(ctx context.Context, ev service.CompletedTask) (bool, error) {
	if f.roots.Len() == 0 {
		return false, nil
	}
	if f.roots.Contains(ev.ID) {
		return true, nil
	}
	v, err := f.resolver.Resolve(ctx, ev.ID, ev.ParentID)
	if err != nil {
		return false, err
	}
	return v == ancestry.Allowed, nil
}
