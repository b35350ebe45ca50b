// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"donelog/internal/service"
)

// FakeService is an in-memory implementation of service.Service for testing.
type FakeService struct {
	mu        sync.Mutex
	tasks     map[service.TaskID]service.Task
	completed []service.CompletedTask
	projects  []service.Project
	active    []service.TaskID

	// PageSize splits ListCompleted results into pages. Zero means one page.
	PageSize int

	// Error injection for testing
	ListCompletedErr   error
	ListProjectsErr    error
	ListActiveTasksErr error
	GetTaskErr         map[service.TaskID]error // task id -> error

	// Call counters
	GetTaskCalls       map[service.TaskID]int
	ListCompletedCalls int
	ListProjectsCalls  int
}

// NewFakeService creates an empty FakeService.
func NewFakeService() *FakeService {
	return &FakeService{
		tasks:        make(map[service.TaskID]service.Task),
		GetTaskErr:   make(map[service.TaskID]error),
		GetTaskCalls: make(map[service.TaskID]int),
	}
}

// AddProject adds a project.
func (f *FakeService) AddProject(id, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, service.Project{ID: service.ProjectID(id), Name: name})
}

// AddTask adds an open task with an optional parent.
func (f *FakeService) AddTask(id, content, parentID, projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := service.Task{
		ID:        service.TaskID(id),
		Content:   content,
		ParentID:  service.TaskID(parentID),
		ProjectID: service.ProjectID(projectID),
	}
	f.tasks[t.ID] = t
	f.active = append(f.active, t.ID)
}

// Complete records a completion for a known task without removing it from
// GetTask lookups. Unknown ids are completed as root tasks in project "0".
func (f *FakeService) Complete(id string, at time.Time, priority int) service.CompletedTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.tasks[service.TaskID(id)]
	if !ok {
		t = service.Task{ID: service.TaskID(id), Content: "task " + id, ProjectID: "0"}
		f.tasks[t.ID] = t
	}
	ev := service.CompletedTask{
		ID:          t.ID,
		Content:     t.Content,
		CompletedAt: at,
		ProjectID:   t.ProjectID,
		ParentID:    t.ParentID,
		Priority:    priority,
	}
	f.completed = append(f.completed, ev)
	for i, a := range f.active {
		if a == t.ID {
			f.active = append(f.active[:i], f.active[i+1:]...)
			break
		}
	}
	return ev
}

// AddCompleted records a completion as-is, bypassing the task table.
func (f *FakeService) AddCompleted(ev service.CompletedTask) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, ev)
}

// RemoveTask makes GetTask report service.ErrNotFound for id.
func (f *FakeService) RemoveTask(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tasks, service.TaskID(id))
}

// ListCompleted implements service.Service.
func (f *FakeService) ListCompleted(ctx context.Context, since, until time.Time, cursor string) (service.CompletedPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListCompletedCalls++
	if f.ListCompletedErr != nil {
		return service.CompletedPage{}, f.ListCompletedErr
	}

	var items []service.CompletedTask
	for _, ev := range f.completed {
		if !ev.CompletedAt.Before(since) && ev.CompletedAt.Before(until) {
			items = append(items, ev)
		}
	}
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CompletedAt.After(items[j].CompletedAt)
	})

	if f.PageSize <= 0 {
		return service.CompletedPage{Items: items}, nil
	}
	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return service.CompletedPage{}, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	if start >= len(items) {
		return service.CompletedPage{}, nil
	}
	end := start + f.PageSize
	page := service.CompletedPage{}
	if end < len(items) {
		page.NextCursor = strconv.Itoa(end)
	} else {
		end = len(items)
	}
	page.Items = items[start:end]
	return page, nil
}

// ListProjects implements service.Service.
func (f *FakeService) ListProjects(ctx context.Context) ([]service.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ListProjectsCalls++
	if f.ListProjectsErr != nil {
		return nil, f.ListProjectsErr
	}
	result := make([]service.Project, len(f.projects))
	copy(result, f.projects)
	return result, nil
}

// GetTask implements service.Service.
func (f *FakeService) GetTask(ctx context.Context, id service.TaskID) (service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.GetTaskCalls[id]++
	if err, ok := f.GetTaskErr[id]; ok && err != nil {
		return service.Task{}, err
	}
	t, ok := f.tasks[id]
	if !ok {
		return service.Task{}, fmt.Errorf("task %s: %w", id, service.ErrNotFound)
	}
	return t, nil
}

// ListActiveTasks implements service.Service.
func (f *FakeService) ListActiveTasks(ctx context.Context) ([]service.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListActiveTasksErr != nil {
		return nil, f.ListActiveTasksErr
	}
	result := make([]service.Task, 0, len(f.active))
	for _, id := range f.active {
		if t, ok := f.tasks[id]; ok {
			result = append(result, t)
		}
	}
	return result, nil
}
