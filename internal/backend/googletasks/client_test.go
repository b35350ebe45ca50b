package googletasks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"donelog/internal/service"
)

type fakeTasksAPI struct {
	lists    []map[string]any
	tasks    map[string][]map[string]any // list id -> tasks
	getCalls map[string]int              // list/task -> calls
	status   int
}

func (f *fakeTasksAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = w.Write([]byte(`{"error": {"code": 401, "message": "invalid credentials"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	path := r.URL.Path
	switch {
	case strings.HasSuffix(path, "/users/@me/lists"):
		_ = json.NewEncoder(w).Encode(map[string]any{"items": f.lists})
	case strings.Contains(path, "/lists/") && strings.Contains(path, "/tasks"):
		rest := path[strings.Index(path, "/lists/")+len("/lists/"):]
		listID, taskPart, _ := strings.Cut(rest, "/tasks")
		taskID := strings.TrimPrefix(taskPart, "/")
		if taskID == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{"items": f.filter(listID, r)})
			return
		}
		f.getCalls[listID+"/"+taskID]++
		for _, t := range f.tasks[listID] {
			if t["id"] == taskID {
				_ = json.NewEncoder(w).Encode(t)
				return
			}
		}
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error": {"code": 404, "message": "not found"}}`))
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTasksAPI) filter(listID string, r *http.Request) []map[string]any {
	showCompleted := r.URL.Query().Get("showCompleted") == "true"
	var out []map[string]any
	for _, t := range f.tasks[listID] {
		done := t["status"] == "completed"
		if done == showCompleted {
			out = append(out, t)
		}
	}
	return out
}

func newTestClient(t *testing.T, api *fakeTasksAPI) *Client {
	t.Helper()
	if api.getCalls == nil {
		api.getCalls = make(map[string]int)
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := NewWithHTTPClient(context.Background(), srv.Client(), option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)
	return c
}

func sampleAPI() *fakeTasksAPI {
	return &fakeTasksAPI{
		lists: []map[string]any{
			{"id": "L1", "title": "Writing"},
			{"id": "L2", "title": "Home"},
		},
		tasks: map[string][]map[string]any{
			"L1": {
				{"id": "book", "title": "Book", "status": "needsAction"},
				{"id": "draft", "title": "Write draft", "parent": "book", "status": "completed", "completed": "2026-03-02T18:00:00.000Z"},
				{"id": "late", "title": "Too late", "status": "completed", "completed": "2026-03-03T00:00:00.000Z"},
			},
			"L2": {
				{"id": "dishes", "title": "Dishes", "status": "completed", "completed": "2026-03-02T08:00:00.000Z"},
			},
		},
	}
}

func TestListProjects(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []service.Project{{ID: "L1", Name: "Writing"}, {ID: "L2", Name: "Home"}}, projects)
}

func TestListCompleted(t *testing.T) {
	c := newTestClient(t, sampleAPI())
	since := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	page, err := c.ListCompleted(context.Background(), since, until, "")
	require.NoError(t, err)
	assert.Empty(t, page.NextCursor)
	require.Len(t, page.Items, 2)

	assert.Equal(t, service.CompletedTask{
		ID:          "draft",
		Content:     "Write draft",
		CompletedAt: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC),
		ProjectID:   "L1",
		ParentID:    "book",
		Priority:    Priority,
	}, page.Items[0])
	assert.Equal(t, service.TaskID("dishes"), page.Items[1].ID)
	assert.Equal(t, service.ProjectID("L2"), page.Items[1].ProjectID)

	page, err = c.ListCompleted(context.Background(), since, until, "next")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
}

func TestGetTask_UsesKnownList(t *testing.T) {
	api := sampleAPI()
	c := newTestClient(t, api)

	_, err := c.ListCompleted(context.Background(), time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC), "")
	require.NoError(t, err)

	task, err := c.GetTask(context.Background(), "draft")
	require.NoError(t, err)
	assert.Equal(t, service.Task{ID: "draft", Content: "Write draft", ParentID: "book", ProjectID: "L1"}, task)
	assert.Equal(t, 1, api.getCalls["L1/draft"])
	assert.Zero(t, api.getCalls["L2/draft"])
}

func TestGetTask_SearchesLists(t *testing.T) {
	api := sampleAPI()
	c := newTestClient(t, api)

	task, err := c.GetTask(context.Background(), "dishes")
	require.NoError(t, err)
	assert.Equal(t, service.ProjectID("L2"), task.ProjectID)
	assert.Equal(t, 1, api.getCalls["L1/dishes"])
	assert.Equal(t, 1, api.getCalls["L2/dishes"])
}

func TestGetTask_NotFound(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	_, err := c.GetTask(context.Background(), "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestListActiveTasks(t *testing.T) {
	c := newTestClient(t, sampleAPI())

	active, err := c.ListActiveTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []service.Task{{ID: "book", Content: "Book", ProjectID: "L1"}}, active)
}

func TestUnauthorized(t *testing.T) {
	api := sampleAPI()
	api.status = http.StatusUnauthorized
	c := newTestClient(t, api)

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
	assert.Contains(t, err.Error(), "donelog login")
}
