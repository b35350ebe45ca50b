package todoist

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donelog/internal/service"
	"donelog/internal/testutil"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewWithHTTPClient(srv.Client(), srv.URL, testutil.DiscardLogger())
}

func TestListCompleted(t *testing.T) {
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/completed/by_completion_date", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "2026-03-01T00:00:00Z", q.Get("since"))
		assert.Equal(t, "2026-03-02T00:00:00Z", q.Get("until"))
		assert.Equal(t, "abc", q.Get("cursor"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"items": [
				{"id": "101", "content": "Write draft", "completed_at": "2026-03-01T18:00:00.000000Z",
				 "project_id": "900", "parent_id": "42", "priority": 4},
				{"id": 102, "content": "Top level", "completed_at": "2026-03-01T19:00:00Z",
				 "project_id": 900, "parent_id": null, "priority": 1},
				{"id": "103", "content": "No date", "completed_at": null}
			],
			"next_cursor": "def"
		}`))
	})

	page, err := c.ListCompleted(context.Background(), since, until, "abc")
	require.NoError(t, err)
	assert.Equal(t, "def", page.NextCursor)
	require.Len(t, page.Items, 2)

	first := page.Items[0]
	assert.Equal(t, service.TaskID("101"), first.ID)
	assert.Equal(t, "Write draft", first.Content)
	assert.Equal(t, service.ProjectID("900"), first.ProjectID)
	assert.Equal(t, service.TaskID("42"), first.ParentID)
	assert.Equal(t, 4, first.Priority)
	assert.True(t, first.CompletedAt.Equal(time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)))

	second := page.Items[1]
	assert.Equal(t, service.TaskID("102"), second.ID)
	assert.False(t, second.HasParent())
}

func TestListCompleted_LastPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.Query().Get("cursor"))
		_, _ = w.Write([]byte(`{"items": [], "next_cursor": null}`))
	})

	page, err := c.ListCompleted(context.Background(), time.Now().Add(-time.Hour), time.Now(), "")
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Empty(t, page.NextCursor)
}

func TestListCompleted_ClampsWindow(t *testing.T) {
	until := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	since := until.Add(-200 * 24 * time.Hour)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, until.Add(-MaxWindow).Format(timeLayout), r.URL.Query().Get("since"))
		_, _ = w.Write([]byte(`{"items": []}`))
	})

	_, err := c.ListCompleted(context.Background(), since, until, "")
	require.NoError(t, err)
}

func TestListCompleted_MalformedJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"items": [`))
	})

	_, err := c.ListCompleted(context.Background(), time.Now().Add(-time.Hour), time.Now(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed response")
}

func TestGetTask(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks/42", r.URL.Path)
		_, _ = w.Write([]byte(`{"id": "42", "content": "Project X", "parent_id": "7", "project_id": "900"}`))
	})

	task, err := c.GetTask(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, service.Task{ID: "42", Content: "Project X", ParentID: "7", ProjectID: "900"}, task)
}

func TestGetTask_NotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "task not found", http.StatusNotFound)
	})

	_, err := c.GetTask(context.Background(), "404")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "task not found", apiErr.Body)
}

func TestUnauthorized(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})

		_, err := c.ListProjects(context.Background())
		assert.ErrorIs(t, err, service.ErrUnauthorized, "status %d", status)
	}
}

func TestAPIError_TruncatesBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(strings.Repeat("x", 2000)))
	})

	_, err := c.ListProjects(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, apiErr.Body, maxErrorBody)
	assert.NotErrorIs(t, err, service.ErrNotFound)
	assert.NotErrorIs(t, err, service.ErrUnauthorized)
}

func TestRetriesServerErrors(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results": [{"id": "1", "name": "Inbox"}]}`))
	})
	c.Retries = 2
	c.RetryWait = time.Millisecond

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []service.Project{{ID: "1", Name: "Inbox"}}, projects)
}

func TestNoRetryOnClientError(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	})
	c.Retries = 2
	c.RetryWait = time.Millisecond

	_, err := c.ListProjects(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestListProjects_Pagination(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/projects", r.URL.Path)
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`{"results": [{"id": "1", "name": "Inbox"}], "next_cursor": "p2"}`))
		case "p2":
			_, _ = w.Write([]byte(`{"results": [{"id": 2, "name": "  "}], "next_cursor": null}`))
		default:
			t.Errorf("unexpected cursor %q", r.URL.Query().Get("cursor"))
		}
	})

	projects, err := c.ListProjects(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []service.Project{
		{ID: "1", Name: "Inbox"},
		{ID: "2", Name: "(No name)"},
	}, projects)
}

func TestListActiveTasks(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tasks", r.URL.Path)
		switch r.URL.Query().Get("cursor") {
		case "":
			_, _ = w.Write([]byte(`{"results": [{"id": "1", "content": "Alpha", "project_id": "9"}], "next_cursor": "n"}`))
		default:
			_, _ = w.Write([]byte(`{"results": [{"id": "2", "content": "Beta", "parent_id": "1", "project_id": "9"}]}`))
		}
	})

	tasks, err := c.ListActiveTasks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []service.Task{
		{ID: "1", Content: "Alpha", ProjectID: "9"},
		{ID: "2", Content: "Beta", ParentID: "1", ProjectID: "9"},
	}, tasks)
}

func TestNew_SendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	c, err := New(context.Background(), "  secret-token\n", testutil.DiscardLogger())
	require.NoError(t, err)
	c.baseURL = srv.URL

	_, err = c.ListProjects(context.Background())
	require.NoError(t, err)
}

func TestNew_EmptyToken(t *testing.T) {
	_, err := New(context.Background(), "   ", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestTimeout(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := c.ListProjects(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "request timed out")
}
