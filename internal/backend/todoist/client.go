// Package todoist implements the service.Service interface using the
// Todoist API v1.
package todoist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"donelog/internal/runstate"
	"donelog/internal/service"
)

const (
	// DefaultBaseURL is the Todoist API v1 root.
	DefaultBaseURL = "https://api.todoist.com/api/v1"

	// PageSize is the number of records requested per page.
	PageSize = 200

	// APITimeout is the timeout for a single API call.
	APITimeout = 30 * time.Second

	// MaxWindow is the longest completion range the API accepts.
	MaxWindow = 90 * 24 * time.Hour

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 500

	timeLayout = "2006-01-02T15:04:05Z"
)

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("todoist: HTTP %s", e.Status)
	}
	return fmt.Sprintf("todoist: HTTP %s: %s", e.Status, e.Body)
}

// Unwrap maps auth and not-found statuses onto the service sentinels.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return service.ErrUnauthorized
	case http.StatusNotFound:
		return service.ErrNotFound
	}
	return nil
}

var _ service.Service = (*Client)(nil)

// Client implements service.Service against the Todoist API.
type Client struct {
	http    *http.Client
	baseURL string
	logger  *slog.Logger

	// Retries is how many times a 429 or 5xx response is retried.
	Retries int

	// RetryWait is the delay before the first retry; it doubles each time.
	RetryWait time.Duration
}

// New creates a client authenticated with a personal API token.
func New(ctx context.Context, token string, logger *slog.Logger) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("todoist api token is not set: %w", service.ErrUnauthorized)
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"})
	c := NewWithHTTPClient(oauth2.NewClient(ctx, ts), DefaultBaseURL, logger)
	c.Retries = 2
	c.RetryWait = 2 * time.Second
	return c, nil
}

// NewWithHTTPClient creates a client with a custom HTTP client and base URL
// (for testing). No retries are configured.
func NewWithHTTPClient(httpClient *http.Client, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
	}
}

type apiTask struct {
	ID          service.TaskID    `json:"id"`
	Content     string            `json:"content"`
	CompletedAt *time.Time        `json:"completed_at"`
	ProjectID   service.ProjectID `json:"project_id"`
	ParentID    service.TaskID    `json:"parent_id"`
	Priority    int               `json:"priority"`
}

func (t apiTask) task() service.Task {
	return service.Task{ID: t.ID, Content: t.Content, ParentID: t.ParentID, ProjectID: t.ProjectID}
}

type completedResponse struct {
	Items      []apiTask `json:"items"`
	NextCursor *string   `json:"next_cursor"`
}

type projectsResponse struct {
	Results []struct {
		ID   service.ProjectID `json:"id"`
		Name string            `json:"name"`
	} `json:"results"`
	NextCursor *string `json:"next_cursor"`
}

type tasksResponse struct {
	Results    []apiTask `json:"results"`
	NextCursor *string   `json:"next_cursor"`
}

// ListCompleted returns one page of tasks completed in [since, until).
// Windows longer than MaxWindow are shortened from the start.
func (c *Client) ListCompleted(ctx context.Context, since, until time.Time, cursor string) (service.CompletedPage, error) {
	w := runstate.Window{Start: since, End: until}
	if w.End.Sub(w.Start) > MaxWindow {
		clamped := w.Clamp(MaxWindow)
		c.logger.Warn("completion window exceeds api limit, clamping", "requested", w.String(), "clamped", clamped.String())
		w = clamped
	}

	q := url.Values{}
	q.Set("since", w.Start.UTC().Format(timeLayout))
	q.Set("until", w.End.UTC().Format(timeLayout))
	q.Set("limit", fmt.Sprint(PageSize))
	if cursor != "" {
		q.Set("cursor", cursor)
	}

	var resp completedResponse
	if err := c.get(ctx, "/tasks/completed/by_completion_date", q, &resp); err != nil {
		return service.CompletedPage{}, err
	}

	page := service.CompletedPage{NextCursor: deref(resp.NextCursor)}
	for _, item := range resp.Items {
		if item.ID == "" {
			return service.CompletedPage{}, errors.New("todoist: completed task without id")
		}
		if item.CompletedAt == nil {
			c.logger.Debug("skipping completed task without completion time", "task_id", item.ID)
			continue
		}
		page.Items = append(page.Items, service.CompletedTask{
			ID:          item.ID,
			Content:     item.Content,
			CompletedAt: *item.CompletedAt,
			ProjectID:   item.ProjectID,
			ParentID:    item.ParentID,
			Priority:    item.Priority,
		})
	}
	return page, nil
}

// ListProjects returns all projects, following pagination.
func (c *Client) ListProjects(ctx context.Context) ([]service.Project, error) {
	var result []service.Project
	cursor := ""
	for {
		q := url.Values{"limit": {fmt.Sprint(PageSize)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp projectsResponse
		if err := c.get(ctx, "/projects", q, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Results {
			name := strings.TrimSpace(p.Name)
			if name == "" {
				name = "(No name)"
			}
			result = append(result, service.Project{ID: p.ID, Name: name})
		}
		if cursor = deref(resp.NextCursor); cursor == "" {
			return result, nil
		}
	}
}

// GetTask returns a single task by id.
func (c *Client) GetTask(ctx context.Context, id service.TaskID) (service.Task, error) {
	var t apiTask
	if err := c.get(ctx, "/tasks/"+url.PathEscape(string(id)), nil, &t); err != nil {
		return service.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	if t.ID == "" {
		t.ID = id
	}
	return t.task(), nil
}

// ListActiveTasks returns all open tasks, following pagination.
func (c *Client) ListActiveTasks(ctx context.Context) ([]service.Task, error) {
	var result []service.Task
	cursor := ""
	for {
		q := url.Values{"limit": {fmt.Sprint(PageSize)}}
		if cursor != "" {
			q.Set("cursor", cursor)
		}
		var resp tasksResponse
		if err := c.get(ctx, "/tasks", q, &resp); err != nil {
			return nil, err
		}
		for _, t := range resp.Results {
			result = append(result, t.task())
		}
		if cursor = deref(resp.NextCursor); cursor == "" {
			return result, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	wait := c.RetryWait
	for attempt := 0; ; attempt++ {
		err := c.getOnce(ctx, endpoint, out)
		var apiErr *APIError
		if err == nil || attempt >= c.Retries || !errors.As(err, &apiErr) || !retryable(apiErr.StatusCode) {
			return err
		}
		c.logger.Warn("todoist request failed, retrying", "path", path, "status", apiErr.StatusCode, "attempt", attempt+1)
		select {
		case <-ctx.Done():
			return wrapError(ctx.Err())
		case <-time.After(wait):
		}
		wait *= 2
	}
}

func (c *Client) getOnce(ctx context.Context, endpoint string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return wrapError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("todoist: malformed response: %w", wrapError(err))
	}
	return nil
}

func retryable(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// wrapError turns timeouts into a readable message, keeping the cause.
func wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}
	return err
}
