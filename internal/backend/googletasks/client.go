// Package googletasks implements the service.Service interface using the
// Google Tasks API. Task lists play the role of projects.
package googletasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"donelog/internal/config"
	"donelog/internal/service"
)

const (
	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 10 * time.Second

	// TasksScope is the OAuth scope requested by login.
	TasksScope = "https://www.googleapis.com/auth/tasks.readonly"

	// Priority is reported for every task; Google Tasks has no priorities.
	Priority = 1
)

var _ service.Service = (*Client)(nil)

// Client implements service.Service using Google Tasks API.
type Client struct {
	svc *tasks.Service

	mu     sync.Mutex
	listOf map[service.TaskID]service.ProjectID // task id -> owning list
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist in the config dir.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	clientJSON, err := os.ReadFile(cfg.OAuthClientPath())
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", config.OAuthClientFile, err)
	}

	oauthConfig, err := google.ConfigFromJSON(clientJSON, TasksScope)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.OAuthClientFile, err)
	}

	tokenData, err := os.ReadFile(cfg.TokenPath())
	if err != nil {
		return nil, fmt.Errorf("not logged in (run: donelog login): %w", service.ErrUnauthorized)
	}

	var token oauth2.Token
	if err := json.Unmarshal(tokenData, &token); err != nil {
		return nil, fmt.Errorf("invalid %s: %w", config.TokenFile, err)
	}

	// Token source refreshes the access token as needed.
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, &token))
	return NewWithHTTPClient(ctx, httpClient)
}

// NewWithHTTPClient creates a client with a custom HTTP client (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create tasks service: %w", err)
	}
	return &Client{svc: svc, listOf: make(map[service.TaskID]service.ProjectID)}, nil
}

// ListCompleted returns all tasks completed in [since, until) across every
// list as a single page.
func (c *Client) ListCompleted(ctx context.Context, since, until time.Time, cursor string) (service.CompletedPage, error) {
	if cursor != "" {
		return service.CompletedPage{}, nil
	}
	lists, err := c.ListProjects(ctx)
	if err != nil {
		return service.CompletedPage{}, err
	}

	var page service.CompletedPage
	for _, list := range lists {
		items, err := c.listTasks(ctx, list.ID, func(call *tasks.TasksListCall) *tasks.TasksListCall {
			return call.ShowCompleted(true).
				ShowHidden(true).
				ShowDeleted(false).
				CompletedMin(since.UTC().Format(time.RFC3339)).
				CompletedMax(until.UTC().Format(time.RFC3339))
		})
		if err != nil {
			return service.CompletedPage{}, err
		}
		for _, t := range items {
			if t.Completed == nil || *t.Completed == "" {
				continue
			}
			at, err := time.Parse(time.RFC3339, *t.Completed)
			if err != nil {
				return service.CompletedPage{}, fmt.Errorf("task %s: bad completion time %q: %w", t.Id, *t.Completed, err)
			}
			// CompletedMax is inclusive on the API side.
			if at.Before(since) || !at.Before(until) {
				continue
			}
			page.Items = append(page.Items, service.CompletedTask{
				ID:          service.TaskID(t.Id),
				Content:     t.Title,
				CompletedAt: at,
				ProjectID:   list.ID,
				ParentID:    service.TaskID(t.Parent),
				Priority:    Priority,
			})
		}
	}
	return page, nil
}

// ListProjects returns all task lists in API order.
func (c *Client) ListProjects(ctx context.Context) ([]service.Project, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []service.Project
	err := c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(resp *tasks.TaskLists) error {
		for _, list := range resp.Items {
			result = append(result, service.Project{
				ID:   service.ProjectID(list.Id),
				Name: list.Title,
			})
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return result, nil
}

// GetTask returns a task by id. Lists already seen to hold the task are
// tried first; otherwise every list is searched.
func (c *Client) GetTask(ctx context.Context, id service.TaskID) (service.Task, error) {
	c.mu.Lock()
	listID, known := c.listOf[id]
	c.mu.Unlock()

	if known {
		return c.getTask(ctx, listID, id)
	}

	lists, err := c.ListProjects(ctx)
	if err != nil {
		return service.Task{}, err
	}
	for _, list := range lists {
		t, err := c.getTask(ctx, list.ID, id)
		if errors.Is(err, service.ErrNotFound) {
			continue
		}
		return t, err
	}
	return service.Task{}, fmt.Errorf("task %s: %w", id, service.ErrNotFound)
}

// ListActiveTasks returns open tasks across every list.
func (c *Client) ListActiveTasks(ctx context.Context) ([]service.Task, error) {
	lists, err := c.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	var result []service.Task
	for _, list := range lists {
		items, err := c.listTasks(ctx, list.ID, func(call *tasks.TasksListCall) *tasks.TasksListCall {
			return call.ShowCompleted(false).ShowDeleted(false).ShowHidden(false)
		})
		if err != nil {
			return nil, err
		}
		for _, t := range items {
			result = append(result, convert(list.ID, t))
		}
	}
	return result, nil
}

func (c *Client) getTask(ctx context.Context, listID service.ProjectID, id service.TaskID) (service.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	t, err := c.svc.Tasks.Get(string(listID), string(id)).Context(ctx).Do()
	if err != nil {
		return service.Task{}, fmt.Errorf("get task %s: %w", id, wrapError(err))
	}
	c.remember(listID, service.TaskID(t.Id))
	return convert(listID, t), nil
}

func (c *Client) listTasks(ctx context.Context, listID service.ProjectID, filter func(*tasks.TasksListCall) *tasks.TasksListCall) ([]*tasks.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var items []*tasks.Task
	call := filter(c.svc.Tasks.List(string(listID)).MaxResults(PageSize))
	err := call.Pages(ctx, func(resp *tasks.Tasks) error {
		for _, t := range resp.Items {
			c.remember(listID, service.TaskID(t.Id))
			items = append(items, t)
		}
		return nil
	})
	if err != nil {
		return nil, wrapError(err)
	}
	return items, nil
}

func (c *Client) remember(listID service.ProjectID, id service.TaskID) {
	if id == "" {
		return
	}
	c.mu.Lock()
	c.listOf[id] = listID
	c.mu.Unlock()
}

func convert(listID service.ProjectID, t *tasks.Task) service.Task {
	return service.Task{
		ID:        service.TaskID(t.Id),
		Content:   t.Title,
		ParentID:  service.TaskID(t.Parent),
		ProjectID: listID,
	}
}

// wrapError maps API errors onto the service sentinels with user-facing
// messages, keeping the cause.
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return fmt.Errorf("request timed out: %w", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("token expired or revoked (run: donelog login): %w: %w", service.ErrUnauthorized, err)
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", service.ErrNotFound, err)
		}
	}
	return err
}
