// Package taskcache persists best-effort task metadata between runs.
// Losing the file only costs extra lookups.
package taskcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"donelog/internal/service"
)

// Entry is the cached snapshot of one task.
type Entry struct {
	Content   string            `json:"content"`
	ParentID  service.TaskID    `json:"parent_id"`
	ProjectID service.ProjectID `json:"project_id"`
}

// Cache is a task_id -> Entry map backed by a JSON file.
type Cache struct {
	path    string
	entries map[service.TaskID]Entry
	dirty   bool
}

// New returns an empty cache that saves to path.
func New(path string) *Cache {
	return &Cache{path: path, entries: make(map[service.TaskID]Entry)}
}

// Load reads the cache at path. A missing file yields an empty cache.
func Load(path string) (*Cache, error) {
	c := New(path)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("read task cache: %w", err)
	}
	if err := json.Unmarshal(data, &c.entries); err != nil {
		return nil, fmt.Errorf("parse task cache %s: %w", path, err)
	}
	if c.entries == nil {
		c.entries = make(map[service.TaskID]Entry)
	}
	return c, nil
}

// Len returns the number of cached tasks.
func (c *Cache) Len() int { return len(c.entries) }

// Get returns the cached entry for id.
func (c *Cache) Get(id service.TaskID) (Entry, bool) {
	e, ok := c.entries[id]
	return e, ok
}

// Put records task metadata, replacing any previous snapshot.
func (c *Cache) Put(t service.Task) {
	e := Entry{Content: t.Content, ParentID: t.ParentID, ProjectID: t.ProjectID}
	if old, ok := c.entries[t.ID]; ok && old == e {
		return
	}
	c.entries[t.ID] = e
	c.dirty = true
}

// Observe records what a completed task says about itself.
func (c *Cache) Observe(ev service.CompletedTask) {
	c.Put(service.Task{ID: ev.ID, Content: ev.Content, ParentID: ev.ParentID, ProjectID: ev.ProjectID})
}

// Save writes the cache if it changed since Load. The write goes to a
// temporary file that is renamed over the old one.
func (c *Cache) Save() error {
	if !c.dirty {
		return nil
	}
	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if err := writeFileAtomic(c.path, data); err != nil {
		return fmt.Errorf("save task cache: %w", err)
	}
	c.dirty = false
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
