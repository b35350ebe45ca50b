package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TaskID identifies a task. Backends hand out both numeric and opaque
// string ids, so decoding accepts either form and the zero value means "none".
type TaskID string

// ProjectID identifies a project (a task list for list-based backends).
type ProjectID string

// CompletedTask is one completion of a task as reported by the backend.
type CompletedTask struct {
	ID          TaskID    `json:"id"`
	Content     string    `json:"content"`
	CompletedAt time.Time `json:"completed_at"`
	ProjectID   ProjectID `json:"project_id"`
	ParentID    TaskID    `json:"parent_id"`
	Priority    int       `json:"priority"`
}

// HasParent reports whether the task is a subtask.
func (t CompletedTask) HasParent() bool { return t.ParentID != "" }

// CompletedPage is a single page of completed tasks.
type CompletedPage struct {
	Items      []CompletedTask
	NextCursor string
}

// Task is the metadata snapshot of a task, open or completed.
type Task struct {
	ID        TaskID
	Content   string
	ParentID  TaskID
	ProjectID ProjectID
}

// Project represents a project.
type Project struct {
	ID   ProjectID
	Name string
}

// String implements fmt.Stringer.
func (id TaskID) String() string { return string(id) }

// MarshalJSON encodes the zero id as null.
func (id TaskID) MarshalJSON() ([]byte, error) { return marshalID(string(id)) }

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *TaskID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = TaskID(s)
	return nil
}

// UnmarshalYAML accepts a scalar string or integer.
func (id *TaskID) UnmarshalYAML(node *yaml.Node) error {
	s, err := scalarID(node)
	if err != nil {
		return fmt.Errorf("task id: %w", err)
	}
	*id = TaskID(s)
	return nil
}

// String implements fmt.Stringer.
func (id ProjectID) String() string { return string(id) }

// MarshalJSON encodes the zero id as null.
func (id ProjectID) MarshalJSON() ([]byte, error) { return marshalID(string(id)) }

// UnmarshalJSON accepts a JSON string, number, or null.
func (id *ProjectID) UnmarshalJSON(data []byte) error {
	s, err := unmarshalID(data)
	if err != nil {
		return fmt.Errorf("project id: %w", err)
	}
	*id = ProjectID(s)
	return nil
}

func marshalID(s string) ([]byte, error) {
	if s == "" {
		return []byte("null"), nil
	}
	return json.Marshal(s)
}

func unmarshalID(data []byte) (string, error) {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return "", nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", err
		}
		return s, nil
	}
	if _, err := strconv.ParseUint(string(data), 10, 64); err != nil {
		return "", fmt.Errorf("invalid id %s", data)
	}
	return string(data), nil
}

func scalarID(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("line %d: expected a scalar", node.Line)
	}
	switch node.Tag {
	case "!!null":
		return "", nil
	case "!!int":
		if _, err := strconv.ParseUint(node.Value, 10, 64); err != nil {
			return "", fmt.Errorf("line %d: invalid id %s", node.Line, node.Value)
		}
		return node.Value, nil
	case "!!str":
		return node.Value, nil
	}
	return "", fmt.Errorf("line %d: invalid id %s", node.Line, node.Value)
}
