// Package eventstore is the durable, append-only record of every completed
// task ever ingested. One JSON object per line; prior lines are never rewritten.
package eventstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"donelog/internal/service"
)

// maxLineSize bounds a single record; task content is far smaller in practice.
const maxLineSize = 1 << 20

// Store is a JSONL event store. Single writer only.
type Store struct {
	path   string
	index  map[service.TaskID]struct{}
	events []service.CompletedTask
}

// Open loads the store at path. A missing file is an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path:  path,
		index: make(map[service.TaskID]struct{}),
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("open event store: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev service.CompletedTask
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("event store %s line %d: %w", path, lineNum, err)
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("event store %s line %d: missing id", path, lineNum)
		}
		if _, dup := s.index[ev.ID]; dup {
			continue
		}
		s.index[ev.ID] = struct{}{}
		s.events = append(s.events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read event store: %w", err)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Len returns the number of stored events.
func (s *Store) Len() int { return len(s.events) }

// Has reports whether an event with id has been stored.
func (s *Store) Has(id service.TaskID) bool {
	_, ok := s.index[id]
	return ok
}

// Append durably writes the events whose ids are not yet stored, including
// duplicates within events, and returns how many were written. The file is
// synced before Append returns. Re-appending a stored id is a no-op.
func (s *Store) Append(events ...service.CompletedTask) (int, error) {
	var buf bytes.Buffer
	var fresh []service.CompletedTask
	seen := make(map[service.TaskID]struct{}, len(events))

	for _, ev := range events {
		if ev.ID == "" {
			return 0, errors.New("append event: missing id")
		}
		if s.Has(ev.ID) {
			continue
		}
		if _, ok := seen[ev.ID]; ok {
			continue
		}
		seen[ev.ID] = struct{}{}

		line, err := json.Marshal(ev)
		if err != nil {
			return 0, fmt.Errorf("encode event %s: %w", ev.ID, err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
		fresh = append(fresh, ev)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return 0, fmt.Errorf("create event store dir: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return 0, fmt.Errorf("open event store: %w", err)
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return 0, fmt.Errorf("append events: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return 0, fmt.Errorf("sync event store: %w", err)
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close event store: %w", err)
	}

	for _, ev := range fresh {
		s.index[ev.ID] = struct{}{}
		s.events = append(s.events, ev)
	}
	return len(fresh), nil
}

// All returns every stored event ordered by completion time, ties by id.
func (s *Store) All() []service.CompletedTask {
	out := make([]service.CompletedTask, len(s.events))
	copy(out, s.events)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CompletedAt.Equal(out[j].CompletedAt) {
			return out[i].CompletedAt.Before(out[j].CompletedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
