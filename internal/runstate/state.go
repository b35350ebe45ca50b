// Package runstate tracks the last successfully processed fetch window.
package runstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// ISOLayout is the persisted timestamp format.
const ISOLayout = "2006-01-02T15:04:05Z"

// State is the persisted run state.
type State struct {
	LastRunISO string `json:"last_run_iso,omitempty"`
}

// Window is the half-open interval [Start, End) processed by one run.
type Window struct {
	Start time.Time
	End   time.Time
}

// String implements fmt.Stringer.
func (w Window) String() string {
	return w.Start.UTC().Format(ISOLayout) + "/" + w.End.UTC().Format(ISOLayout)
}

// Clamp shortens the window from the start so it spans at most max.
func (w Window) Clamp(max time.Duration) Window {
	if w.End.Sub(w.Start) > max {
		w.Start = w.End.Add(-max)
	}
	return w
}

// Load reads the state file at path. A missing file yields the zero State.
func Load(path string) (State, error) {
	var s State
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return State{}, fmt.Errorf("read state: %w", err)
	}
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("parse state %s: %w", path, err)
	}
	if s.LastRunISO != "" {
		if _, err := s.LastRun(); err != nil {
			return State{}, fmt.Errorf("parse state %s: %w", path, err)
		}
	}
	return s, nil
}

// LastRun parses LastRunISO. Offsets other than Z are accepted.
func (s State) LastRun() (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s.LastRunISO)
	if err != nil {
		return time.Time{}, fmt.Errorf("last_run_iso: %w", err)
	}
	return t.UTC(), nil
}

// Window returns the fetch window for a run starting at now. Without a
// prior run the window reaches lookback into the past.
func (s State) Window(now time.Time, lookback time.Duration) Window {
	end := now.UTC().Truncate(time.Second)
	start := end.Add(-lookback)
	if last, err := s.LastRun(); s.LastRunISO != "" && err == nil {
		start = last
	}
	return Window{Start: start, End: end}
}

// Commit persists end as the new last_run_iso. Callers commit only after
// every write of the run succeeded.
func Commit(path string, end time.Time) error {
	data, err := json.MarshalIndent(State{LastRunISO: end.UTC().Format(ISOLayout)}, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state.*")
	if err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("commit state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("commit state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("commit state: %w", err)
	}
	return nil
}
