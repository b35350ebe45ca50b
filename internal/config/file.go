package config

import (
	"fmt"
	"os"
	"time"
	_ "time/tzdata" // CI runners may ship without a zoneinfo database

	"gopkg.in/yaml.v3"

	"donelog/internal/service"
)

const (
	// BackendTodoist selects the Todoist API backend.
	BackendTodoist = "todoist"

	// BackendGoogleTasks selects the Google Tasks backend.
	BackendGoogleTasks = "googletasks"

	// DefaultLookbackHours is the first-run window when no state exists.
	DefaultLookbackHours = 24
)

// File is the workspace configuration file. Both JSON and YAML are accepted
// since the YAML decoder reads JSON documents as-is.
type File struct {
	AllowedRootTaskIDs []service.TaskID `yaml:"allowed_root_task_ids"`
	Timezone           string           `yaml:"timezone"`
	LookbackHours      int              `yaml:"lookback_hours"`
	Backend            string           `yaml:"backend"`
}

// DefaultFile returns the configuration used when no file exists.
func DefaultFile() File {
	return File{
		Timezone:      "UTC",
		LookbackHours: DefaultLookbackHours,
		Backend:       BackendTodoist,
	}
}

// LoadFile reads the configuration file at path.
// A missing file yields DefaultFile with an empty allowlist.
func LoadFile(path string) (File, error) {
	f := DefaultFile()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return File{}, err
	}

	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("parse config: %w", err)
	}
	if err := f.validate(); err != nil {
		return File{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return f, nil
}

func (f *File) validate() error {
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(f.Timezone); err != nil {
		return fmt.Errorf("timezone: %w", err)
	}
	if f.LookbackHours == 0 {
		f.LookbackHours = DefaultLookbackHours
	}
	if f.LookbackHours < 0 {
		return fmt.Errorf("lookback_hours must be positive: %d", f.LookbackHours)
	}
	switch f.Backend {
	case "":
		f.Backend = BackendTodoist
	case BackendTodoist, BackendGoogleTasks:
	default:
		return fmt.Errorf("unknown backend: %s", f.Backend)
	}
	for i, id := range f.AllowedRootTaskIDs {
		if id == "" {
			return fmt.Errorf("allowed_root_task_ids[%d] is empty", i)
		}
	}
	return nil
}

// Location returns the reference timezone for week grouping.
func (f File) Location() *time.Location {
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Lookback returns the first-run window length.
func (f File) Lookback() time.Duration {
	return time.Duration(f.LookbackHours) * time.Hour
}
