package weeklog

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"donelog/internal/service"
)

// Line is one rendered output line.
type Line struct {
	Text    string
	Heading bool
}

// Plan orders events by completion time (ties by id) and renders them,
// emitting a heading each time the week differs from the current trailing
// heading. trailing is the last heading already present in the log, if any.
//
// A week that is not the trailing one always gets a fresh heading, even if
// an older section for the same week exists further up the log.
func (r *Renderer) Plan(ctx context.Context, events []service.CompletedTask, trailing string) []Line {
	sorted := make([]service.CompletedTask, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CompletedAt.Equal(sorted[j].CompletedAt) {
			return sorted[i].CompletedAt.Before(sorted[j].CompletedAt)
		}
		return sorted[i].ID < sorted[j].ID
	})

	var lines []Line
	current := trailing
	for _, ev := range sorted {
		if h := r.HeadingFor(ev); h != current {
			lines = append(lines, Line{Text: h, Heading: true})
			current = h
		}
		lines = append(lines, Line{Text: r.FormatLine(ctx, ev)})
	}
	return lines
}

// Tail describes the end of an existing log.
type Tail struct {
	Exists bool
	Size   int64

	// Heading is the last week heading in the file, empty if none.
	Heading string

	// EndsWithNewline is true for an empty or newline-terminated file.
	EndsWithNewline bool
}

// ReadTail scans the log at path for its last week heading.
func ReadTail(path string) (Tail, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Tail{EndsWithNewline: true}, nil
		}
		return Tail{}, fmt.Errorf("read log: %w", err)
	}
	defer f.Close()

	tail := Tail{Exists: true, EndsWithNewline: true}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			tail.Size += int64(len(line))
			tail.EndsWithNewline = strings.HasSuffix(line, "\n")
			text := strings.TrimRight(line, "\r\n")
			if strings.HasPrefix(text, HeadingPrefix) {
				tail.Heading = strings.TrimSpace(text)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Tail{}, fmt.Errorf("read log: %w", err)
		}
	}
	return tail, nil
}

// Chunk renders planned lines as the bytes to append after tail.
// Headings after existing content are separated by a blank line.
func Chunk(tail Tail, lines []Line) []byte {
	var buf bytes.Buffer
	if !tail.EndsWithNewline {
		buf.WriteByte('\n')
	}
	for _, l := range lines {
		if l.Heading && (tail.Size > 0 || buf.Len() > 0) {
			buf.WriteByte('\n')
		}
		buf.WriteString(l.Text)
		buf.WriteByte('\n')
		if l.Heading {
			buf.WriteByte('\n')
		}
	}
	return buf.Bytes()
}

// logFile is the subset of *os.File the appender uses.
type logFile interface {
	io.Writer
	Sync() error
	Truncate(size int64) error
	Close() error
}

var openLog = func(path string) (logFile, error) {
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

// Append renders events and appends them to the log at path in a single
// write followed by fsync. It returns the number of task lines written.
//
// With no events the file is not touched. If the write or sync fails the
// file is cut back to its previous size (or removed if it did not exist),
// so the log is never left with a partial line or heading.
func (r *Renderer) Append(ctx context.Context, path string, events []service.CompletedTask) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	tail, err := ReadTail(path)
	if err != nil {
		return 0, err
	}
	lines := r.Plan(ctx, events, tail.Heading)
	chunk := Chunk(tail, lines)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return 0, fmt.Errorf("create log dir: %w", err)
	}
	f, err := openLog(path)
	if err != nil {
		return 0, fmt.Errorf("open log: %w", err)
	}

	rollback := func(cause error) error {
		if tail.Exists {
			if terr := f.Truncate(tail.Size); terr != nil {
				cause = errors.Join(cause, fmt.Errorf("roll back log: %w", terr))
			}
			f.Close()
		} else {
			f.Close()
			if rerr := os.Remove(path); rerr != nil && !errors.Is(rerr, fs.ErrNotExist) {
				cause = errors.Join(cause, fmt.Errorf("roll back log: %w", rerr))
			}
		}
		return cause
	}

	if _, err := f.Write(chunk); err != nil {
		return 0, rollback(fmt.Errorf("append log: %w", err))
	}
	if err := f.Sync(); err != nil {
		return 0, rollback(fmt.Errorf("sync log: %w", err))
	}
	if err := f.Close(); err != nil {
		return 0, fmt.Errorf("close log: %w", err)
	}

	n := 0
	for _, l := range lines {
		if !l.Heading {
			n++
		}
	}
	return n, nil
}
