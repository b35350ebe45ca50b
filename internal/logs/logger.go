// Package logs builds the process logger.
package logs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	slogmulti "github.com/samber/slog-multi"
	slogjournal "github.com/systemd/slog-journal"
)

// RunIDKey is the attribute carrying the per-run identifier.
const RunIDKey = "run_id"

const redacted = "[redacted]"

// cgroupPath is replaced in tests.
var cgroupPath = getCgroupPath

// Level maps the CLI verbosity flags onto a slog level.
func Level(debug, quiet bool) slog.Level {
	switch {
	case debug:
		return slog.LevelDebug
	case quiet:
		return slog.LevelWarn
	}
	return slog.LevelInfo
}

// New returns a logger writing text records to w, or to the systemd
// journal when the process runs as a systemd service.
func New(w io.Writer, level slog.Leveler) *slog.Logger {
	var handlers []slog.Handler

	terminal := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: redact,
	})

	if isSystemdService() {
		journal, err := slogjournal.NewHandler(&slogjournal.Options{
			Level: level,
			ReplaceGroup: func(key string) string {
				return toJournalKey(key)
			},
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				a = redact(groups, a)
				a.Key = toJournalKey(a.Key)
				return a
			},
		})
		if err == nil {
			handlers = append(handlers, journal)
		} else {
			record := slog.NewRecord(time.Now(), slog.LevelWarn, "new systemd journal handler", 0)
			record.AddAttrs(slog.Any("error", err))
			_ = terminal.Handle(context.Background(), record)
		}
	}
	if len(handlers) == 0 {
		handlers = append(handlers, terminal)
	}

	return slog.New(slogmulti.Fanout(handlers...))
}

// WithRun tags every record of logger with a fresh time-ordered run id.
func WithRun(logger *slog.Logger) (*slog.Logger, string) {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return logger.With(RunIDKey, id.String()), id.String()
}

// redact hides values whose key names a credential.
func redact(_ []string, a slog.Attr) slog.Attr {
	key := strings.ToLower(a.Key)
	if strings.Contains(key, "token") || strings.Contains(key, "secret") || key == "authorization" {
		return slog.String(a.Key, redacted)
	}
	return a
}

func isSystemdService() bool {
	p, err := cgroupPath()
	if err != nil {
		return false
	}
	return strings.HasSuffix(path.Dir(strings.TrimSpace(p)), ".service") ||
		strings.HasSuffix(strings.TrimSpace(p), ".service")
}

func toJournalKey(str string) string {
	str = strings.ToUpper(str)
	return strings.Map(func(r rune) rune {
		if r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' {
			return r
		}
		return '_'
	}, str)
}

func getCgroupPath() (string, error) {
	content, err := os.ReadFile("/proc/self/cgroup")
	if err != nil {
		return "", err
	}
	parts := strings.SplitN(string(content), ":", 3)
	if len(parts) == 3 {
		return parts[2], nil
	}
	return "", nil
}
