package logs

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func notService(t *testing.T) {
	t.Helper()
	orig := cgroupPath
	cgroupPath = func() (string, error) { return "/user.slice/session-1.scope", nil }
	t.Cleanup(func() { cgroupPath = orig })
}

func TestLevel(t *testing.T) {
	assert.Equal(t, slog.LevelInfo, Level(false, false))
	assert.Equal(t, slog.LevelDebug, Level(true, false))
	assert.Equal(t, slog.LevelWarn, Level(false, true))
	assert.Equal(t, slog.LevelDebug, Level(true, true))
}

func TestNew_WritesText(t *testing.T) {
	notService(t)
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("visible", "count", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=visible")
	assert.Contains(t, out, "count=3")
}

func TestNew_RedactsCredentials(t *testing.T) {
	notService(t)
	var buf bytes.Buffer
	logger := New(&buf, slog.LevelInfo)

	logger.Info("auth", "api_token", "s3cr3t", "Authorization", "Bearer s3cr3t")

	assert.NotContains(t, buf.String(), "s3cr3t")
	assert.Contains(t, buf.String(), "api_token="+redacted)
}

func TestWithRun(t *testing.T) {
	notService(t)
	var buf bytes.Buffer
	logger, id := WithRun(New(&buf, slog.LevelInfo))

	parsed, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	logger.Info("start")
	assert.Contains(t, buf.String(), RunIDKey+"="+id)

	_, other := WithRun(logger)
	assert.NotEqual(t, id, other)
}

func TestIsSystemdService(t *testing.T) {
	orig := cgroupPath
	t.Cleanup(func() { cgroupPath = orig })

	cases := []struct {
		path string
		err  error
		want bool
	}{
		{"/system.slice/donelog.service\n", nil, true},
		{"/system.slice/donelog.service/payload", nil, true},
		{"/user.slice/user-1000.slice/session-2.scope", nil, false},
		{"", errors.New("no proc"), false},
	}
	for _, tc := range cases {
		cgroupPath = func() (string, error) { return tc.path, tc.err }
		assert.Equal(t, tc.want, isSystemdService(), tc.path)
	}
}

func TestToJournalKey(t *testing.T) {
	assert.Equal(t, "RUN_ID", toJournalKey("run_id"))
	assert.Equal(t, "TASK_ID", toJournalKey("task.id"))
	assert.Equal(t, "MSG2", toJournalKey("msg2"))
}
