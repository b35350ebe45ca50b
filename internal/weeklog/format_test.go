package weeklog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"donelog/internal/service"
	"donelog/internal/weeklog"
)

type parents map[service.TaskID]string

func (p parents) ParentTitle(ctx context.Context, id service.TaskID) (string, bool) {
	title, ok := p[id]
	return title, ok
}

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestWeekStart(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)

	tests := []struct {
		name string
		at   string
		loc  *time.Location
		want string
	}{
		{"monday", "2026-03-02T10:00:00-08:00", time.UTC, "2026-03-02"},
		{"sunday", "2026-03-08T23:59:59Z", time.UTC, "2026-03-02"},
		{"next monday", "2026-03-09T00:00:00Z", time.UTC, "2026-03-09"},
		{"utc monday is local sunday", "2026-03-09T03:00:00Z", la, "2026-03-02"},
		{"across new year", "2026-01-01T12:00:00Z", time.UTC, "2025-12-29"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ws := weeklog.WeekStart(mustTime(t, tt.at), tt.loc)
			assert.Equal(t, tt.want, ws.Format("2006-01-02"))
			assert.Equal(t, time.Monday, ws.Weekday())
			assert.Equal(t, "## Week of "+tt.want, weeklog.Heading(ws))
		})
	}
}

func TestFormatLine(t *testing.T) {
	r := &weeklog.Renderer{
		Location: time.UTC,
		Projects: map[service.ProjectID]string{"10": "Writing"},
		Parents:  parents{"5": "Book"},
	}
	ctx := context.Background()
	at := mustTime(t, "2026-03-02T10:00:00-08:00")

	tests := []struct {
		name string
		ev   service.CompletedTask
		want string
	}{
		{
			name: "root task",
			ev:   service.CompletedTask{ID: "1", Content: "Write draft", CompletedAt: at, ProjectID: "10", Priority: 2},
			want: "- 2026-03-02 — [Writing] (P2) Write draft",
		},
		{
			name: "resolved parent",
			ev:   service.CompletedTask{ID: "2", Content: "Outline", CompletedAt: at, ProjectID: "10", ParentID: "5", Priority: 1},
			want: "- 2026-03-02 — [Writing] (P1) Outline (parent: Book)",
		},
		{
			name: "unresolved parent",
			ev:   service.CompletedTask{ID: "3", Content: "Edit", CompletedAt: at, ProjectID: "10", ParentID: "6", Priority: 4},
			want: "- 2026-03-02 — [Writing] (P4) Edit (parent_id: 6)",
		},
		{
			name: "unknown project",
			ev:   service.CompletedTask{ID: "4", Content: "Call", CompletedAt: at, ProjectID: "99", Priority: 3},
			want: "- 2026-03-02 — [99] (P3) Call",
		},
		{
			name: "multiline content",
			ev:   service.CompletedTask{ID: "5", Content: "  line one\nline two ", CompletedAt: at, ProjectID: "10", Priority: 1},
			want: "- 2026-03-02 — [Writing] (P1) line one line two",
		},
		{
			name: "empty content and out of range priority",
			ev:   service.CompletedTask{ID: "6", Content: " ", CompletedAt: at, ProjectID: "10", Priority: 0},
			want: "- 2026-03-02 — [Writing] (P1) (untitled)",
		},
		{
			name: "decomposed accents are composed",
			ev:   service.CompletedTask{ID: "7", Content: "Cafe\u0301", CompletedAt: at, ProjectID: "10", Priority: 1},
			want: "- 2026-03-02 — [Writing] (P1) Caf\u00e9",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.FormatLine(ctx, tt.ev))
		})
	}
}

func TestFormatLine_LocalDate(t *testing.T) {
	la, err := time.LoadLocation("America/Los_Angeles")
	require.NoError(t, err)
	r := &weeklog.Renderer{Location: la}

	ev := service.CompletedTask{ID: "1", Content: "Late night", CompletedAt: mustTime(t, "2026-03-03T05:00:00Z"), ProjectID: "10", Priority: 1}
	assert.Equal(t, "- 2026-03-02 — [10] (P1) Late night", r.FormatLine(context.Background(), ev))
}

func TestFormatLine_NilParents(t *testing.T) {
	r := &weeklog.Renderer{}
	ev := service.CompletedTask{ID: "1", Content: "x", CompletedAt: mustTime(t, "2026-03-02T00:00:00Z"), ProjectID: "10", ParentID: "9", Priority: 1}
	assert.Equal(t, "- 2026-03-02 — [10] (P1) x (parent_id: 9)", r.FormatLine(context.Background(), ev))
}
