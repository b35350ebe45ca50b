// Package weeklog renders accepted completions into an append-only markdown
// log grouped under one heading per calendar week (weeks start on Monday).
package weeklog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"donelog/internal/service"
)

const (
	// HeadingPrefix starts every week heading.
	HeadingPrefix = "## Week of "

	dateLayout = "2006-01-02"
)

// ParentNamer resolves a parent task id to a display title, best effort.
type ParentNamer interface {
	ParentTitle(ctx context.Context, id service.TaskID) (string, bool)
}

// Renderer turns completed tasks into log lines. Display lookups never fail
// the render; unresolved names degrade to placeholders.
type Renderer struct {
	// Location is the reference timezone for dates and week boundaries.
	Location *time.Location

	// Projects maps project ids to names.
	Projects map[service.ProjectID]string

	// Parents resolves parent titles. May be nil.
	Parents ParentNamer
}

func (r *Renderer) location() *time.Location {
	if r.Location == nil {
		return time.UTC
	}
	return r.Location
}

// WeekStart returns local midnight of the Monday on or before t.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	offset := (int(t.Weekday()) + 6) % 7
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, loc)
}

// Heading returns the heading line for the week starting at weekStart.
func Heading(weekStart time.Time) string {
	return HeadingPrefix + weekStart.Format(dateLayout)
}

// HeadingFor returns the heading of the week containing ev in r's timezone.
func (r *Renderer) HeadingFor(ev service.CompletedTask) string {
	return Heading(WeekStart(ev.CompletedAt, r.location()))
}

// FormatLine renders one task line, without the trailing newline.
func (r *Renderer) FormatLine(ctx context.Context, ev service.CompletedTask) string {
	date := ev.CompletedAt.In(r.location()).Format(dateLayout)

	project, ok := r.Projects[ev.ProjectID]
	if !ok || strings.TrimSpace(project) == "" {
		project = string(ev.ProjectID)
	}

	line := fmt.Sprintf("- %s — [%s] (P%d) %s", date, singleLine(project), clampPriority(ev.Priority), normalizeContent(ev.Content))

	if ev.HasParent() {
		if title, ok := r.parentTitle(ctx, ev.ParentID); ok {
			line += fmt.Sprintf(" (parent: %s)", title)
		} else {
			line += fmt.Sprintf(" (parent_id: %s)", ev.ParentID)
		}
	}
	return line
}

func (r *Renderer) parentTitle(ctx context.Context, id service.TaskID) (string, bool) {
	if r.Parents == nil {
		return "", false
	}
	title, ok := r.Parents.ParentTitle(ctx, id)
	if !ok {
		return "", false
	}
	title = normalizeContent(title)
	return title, title != untitled
}

const untitled = "(untitled)"

// normalizeContent makes task content safe for a single markdown line.
// - CR and LF become spaces
// - Surrounding whitespace is trimmed
// - Text is NFC-normalised so visually equal titles are byte-equal
// - Empty content becomes "(untitled)"
func normalizeContent(s string) string {
	s = strings.TrimSpace(singleLine(s))
	if s == "" {
		return untitled
	}
	return norm.NFC.String(s)
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}

func clampPriority(p int) int {
	switch {
	case p < 1:
		return 1
	case p > 4:
		return 4
	}
	return p
}
