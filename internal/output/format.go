// Package output provides formatters for CLI output.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"donelog/internal/service"
)

// FormatTaskMatch formats one lookup result.
// Format: "{ID}\t{CONTENT}\t[{PROJECT}]\n"; subtasks add "\t(parent {ID})".
func FormatTaskMatch(w io.Writer, task service.Task, project string) {
	line := fmt.Sprintf("%s\t%s\t[%s]", task.ID, normalizeTitle(task.Content), normalizeProject(project, task.ProjectID))
	if task.ParentID != "" {
		line += fmt.Sprintf("\t(parent %s)", task.ParentID)
	}
	fmt.Fprintln(w, line)
}

// FormatAllowlistSnippet writes a config.json fragment listing ids.
func FormatAllowlistSnippet(w io.Writer, ids []service.TaskID) error {
	data, err := json.MarshalIndent(struct {
		AllowedRootTaskIDs []service.TaskID `json:"allowed_root_task_ids"`
	}{ids}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines and tabs are replaced with spaces
func normalizeTitle(title string) string {
	title = strings.NewReplacer("\r", " ", "\n", " ", "\t", " ").Replace(title)
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

// normalizeProject falls back to the project id when the name is unknown.
func normalizeProject(name string, id service.ProjectID) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	if id != "" {
		return "project " + id.String()
	}
	return "no project"
}
