package googletasks

import (
	"time"

	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/taskbridge/taskbridge/internal/task"
)

// FromAPI converts an API task into the engine's model. Timestamps the API
// could not produce parse to zero values rather than failing the whole fetch.
func FromAPI(t *tasksapi.Task) task.GoogleTask {
	out := task.GoogleTask{
		ID:      t.Id,
		Title:   t.Title,
		Status:  task.StatusFromGoogle(t.Status),
		Deleted: t.Deleted,
		Hidden:  t.Hidden,
	}
	if updated, err := time.Parse(time.RFC3339, t.Updated); err == nil {
		out.Updated = updated
	}
	if t.Due != "" {
		if due, err := time.Parse(time.RFC3339, t.Due); err == nil {
			out.Due = task.DateOnly(due)
		}
	}
	if t.Completed != nil {
		if completed, err := time.Parse(time.RFC3339, *t.Completed); err == nil {
			out.Completed = &completed
		}
	}
	return out
}

// ToAPI builds the API payload for creating or patching a Google task from
// its Notion counterpart. Title is force-sent so clearing a page title
// clears the task title too.
func ToAPI(n task.NotionTask) *tasksapi.Task {
	t := &tasksapi.Task{
		Title:           n.Title,
		Status:          n.Status.GoogleValue(),
		ForceSendFields: []string{"Title"},
	}
	if !n.Due.IsZero() {
		t.Due = task.DateOnly(n.Due).Format(time.RFC3339)
	}
	return t
}
