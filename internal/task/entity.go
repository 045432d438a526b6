package task

import "time"

// Status is the engine's binary task state. Each side has its own vocabulary
// for it; everything inside the engine uses this one.
type Status int

const (
	StatusOpen Status = iota
	StatusDone
)

const (
	googleStatusOpen = "needsAction"
	googleStatusDone = "completed"

	notionStatusOpen = "To Do"
	notionStatusDone = "Done"
)

func (s Status) GoogleValue() string {
	if s == StatusDone {
		return googleStatusDone
	}
	return googleStatusOpen
}

func (s Status) NotionValue() string {
	if s == StatusDone {
		return notionStatusDone
	}
	return notionStatusOpen
}

func StatusFromGoogle(v string) Status {
	if v == googleStatusDone {
		return StatusDone
	}
	return StatusOpen
}

func StatusFromNotion(v string) Status {
	if v == notionStatusDone {
		return StatusDone
	}
	return StatusOpen
}

// GoogleTask is the engine's view of a Google Tasks item. Updated is reliable
// to the millisecond. Due carries no usable time-of-day: the API neither
// reads nor writes the time portion.
type GoogleTask struct {
	ID        string
	Title     string // may be empty
	Status    Status
	Due       time.Time // zero means no due date; otherwise midnight UTC
	Updated   time.Time
	Completed *time.Time
	Deleted   bool
	Hidden    bool
}

// NotionTask is the engine's view of a page in the user's task database.
// LastEdited is only reliable to the minute, which is why watermark
// comparisons truncate seconds (see sync.UpdatedNotionTasks).
type NotionTask struct {
	ID              string
	Title           string
	Status          Status
	Due             time.Time // zero means no due date
	LastEdited      time.Time
	LastEditedByBot bool
}

// DateOnly truncates t to its calendar day in UTC. Both sides store due and
// completion dates at day precision.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
