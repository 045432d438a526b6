package sync

import (
	"time"

	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/task"
)

// UpdatedNotionTasks keeps the pages a human edited since the watermark.
//
// Notion stores last-edited times at whole-minute precision, so the watermark
// is truncated to the minute and compared with >=: truncation can make a
// page's own edit instant equal to the watermark, and that edit must still
// count as new. Pages whose last edit came from the sync bot are dropped,
// which is what breaks the sync loop.
func UpdatedNotionTasks(tasks []task.NotionTask, watermark time.Time) []task.NotionTask {
	cutoff := watermark.Truncate(time.Minute)
	out := make([]task.NotionTask, 0, len(tasks))
	for _, t := range tasks {
		if t.LastEditedByBot {
			continue
		}
		if t.LastEdited.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	return out
}

// NotionWinners resolves concurrent edits for the Notion→Google direction.
// A page loses only when its Google counterpart was edited strictly later;
// on a tie Notion wins, mirroring the >= on the other comparison below.
func NotionWinners(notionTasks []task.NotionTask, googleTasks []task.GoogleTask, m mapping.Mapping) []task.NotionTask {
	byID := make(map[string]task.GoogleTask, len(googleTasks))
	for _, g := range googleTasks {
		byID[g.ID] = g
	}

	out := make([]task.NotionTask, 0, len(notionTasks))
	for _, n := range notionTasks {
		e, ok := m.ByNotionID(n.ID)
		if !ok {
			// New page, nothing to conflict with.
			out = append(out, n)
			continue
		}
		g, ok := byID[e.GoogleID]
		if !ok {
			// Counterpart not edited since the watermark.
			out = append(out, n)
			continue
		}
		if !n.LastEdited.Before(g.Updated) {
			out = append(out, n)
		}
	}
	return out
}

// GoogleWinners resolves concurrent edits for the Google→Notion direction.
// The Google task wins only when its edit is strictly newer than the Notion
// counterpart's; the tie goes to Notion and is applied by the other pass.
func GoogleWinners(googleTasks []task.GoogleTask, updatedNotion []task.NotionTask, m mapping.Mapping) []task.GoogleTask {
	byID := make(map[string]task.NotionTask, len(updatedNotion))
	for _, n := range updatedNotion {
		byID[n.ID] = n
	}

	out := make([]task.GoogleTask, 0, len(googleTasks))
	for _, g := range googleTasks {
		e, ok := m.ByGoogleID(g.ID)
		if !ok {
			out = append(out, g)
			continue
		}
		n, ok := byID[e.NotionID]
		if !ok {
			out = append(out, g)
			continue
		}
		if g.Updated.After(n.LastEdited) {
			out = append(out, g)
		}
	}
	return out
}
