// Package mapping holds the persisted association between a Google task and
// its Notion counterpart, and the pure delta-merge the reconciler feeds it.
package mapping

import "time"

// Entry pairs a Google task with a Notion page. CompletedAt is stamped when
// the pair reaches Done/Completed and is used only for retention pruning.
type Entry struct {
	GoogleID    string     `yaml:"google_id"`
	NotionID    string     `yaml:"notion_id"`
	CompletedAt *time.Time `yaml:"completed_at,omitempty"`
}

// Mapping is the ordered list of synced pairs for one user. Order is
// irrelevant to correctness; each GoogleID and each NotionID appears at most
// once.
type Mapping []Entry

func (m Mapping) ByGoogleID(id string) (Entry, bool) {
	for _, e := range m {
		if e.GoogleID == id {
			return e, true
		}
	}
	return Entry{}, false
}

func (m Mapping) ByNotionID(id string) (Entry, bool) {
	for _, e := range m {
		if e.NotionID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// CompletionUpdate stamps a new completion date onto an existing entry.
type CompletionUpdate struct {
	GoogleID    string
	CompletedAt *time.Time
}

// Delta is the result of one reconcile direction. Deleted holds Google-side
// ids (the mapping key), regardless of which side signalled the deletion.
// Errors collects per-task failures that were tolerated within the batch.
type Delta struct {
	Created []Entry
	Deleted []string
	Updated []CompletionUpdate
	Errors  []error
}

// Empty reports whether the delta would change the mapping.
func (d Delta) Empty() bool {
	return len(d.Created) == 0 && len(d.Deleted) == 0 && len(d.Updated) == 0
}

// Apply merges a delta into the mapping and returns the result. It never
// mutates its input, and applying the same delta twice yields the same
// mapping: created pairs already present are skipped, deleted ids are already
// absent, and completion updates are overwrites.
func Apply(m Mapping, d Delta) Mapping {
	deleted := make(map[string]struct{}, len(d.Deleted))
	for _, id := range d.Deleted {
		deleted[id] = struct{}{}
	}
	updated := make(map[string]*time.Time, len(d.Updated))
	for _, u := range d.Updated {
		updated[u.GoogleID] = u.CompletedAt
	}

	out := make(Mapping, 0, len(m)+len(d.Created))
	seenGoogle := make(map[string]struct{}, len(m))
	seenNotion := make(map[string]struct{}, len(m))
	for _, e := range m {
		if _, ok := deleted[e.GoogleID]; ok {
			continue
		}
		if completedAt, ok := updated[e.GoogleID]; ok {
			e.CompletedAt = completedAt
		}
		out = append(out, e)
		seenGoogle[e.GoogleID] = struct{}{}
		seenNotion[e.NotionID] = struct{}{}
	}
	for _, c := range d.Created {
		if _, ok := deleted[c.GoogleID]; ok {
			continue
		}
		if _, ok := seenGoogle[c.GoogleID]; ok {
			continue
		}
		if _, ok := seenNotion[c.NotionID]; ok {
			continue
		}
		out = append(out, c)
		seenGoogle[c.GoogleID] = struct{}{}
		seenNotion[c.NotionID] = struct{}{}
	}
	return out
}

// Prune drops entries completed at least retentionDays ago (floor of whole
// days). Entries without a completion date are kept forever; the pair is
// still active.
func Prune(m Mapping, now time.Time, retentionDays int) Mapping {
	out := make(Mapping, 0, len(m))
	for _, e := range m {
		if e.CompletedAt != nil {
			days := int(now.Sub(*e.CompletedAt).Hours() / 24)
			if days >= retentionDays {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}
