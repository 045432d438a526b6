package sync

import (
	"context"
	stdsync "sync"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/task"
)

// GoogleWriter is the slice of the Google Tasks client the reconciler needs.
// Complete is the "delete" operation: Google tasks are never removed, only
// marked completed.
type GoogleWriter interface {
	Create(ctx context.Context, listID string, t task.NotionTask) (task.GoogleTask, error)
	Update(ctx context.Context, listID, googleID string, t task.NotionTask) error
	Complete(ctx context.Context, listID, googleID string) error
}

// NotionWriter is the slice of the Notion client the reconciler needs.
// Archive is the Notion-side deletion: the page is archived, never removed.
type NotionWriter interface {
	Create(ctx context.Context, databaseID string, t task.GoogleTask) (task.NotionTask, error)
	Update(ctx context.Context, pageID string, t task.GoogleTask) error
	Archive(ctx context.Context, pageID string) error
}

// Reconciler computes and applies one direction of the sync at a time. All
// per-task API calls within a batch run concurrently; a single failure is
// recorded in the delta's Errors and never aborts the rest of the batch.
type Reconciler struct {
	google GoogleWriter
	notion NotionWriter
	listID string
	dbID   string
	now    func() time.Time
}

func NewReconciler(google GoogleWriter, notion NotionWriter, listID, databaseID string, now func() time.Time) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		google: google,
		notion: notion,
		listID: listID,
		dbID:   databaseID,
		now:    now,
	}
}

// completionDate derives the mapping's completion stamp: today's date when
// the task is done, nil otherwise.
func (r *Reconciler) completionDate(done bool) *time.Time {
	if !done {
		return nil
	}
	d := task.DateOnly(r.now())
	return &d
}

// NotionToGoogle makes Google mirror Notion.
//
// Deletions first: a mapping entry whose page no longer appears in the fresh
// full Notion listing means the page was archived, so the Google counterpart
// is completed. The deletion batch runs to completion before any creates, so
// an id freed by a delete cannot collide with a new pair in the same cycle.
// Then human-edited, conflict-winning pages are created or updated in Google.
func (r *Reconciler) NotionToGoogle(ctx context.Context, notionTasks []task.NotionTask, googleTasks []task.GoogleTask, m mapping.Mapping, watermark time.Time) mapping.Delta {
	var (
		delta mapping.Delta
		mu    stdsync.Mutex
	)

	present := make(map[string]struct{}, len(notionTasks))
	for _, n := range notionTasks {
		present[n.ID] = struct{}{}
	}

	var deleteWG conc.WaitGroup
	for _, e := range m {
		if _, ok := present[e.NotionID]; ok {
			continue
		}
		e := e
		deleteWG.Go(func() {
			err := r.google.Complete(ctx, r.listID, e.GoogleID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				delta.Errors = append(delta.Errors, err)
				return
			}
			delta.Deleted = append(delta.Deleted, e.GoogleID)
		})
	}
	deleteWG.Wait()

	candidates := NotionWinners(UpdatedNotionTasks(notionTasks, watermark), googleTasks, m)

	var wg conc.WaitGroup
	for _, n := range candidates {
		n := n
		completedAt := r.completionDate(n.Status == task.StatusDone)
		e, mapped := m.ByNotionID(n.ID)
		wg.Go(func() {
			if mapped {
				err := r.google.Update(ctx, r.listID, e.GoogleID, n)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					delta.Errors = append(delta.Errors, err)
					return
				}
				delta.Updated = append(delta.Updated, mapping.CompletionUpdate{GoogleID: e.GoogleID, CompletedAt: completedAt})
				return
			}
			created, err := r.google.Create(ctx, r.listID, n)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				delta.Errors = append(delta.Errors, err)
				return
			}
			delta.Created = append(delta.Created, mapping.Entry{GoogleID: created.ID, NotionID: n.ID, CompletedAt: completedAt})
		})
	}
	wg.Wait()

	return delta
}

// GoogleToNotion makes Notion mirror Google.
//
// The excluded set carries Google ids the first pass already completed;
// without it a just-deleted task would be reprocessed here as if it still
// existed. Tasks carrying Google's deleted flag archive their counterpart
// page; a deleted task that never had a counterpart produces no operation.
func (r *Reconciler) GoogleToNotion(ctx context.Context, googleTasks []task.GoogleTask, notionTasks []task.NotionTask, m mapping.Mapping, excluded map[string]struct{}, watermark time.Time) mapping.Delta {
	var (
		delta mapping.Delta
		mu    stdsync.Mutex
	)

	candidates := GoogleWinners(googleTasks, UpdatedNotionTasks(notionTasks, watermark), m)

	type pagePair struct {
		g        task.GoogleTask
		notionID string
	}
	var creates []task.GoogleTask
	var updates []pagePair
	var archives []pagePair
	for _, g := range candidates {
		if _, ok := excluded[g.ID]; ok {
			continue
		}
		e, mapped := m.ByGoogleID(g.ID)
		switch {
		case !mapped && g.Deleted:
			// Deleted in Google, never existed in Notion.
		case !mapped:
			creates = append(creates, g)
		case g.Deleted:
			archives = append(archives, pagePair{g, e.NotionID})
		default:
			updates = append(updates, pagePair{g, e.NotionID})
		}
	}

	var deleteWG conc.WaitGroup
	for _, a := range archives {
		a := a
		deleteWG.Go(func() {
			err := r.notion.Archive(ctx, a.notionID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				delta.Errors = append(delta.Errors, err)
				return
			}
			delta.Deleted = append(delta.Deleted, a.g.ID)
		})
	}
	deleteWG.Wait()

	var wg conc.WaitGroup
	for _, g := range creates {
		g := g
		completedAt := r.completionDate(g.Status == task.StatusDone && g.Completed != nil)
		wg.Go(func() {
			created, err := r.notion.Create(ctx, r.dbID, g)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				delta.Errors = append(delta.Errors, err)
				return
			}
			delta.Created = append(delta.Created, mapping.Entry{GoogleID: g.ID, NotionID: created.ID, CompletedAt: completedAt})
		})
	}
	for _, u := range updates {
		u := u
		completedAt := r.completionDate(u.g.Status == task.StatusDone && u.g.Completed != nil)
		wg.Go(func() {
			err := r.notion.Update(ctx, u.notionID, u.g)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				delta.Errors = append(delta.Errors, err)
				return
			}
			delta.Updated = append(delta.Updated, mapping.CompletionUpdate{GoogleID: u.g.ID, CompletedAt: completedAt})
		})
	}
	wg.Wait()

	return delta
}
