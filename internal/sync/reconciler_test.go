package sync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/task"
)

type fakeGoogle struct {
	mu        sync.Mutex
	nextID    int
	created   []task.NotionTask
	updated   map[string]task.NotionTask
	completed []string
	failOn    map[string]error
}

func newFakeGoogle() *fakeGoogle {
	return &fakeGoogle{
		updated: map[string]task.NotionTask{},
		failOn:  map[string]error{},
	}
}

func (f *fakeGoogle) Create(_ context.Context, _ string, t task.NotionTask) (task.GoogleTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[t.ID]; ok {
		return task.GoogleTask{}, err
	}
	f.nextID++
	f.created = append(f.created, t)
	return task.GoogleTask{ID: fmt.Sprintf("g-new-%d", f.nextID), Title: t.Title}, nil
}

func (f *fakeGoogle) Update(_ context.Context, _ string, googleID string, t task.NotionTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[googleID]; ok {
		return err
	}
	f.updated[googleID] = t
	return nil
}

func (f *fakeGoogle) Complete(_ context.Context, _ string, googleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[googleID]; ok {
		return err
	}
	f.completed = append(f.completed, googleID)
	return nil
}

type fakeNotion struct {
	mu       sync.Mutex
	nextID   int
	created  []task.GoogleTask
	updated  map[string]task.GoogleTask
	archived []string
	failOn   map[string]error
}

func newFakeNotion() *fakeNotion {
	return &fakeNotion{
		updated: map[string]task.GoogleTask{},
		failOn:  map[string]error{},
	}
}

func (f *fakeNotion) Create(_ context.Context, _ string, g task.GoogleTask) (task.NotionTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[g.ID]; ok {
		return task.NotionTask{}, err
	}
	f.nextID++
	f.created = append(f.created, g)
	return task.NotionTask{ID: fmt.Sprintf("n-new-%d", f.nextID), Title: g.Title}, nil
}

func (f *fakeNotion) Update(_ context.Context, pageID string, g task.GoogleTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[pageID]; ok {
		return err
	}
	f.updated[pageID] = g
	return nil
}

func (f *fakeNotion) Archive(_ context.Context, pageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOn[pageID]; ok {
		return err
	}
	f.archived = append(f.archived, pageID)
	return nil
}

func testReconciler(g *fakeGoogle, n *fakeNotion) *Reconciler {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return NewReconciler(g, n, "list-1", "db-1", func() time.Time { return now })
}

func TestNotionToGoogleCreatesNewPage(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	notionTasks := []task.NotionTask{
		{ID: "n1", Title: "buy milk", Status: task.StatusOpen, LastEdited: watermark.Add(10 * time.Minute)},
	}

	d := r.NotionToGoogle(context.Background(), notionTasks, nil, mapping.Mapping{}, watermark)
	require.Empty(t, d.Errors)
	require.Len(t, d.Created, 1)
	assert.Equal(t, "n1", d.Created[0].NotionID)
	assert.NotEmpty(t, d.Created[0].GoogleID)
	assert.Nil(t, d.Created[0].CompletedAt)
	assert.Len(t, g.created, 1)
}

func TestNotionToGoogleCompletedCreateStampsDate(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	notionTasks := []task.NotionTask{
		{ID: "n1", Title: "done already", Status: task.StatusDone, LastEdited: watermark.Add(time.Minute)},
	}

	d := r.NotionToGoogle(context.Background(), notionTasks, nil, mapping.Mapping{}, watermark)
	require.Len(t, d.Created, 1)
	require.NotNil(t, d.Created[0].CompletedAt)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *d.Created[0].CompletedAt)
}

func TestNotionToGoogleDeletionByAbsence(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	m := mapping.Mapping{
		{GoogleID: "g1", NotionID: "n1"},
		{GoogleID: "g2", NotionID: "n2"},
	}
	// n1 archived: absent from the fresh full listing.
	notionTasks := []task.NotionTask{{ID: "n2", LastEdited: watermark.Add(-time.Hour)}}

	d := r.NotionToGoogle(context.Background(), notionTasks, nil, m, watermark)
	require.Empty(t, d.Errors)
	assert.Equal(t, []string{"g1"}, d.Deleted)
	assert.Equal(t, []string{"g1"}, g.completed)
	assert.Empty(t, d.Created)
}

func TestNotionToGoogleConflictLoserSkipped(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	m := mapping.Mapping{{GoogleID: "g1", NotionID: "n1"}}
	edited := watermark.Add(5 * time.Minute)
	notionTasks := []task.NotionTask{{ID: "n1", Title: "notion side", LastEdited: edited}}
	googleTasks := []task.GoogleTask{{ID: "g1", Title: "google side", Updated: edited.Add(time.Second)}}

	d := r.NotionToGoogle(context.Background(), notionTasks, googleTasks, m, watermark)
	assert.True(t, d.Empty())
	assert.Empty(t, g.updated)
}

func TestNotionToGooglePartialFailureIsolated(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	g.failOn["n-bad"] = errors.New("quota exceeded")
	notionTasks := []task.NotionTask{
		{ID: "n-bad", Title: "fails", LastEdited: watermark.Add(time.Minute)},
		{ID: "n-ok", Title: "succeeds", LastEdited: watermark.Add(time.Minute)},
	}

	d := r.NotionToGoogle(context.Background(), notionTasks, nil, mapping.Mapping{}, watermark)
	require.Len(t, d.Errors, 1)
	require.Len(t, d.Created, 1)
	assert.Equal(t, "n-ok", d.Created[0].NotionID)
}

func TestGoogleToNotionCreatesAndUpdates(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	m := mapping.Mapping{{GoogleID: "g1", NotionID: "n1"}}
	googleTasks := []task.GoogleTask{
		{ID: "g1", Title: "edited in google", Updated: watermark.Add(time.Minute)},
		{ID: "g2", Title: "brand new", Updated: watermark.Add(time.Minute)},
	}

	d := r.GoogleToNotion(context.Background(), googleTasks, nil, m, nil, watermark)
	require.Empty(t, d.Errors)
	require.Len(t, d.Created, 1)
	assert.Equal(t, "g2", d.Created[0].GoogleID)
	require.Len(t, d.Updated, 1)
	assert.Equal(t, "g1", d.Updated[0].GoogleID)
	assert.Contains(t, n.updated, "n1")
}

func TestGoogleToNotionDeletionArchivesPage(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	m := mapping.Mapping{{GoogleID: "g1", NotionID: "n1"}}
	googleTasks := []task.GoogleTask{
		{ID: "g1", Updated: watermark.Add(time.Minute), Deleted: true},
		{ID: "g-unmapped", Updated: watermark.Add(time.Minute), Deleted: true},
	}

	d := r.GoogleToNotion(context.Background(), googleTasks, nil, m, nil, watermark)
	require.Empty(t, d.Errors)
	assert.Equal(t, []string{"g1"}, d.Deleted)
	assert.Equal(t, []string{"n1"}, n.archived)
	// A deleted task that never had a counterpart is a no-op.
	assert.Empty(t, d.Created)
}

func TestGoogleToNotionExcludesFirstPassDeletions(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	m := mapping.Mapping{{GoogleID: "g1", NotionID: "n1"}}
	googleTasks := []task.GoogleTask{{ID: "g1", Updated: watermark.Add(time.Minute)}}
	excluded := map[string]struct{}{"g1": {}}

	d := r.GoogleToNotion(context.Background(), googleTasks, nil, m, excluded, watermark)
	assert.True(t, d.Empty())
	assert.Empty(t, n.updated)
}

func TestGoogleToNotionConflictLoserSkipped(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	m := mapping.Mapping{{GoogleID: "g1", NotionID: "n1"}}
	edited := watermark.Add(5 * time.Minute)
	googleTasks := []task.GoogleTask{{ID: "g1", Updated: edited}}
	notionTasks := []task.NotionTask{{ID: "n1", LastEdited: edited}}

	d := r.GoogleToNotion(context.Background(), googleTasks, notionTasks, m, nil, watermark)
	assert.True(t, d.Empty(), "tie goes to the Notion side")
}

func TestConcurrentBatchCollectsAllResults(t *testing.T) {
	g := newFakeGoogle()
	n := newFakeNotion()
	r := testReconciler(g, n)
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)

	var notionTasks []task.NotionTask
	for i := 0; i < 50; i++ {
		notionTasks = append(notionTasks, task.NotionTask{
			ID:         fmt.Sprintf("n%d", i),
			LastEdited: watermark.Add(time.Minute),
		})
	}

	d := r.NotionToGoogle(context.Background(), notionTasks, nil, mapping.Mapping{}, watermark)
	require.Len(t, d.Created, 50)
	got := make([]string, 0, 50)
	for _, e := range d.Created {
		got = append(got, e.NotionID)
	}
	sort.Strings(got)
	assert.Equal(t, "n0", got[0])
}
