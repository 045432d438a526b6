package sync

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/task"
	"github.com/taskbridge/taskbridge/internal/user"
	"github.com/taskbridge/taskbridge/pkg/cerr"
)

type fakeGoogleAPI struct {
	*fakeGoogle
	tasks   []task.GoogleTask
	listErr error
}

func (f *fakeGoogleAPI) ListChangedSince(_ context.Context, _ string, _ time.Time) ([]task.GoogleTask, error) {
	return f.tasks, f.listErr
}

type fakeNotionAPI struct {
	*fakeNotion
	tasks     []task.NotionTask
	schemaErr error
}

func (f *fakeNotionAPI) EnsureSchema(_ context.Context, _ string) error {
	return f.schemaErr
}

func (f *fakeNotionAPI) QueryTasks(_ context.Context, _ string) ([]task.NotionTask, error) {
	return f.tasks, nil
}

type fakeUserRepo struct {
	records map[string]*user.SyncRecord
	saves   int
}

func newFakeUserRepo(records ...*user.SyncRecord) *fakeUserRepo {
	r := &fakeUserRepo{records: map[string]*user.SyncRecord{}}
	for _, u := range records {
		r.records[u.Email] = u
	}
	return r
}

func (r *fakeUserRepo) Create(_ context.Context, u *user.SyncRecord) error {
	r.records[u.Email] = u
	return nil
}

func (r *fakeUserRepo) Get(_ context.Context, email string) (*user.SyncRecord, error) {
	u, ok := r.records[email]
	if !ok {
		return nil, cerr.NewError(cerr.NotFound, "user not found", nil)
	}
	copied := *u
	return &copied, nil
}

func (r *fakeUserRepo) List(_ context.Context) ([]*user.SyncRecord, error) {
	out := make([]*user.SyncRecord, 0, len(r.records))
	for _, u := range r.records {
		out = append(out, u)
	}
	return out, nil
}

func (r *fakeUserRepo) SaveMapping(_ context.Context, email string, m mapping.Mapping) error {
	r.records[email].Mapping = m
	r.saves++
	return nil
}

func (r *fakeUserRepo) SaveWatermark(_ context.Context, email string, t time.Time) error {
	r.records[email].LastSynced = &t
	return nil
}

func (r *fakeUserRepo) SaveSyncError(_ context.Context, email string, e *user.SyncError) error {
	r.records[email].SyncError = e
	return nil
}

func (r *fakeUserRepo) MarkNotified(_ context.Context, email string) error {
	r.records[email].SyncError.SentEmail = true
	return nil
}

func testEngine(repo *fakeUserRepo, g *fakeGoogleAPI, n *fakeNotionAPI) *Engine {
	e := NewEngine(
		repo,
		func(_ context.Context, _ string) (GoogleAPI, error) { return g, nil },
		func(_ string) NotionAPI { return n },
		7,
	)
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

func syncedRecord(watermark time.Time, m mapping.Mapping) *user.SyncRecord {
	return &user.SyncRecord{
		Email:      "a@example.com",
		TasklistID: "list-1",
		DatabaseID: "db-1",
		Mapping:    m,
		LastSynced: &watermark,
	}
}

func TestSyncUserFullCycle(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(syncedRecord(watermark, mapping.Mapping{
		{GoogleID: "g1", NotionID: "n1"},
	}))
	g := &fakeGoogleAPI{fakeGoogle: newFakeGoogle(), tasks: []task.GoogleTask{
		{ID: "g2", Title: "from google", Updated: watermark.Add(time.Minute)},
	}}
	n := &fakeNotionAPI{fakeNotion: newFakeNotion(), tasks: []task.NotionTask{
		{ID: "n1", Title: "kept", LastEdited: watermark.Add(-time.Hour)},
		{ID: "n2", Title: "from notion", LastEdited: watermark.Add(time.Minute)},
	}}

	stats, err := testEngine(repo, g, n).SyncUser(context.Background(), "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.GoogleCreated, "n2 created in google")
	assert.Equal(t, 1, stats.NotionCreated, "g2 created in notion")
	assert.Zero(t, stats.TaskErrors)

	rec := repo.records["a@example.com"]
	require.NotNil(t, rec.LastSynced)
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), *rec.LastSynced)
	assert.Len(t, rec.Mapping, 3)
}

func TestSyncUserDeletionNotReprocessedBySecondPass(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(syncedRecord(watermark, mapping.Mapping{
		{GoogleID: "g1", NotionID: "n1"},
	}))
	// g1 shows up in the Google fetch because pass 1 will touch it, but its
	// page is gone from Notion.
	g := &fakeGoogleAPI{fakeGoogle: newFakeGoogle(), tasks: []task.GoogleTask{
		{ID: "g1", Title: "orphaned", Updated: watermark.Add(time.Minute)},
	}}
	n := &fakeNotionAPI{fakeNotion: newFakeNotion()}

	stats, err := testEngine(repo, g, n).SyncUser(context.Background(), "a@example.com")
	require.NoError(t, err)

	assert.Equal(t, 1, stats.GoogleCompleted)
	assert.Zero(t, stats.NotionCreated, "completed pair must not resurrect in notion")
	assert.Empty(t, repo.records["a@example.com"].Mapping)
}

// statefulGoogleAPI mimics the server side: writes bump the task's updated
// stamp, and ListChangedSince only returns tasks changed since the cutoff.
type statefulGoogleAPI struct {
	*fakeGoogle
	now   func() time.Time
	tasks map[string]*task.GoogleTask
}

func (f *statefulGoogleAPI) Complete(ctx context.Context, listID, googleID string) error {
	if err := f.fakeGoogle.Complete(ctx, listID, googleID); err != nil {
		return err
	}
	if g, ok := f.tasks[googleID]; ok {
		g.Status = task.StatusDone
		g.Updated = f.now()
	}
	return nil
}

func (f *statefulGoogleAPI) ListChangedSince(_ context.Context, _ string, since time.Time) ([]task.GoogleTask, error) {
	var out []task.GoogleTask
	for _, g := range f.tasks {
		if !g.Updated.Before(since) {
			out = append(out, *g)
		}
	}
	return out, nil
}

func TestSyncUserDoesNotRefetchOwnWrites(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(syncedRecord(watermark, mapping.Mapping{
		{GoogleID: "g1", NotionID: "n1"},
	}))

	clock := watermark
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	g := &statefulGoogleAPI{fakeGoogle: newFakeGoogle(), now: now, tasks: map[string]*task.GoogleTask{
		"g1": {ID: "g1", Title: "pay rent", Status: task.StatusOpen, Updated: watermark.Add(-time.Hour)},
	}}
	// The page mapped to g1 is gone from Notion.
	n := &fakeNotionAPI{fakeNotion: newFakeNotion()}

	e := NewEngine(
		repo,
		func(_ context.Context, _ string) (GoogleAPI, error) { return g, nil },
		func(_ string) NotionAPI { return n },
		7,
	)
	e.now = now

	stats, err := e.SyncUser(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.GoogleCompleted)

	rec := repo.records["a@example.com"]
	require.NotNil(t, rec.LastSynced)
	assert.True(t, rec.LastSynced.After(g.tasks["g1"].Updated),
		"watermark must postdate the cycle's own completion patch")

	// Next cycle: the completion the first cycle patched into Google must
	// not come back as a foreign change and resurrect the archived page.
	clock = clock.Add(10 * time.Minute)
	stats2, err := e.SyncUser(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Zero(t, stats2.NotionCreated, "completed task must not be re-created in notion")
	assert.Empty(t, n.created)
	assert.Empty(t, repo.records["a@example.com"].Mapping)
}

func TestSyncUserSchemaFailureAbortsWithoutMutation(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(syncedRecord(watermark, mapping.Mapping{}))
	g := &fakeGoogleAPI{fakeGoogle: newFakeGoogle()}
	n := &fakeNotionAPI{
		fakeNotion: newFakeNotion(),
		schemaErr:  cerr.NewError(cerr.FailedPrecondition, "database is missing a status property", nil),
	}

	_, err := testEngine(repo, g, n).SyncUser(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
	assert.Equal(t, watermark, *repo.records["a@example.com"].LastSynced, "watermark must not advance")
	assert.Zero(t, repo.saves)
}

func TestSyncUserFetchFailureAborts(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(syncedRecord(watermark, mapping.Mapping{}))
	g := &fakeGoogleAPI{
		fakeGoogle: newFakeGoogle(),
		listErr:    cerr.NewError(cerr.Unavailable, "google tasks fetch failed", nil),
	}
	n := &fakeNotionAPI{fakeNotion: newFakeNotion()}

	_, err := testEngine(repo, g, n).SyncUser(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.Equal(t, watermark, *repo.records["a@example.com"].LastSynced)
}

func TestSyncUserRequiresWatermark(t *testing.T) {
	repo := newFakeUserRepo(&user.SyncRecord{Email: "a@example.com"})
	g := &fakeGoogleAPI{fakeGoogle: newFakeGoogle()}
	n := &fakeNotionAPI{fakeNotion: newFakeNotion()}

	_, err := testEngine(repo, g, n).SyncUser(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.True(t, cerr.IsCode(err, cerr.FailedPrecondition))
}

func TestSyncUserPrunesExpiredPairs(t *testing.T) {
	watermark := time.Date(2024, 5, 1, 11, 0, 0, 0, time.UTC)
	old := time.Date(2024, 4, 20, 0, 0, 0, 0, time.UTC)
	repo := newFakeUserRepo(syncedRecord(watermark, mapping.Mapping{
		{GoogleID: "g1", NotionID: "n1", CompletedAt: &old},
		{GoogleID: "g2", NotionID: "n2"},
	}))
	g := &fakeGoogleAPI{fakeGoogle: newFakeGoogle()}
	n := &fakeNotionAPI{fakeNotion: newFakeNotion(), tasks: []task.NotionTask{
		{ID: "n1", LastEdited: watermark.Add(-time.Hour)},
		{ID: "n2", LastEdited: watermark.Add(-time.Hour)},
	}}

	_, err := testEngine(repo, g, n).SyncUser(context.Background(), "a@example.com")
	require.NoError(t, err)

	rec := repo.records["a@example.com"]
	require.Len(t, rec.Mapping, 1)
	assert.Equal(t, "g2", rec.Mapping[0].GoogleID)
}
