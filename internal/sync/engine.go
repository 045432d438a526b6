package sync

import (
	"context"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/taskbridge/taskbridge/internal/mapping"
	"github.com/taskbridge/taskbridge/internal/task"
	"github.com/taskbridge/taskbridge/internal/user"
	"github.com/taskbridge/taskbridge/pkg/cerr"
	"github.com/taskbridge/taskbridge/pkg/clog"
)

// googleFetchSkew widens the Google updatedMin window slightly so a task
// updated in the same millisecond as the watermark is not fetched twice.
const googleFetchSkew = 300 * time.Millisecond

// GoogleAPI is the full Google Tasks surface one cycle needs.
type GoogleAPI interface {
	GoogleWriter
	ListChangedSince(ctx context.Context, listID string, since time.Time) ([]task.GoogleTask, error)
}

// NotionAPI is the full Notion surface one cycle needs. EnsureSchema fails
// with FailedPrecondition when the database lacks the required properties.
type NotionAPI interface {
	NotionWriter
	EnsureSchema(ctx context.Context, databaseID string) error
	QueryTasks(ctx context.Context, databaseID string) ([]task.NotionTask, error)
}

// GoogleFactory builds an authenticated client from a user's refresh token.
// Construction verifies the token refresh, so a revoked grant fails here
// before any task is touched.
type GoogleFactory func(ctx context.Context, refreshToken string) (GoogleAPI, error)

// NotionFactory builds an authenticated client from a user's access token.
type NotionFactory func(accessToken string) NotionAPI

// Stats summarizes one cycle for logging and the admin trigger response.
type Stats struct {
	GoogleCreated   int `json:"google_created"`
	GoogleUpdated   int `json:"google_updated"`
	GoogleCompleted int `json:"google_completed"`
	NotionCreated   int `json:"notion_created"`
	NotionUpdated   int `json:"notion_updated"`
	NotionArchived  int `json:"notion_archived"`
	TaskErrors      int `json:"task_errors"`
}

// Engine runs full sync cycles, one user at a time.
type Engine struct {
	users         user.Repository
	google        GoogleFactory
	notion        NotionFactory
	retentionDays int
	now           func() time.Time
}

func NewEngine(users user.Repository, google GoogleFactory, notion NotionFactory, retentionDays int) *Engine {
	return &Engine{
		users:         users,
		google:        google,
		notion:        notion,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// SyncUser runs one cycle: Notion changes flow to Google first, then Google
// changes flow to Notion, then the mapping is pruned and the watermark
// advances to the end of the cycle. Any failure before the first pass aborts
// with no state change; per-task failures inside a pass are tolerated,
// counted, and logged.
func (e *Engine) SyncUser(ctx context.Context, email string) (Stats, error) {
	var stats Stats

	cycleID := ulid.Make().String()
	clog.AddAttributes(ctx, map[string]any{
		"email": email,
		"cycle": cycleID,
	})

	u, err := e.users.Get(ctx, email)
	if err != nil {
		return stats, err
	}
	if u.LastSynced == nil {
		return stats, cerr.NewError(cerr.FailedPrecondition, "user has not completed onboarding", nil)
	}
	watermark := *u.LastSynced

	google, err := e.google(ctx, u.GoogleRefreshToken)
	if err != nil {
		return stats, err
	}
	notion := e.notion(u.NotionAccessToken)

	if err := notion.EnsureSchema(ctx, u.DatabaseID); err != nil {
		return stats, err
	}

	googleTasks, err := google.ListChangedSince(ctx, u.TasklistID, watermark.Add(googleFetchSkew))
	if err != nil {
		return stats, err
	}
	notionTasks, err := notion.QueryTasks(ctx, u.DatabaseID)
	if err != nil {
		return stats, err
	}

	r := NewReconciler(google, notion, u.TasklistID, u.DatabaseID, e.now)
	m := u.Mapping

	d1 := r.NotionToGoogle(ctx, notionTasks, googleTasks, m, watermark)
	m, err = e.persist(ctx, email, m, d1)
	if err != nil {
		return stats, err
	}
	stats.GoogleCreated = len(d1.Created)
	stats.GoogleUpdated = len(d1.Updated)
	stats.GoogleCompleted = len(d1.Deleted)

	excluded := make(map[string]struct{}, len(d1.Deleted))
	for _, id := range d1.Deleted {
		excluded[id] = struct{}{}
	}

	d2 := r.GoogleToNotion(ctx, googleTasks, notionTasks, m, excluded, watermark)
	m, err = e.persist(ctx, email, m, d2)
	if err != nil {
		return stats, err
	}
	stats.NotionCreated = len(d2.Created)
	stats.NotionUpdated = len(d2.Updated)
	stats.NotionArchived = len(d2.Deleted)

	// The watermark is stamped after both passes: the cycle's own Google
	// writes carry server update stamps older than it, so the next fetch
	// does not hand them back as foreign changes.
	cycleEnd := e.now()
	pruned := mapping.Prune(m, cycleEnd, e.retentionDays)
	if len(pruned) != len(m) {
		if err := e.users.SaveMapping(ctx, email, pruned); err != nil {
			return stats, err
		}
	}
	if err := e.users.SaveWatermark(ctx, email, cycleEnd); err != nil {
		return stats, err
	}

	stats.TaskErrors = len(d1.Errors) + len(d2.Errors)
	for _, taskErr := range append(d1.Errors, d2.Errors...) {
		slog.WarnContext(ctx, "task sync failed", "error", taskErr)
	}
	slog.InfoContext(ctx, "sync cycle finished",
		"google_created", stats.GoogleCreated,
		"google_updated", stats.GoogleUpdated,
		"google_completed", stats.GoogleCompleted,
		"notion_created", stats.NotionCreated,
		"notion_updated", stats.NotionUpdated,
		"notion_archived", stats.NotionArchived,
		"task_errors", stats.TaskErrors,
	)
	return stats, nil
}

// persist applies a delta and saves the mapping when it actually changed.
func (e *Engine) persist(ctx context.Context, email string, m mapping.Mapping, d mapping.Delta) (mapping.Mapping, error) {
	if d.Empty() {
		return m, nil
	}
	merged := mapping.Apply(m, d)
	if err := e.users.SaveMapping(ctx, email, merged); err != nil {
		return m, err
	}
	return merged, nil
}
