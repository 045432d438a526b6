package googletasks

import (
	"context"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	tasksapi "google.golang.org/api/tasks/v1"

	"github.com/taskbridge/taskbridge/internal/task"
	"github.com/taskbridge/taskbridge/pkg/cerr"
)

// Client wraps the Google Tasks API for a single user.
type Client struct {
	srv      *tasksapi.Service
	pageSize int64
}

// NewClient builds an authenticated client from the user's refresh token.
// One token refresh is forced up front so a revoked grant surfaces as
// Unavailable before any task is read or written.
func NewClient(ctx context.Context, clientID, clientSecret, refreshToken string, pageSize int64) (*Client, error) {
	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{tasksapi.TasksScope},
	}
	ts := conf.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	if _, err := ts.Token(); err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "google token refresh failed", err)
	}

	srv, err := tasksapi.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to build google tasks service", err)
	}
	return &Client{srv: srv, pageSize: pageSize}, nil
}

// ListChangedSince fetches tasks updated since the given instant, including
// completed, hidden and deleted ones. A single page capped at pageSize; a
// steady-state sync stays well under it.
func (c *Client) ListChangedSince(ctx context.Context, listID string, since time.Time) ([]task.GoogleTask, error) {
	res, err := c.srv.Tasks.List(listID).
		UpdatedMin(since.Format(time.RFC3339)).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(true).
		MaxResults(c.pageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to list google tasks", err)
	}

	tasks := make([]task.GoogleTask, 0, len(res.Items))
	for _, item := range res.Items {
		tasks = append(tasks, FromAPI(item))
	}
	return tasks, nil
}

func (c *Client) Create(ctx context.Context, listID string, n task.NotionTask) (task.GoogleTask, error) {
	created, err := c.srv.Tasks.Insert(listID, ToAPI(n)).Context(ctx).Do()
	if err != nil {
		return task.GoogleTask{}, cerr.NewError(cerr.Unavailable, "failed to create google task", err)
	}
	return FromAPI(created), nil
}

// Update patches the mirrored fields. A cleared due date must be nulled
// explicitly, otherwise the API keeps the old value.
func (c *Client) Update(ctx context.Context, listID, googleID string, n task.NotionTask) error {
	patch := ToAPI(n)
	if n.Due.IsZero() {
		patch.NullFields = append(patch.NullFields, "Due")
	}
	if _, err := c.srv.Tasks.Patch(listID, googleID, patch).Context(ctx).Do(); err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to update google task", err)
	}
	return nil
}

// Complete marks the task completed. Tasks are never removed from the list;
// completion is the deletion analogue on the Google side.
func (c *Client) Complete(ctx context.Context, listID, googleID string) error {
	patch := &tasksapi.Task{Status: task.StatusDone.GoogleValue()}
	if _, err := c.srv.Tasks.Patch(listID, googleID, patch).Context(ctx).Do(); err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to complete google task", err)
	}
	return nil
}
