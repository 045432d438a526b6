package notion

import (
	"context"
	"time"

	"github.com/jomei/notionapi"

	"github.com/taskbridge/taskbridge/internal/task"
	"github.com/taskbridge/taskbridge/pkg/cerr"
)

// Client wraps the Notion API for a single user's task database.
type Client struct {
	api      *notionapi.Client
	pageSize int
	schema   Schema
}

func NewClient(accessToken string, pageSize int) *Client {
	return &Client{
		api:      notionapi.NewClient(notionapi.Token(accessToken)),
		pageSize: pageSize,
	}
}

// EnsureSchema retrieves the database, resolves which properties hold the
// title, due date and status, and verifies the status options. It must run
// before any query or write; the resolved schema is cached on the client.
func (c *Client) EnsureSchema(ctx context.Context, databaseID string) error {
	db, err := c.api.Database.Get(ctx, notionapi.DatabaseID(databaseID))
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to retrieve notion database", err)
	}
	schema, err := ResolveSchema(db.Properties)
	if err != nil {
		return err
	}
	c.schema = schema
	return nil
}

// QueryTasks returns the full listing of non-archived pages, newest edits
// first. One page capped at pageSize, matching the fetch cap on the Google
// side.
func (c *Client) QueryTasks(ctx context.Context, databaseID string) ([]task.NotionTask, error) {
	res, err := c.api.Database.Query(ctx, notionapi.DatabaseID(databaseID), &notionapi.DatabaseQueryRequest{
		PageSize: c.pageSize,
		Sorts: []notionapi.SortObject{
			{Timestamp: notionapi.TimestampLastEdited, Direction: notionapi.SortOrderDESC},
		},
	})
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "failed to query notion database", err)
	}

	tasks := make([]task.NotionTask, 0, len(res.Results))
	for i := range res.Results {
		tasks = append(tasks, c.fromPage(&res.Results[i]))
	}
	return tasks, nil
}

func (c *Client) Create(ctx context.Context, databaseID string, g task.GoogleTask) (task.NotionTask, error) {
	page, err := c.api.Page.Create(ctx, &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(databaseID),
		},
		Properties: c.toProperties(g),
	})
	if err != nil {
		return task.NotionTask{}, cerr.NewError(cerr.Unavailable, "failed to create notion page", err)
	}
	return c.fromPage(page), nil
}

func (c *Client) Update(ctx context.Context, pageID string, g task.GoogleTask) error {
	_, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: c.toProperties(g),
	})
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to update notion page", err)
	}
	return nil
}

// Archive is the Notion-side deletion. The page keeps existing in the
// workspace trash and disappears from every database query.
func (c *Client) Archive(ctx context.Context, pageID string) error {
	_, err := c.api.Page.Update(ctx, notionapi.PageID(pageID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{},
		Archived:   true,
	})
	if err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to archive notion page", err)
	}
	return nil
}

func (c *Client) fromPage(p *notionapi.Page) task.NotionTask {
	out := task.NotionTask{
		ID:              string(p.ID),
		LastEdited:      p.LastEditedTime,
		LastEditedByBot: p.LastEditedBy.Type == "bot",
	}
	if tp, ok := p.Properties[c.schema.Title].(*notionapi.TitleProperty); ok {
		for _, rt := range tp.Title {
			out.Title += rt.PlainText
		}
	}
	if sp, ok := p.Properties[c.schema.Status].(*notionapi.StatusProperty); ok {
		out.Status = task.StatusFromNotion(sp.Status.Name)
	}
	if dp, ok := p.Properties[c.schema.Due].(*notionapi.DateProperty); ok {
		if dp.Date != nil && dp.Date.Start != nil {
			out.Due = task.DateOnly(time.Time(*dp.Date.Start))
		}
	}
	return out
}

// toProperties builds the write payload. The due date property is always
// present: a nil date clears it, which is how a due date removed in Google
// propagates.
func (c *Client) toProperties(g task.GoogleTask) notionapi.Properties {
	props := notionapi.Properties{
		c.schema.Title: notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{Text: &notionapi.Text{Content: g.Title}},
			},
		},
		c.schema.Status: notionapi.StatusProperty{
			Status: notionapi.Status{Name: g.Status.NotionValue()},
		},
	}
	due := notionapi.DateProperty{}
	if !g.Due.IsZero() {
		start := notionapi.Date(task.DateOnly(g.Due))
		due.Date = &notionapi.DateObject{Start: &start}
	}
	props[c.schema.Due] = due
	return props
}
