package notion

import (
	"context"
	"fmt"

	"github.com/jomei/notionapi"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// Task statuses used by the proposal workflow. The status column is an open
// provider-defined enum; these are only the values this system writes.
const (
	StatusToReview   = "To Review"
	StatusNotStarted = "Not Started"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
)

// Task is the subset of a Notion page this system cares about.
type Task struct {
	ID    string
	URL   string
	Title string
}

// SearchHit is one result of a database search.
type SearchHit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Type string `json:"type"`
}

// CreateTaskRequest carries the fields for a new task page.
type CreateTaskRequest struct {
	DatabaseID  string
	Title       string
	Description string
	ProjectID   string
	Status      string
}

// Client wraps the Notion API for the task database operations this
// system performs: create, status update, archive, and database search.
type Client struct {
	api *notionapi.Client
}

func NewClient(apiKey string) *Client {
	return &Client{
		api: notionapi.NewClient(notionapi.Token(apiKey)),
	}
}

func (c *Client) CreateTask(ctx context.Context, req *CreateTaskRequest) (*Task, error) {
	properties := notionapi.Properties{
		"Name": notionapi.TitleProperty{
			Title: []notionapi.RichText{
				{Text: &notionapi.Text{Content: req.Title}},
			},
		},
		"Status": notionapi.SelectProperty{
			Select: notionapi.Option{Name: req.Status},
		},
	}
	if req.ProjectID != "" {
		properties["Project"] = notionapi.RelationProperty{
			Relation: []notionapi.Relation{
				{ID: notionapi.PageID(req.ProjectID)},
			},
		}
	}

	createReq := &notionapi.PageCreateRequest{
		Parent: notionapi.Parent{
			Type:       notionapi.ParentTypeDatabaseID,
			DatabaseID: notionapi.DatabaseID(req.DatabaseID),
		},
		Properties: properties,
	}
	if req.Description != "" {
		createReq.Children = []notionapi.Block{
			&notionapi.ParagraphBlock{
				BasicBlock: notionapi.BasicBlock{
					Object: notionapi.ObjectTypeBlock,
					Type:   notionapi.BlockTypeParagraph,
				},
				Paragraph: notionapi.Paragraph{
					RichText: []notionapi.RichText{
						{Text: &notionapi.Text{Content: req.Description}},
					},
				},
			},
		}
	}

	page, err := c.api.Page.Create(ctx, createReq)
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, fmt.Sprintf("failed to create task %q", req.Title), err)
	}
	return &Task{
		ID:    string(page.ID),
		URL:   page.URL,
		Title: req.Title,
	}, nil
}

// UpdateStatus sets the Status select of a task page. Single property
// update; nothing else on the page is touched.
func (c *Client) UpdateStatus(ctx context.Context, taskID, status string) error {
	_, err := c.api.Page.Update(ctx, notionapi.PageID(taskID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{
			"Status": notionapi.SelectProperty{
				Select: notionapi.Option{Name: status},
			},
		},
	})
	if err != nil {
		return cerr.NewError(cerr.Unavailable, fmt.Sprintf("failed to update status of task %s", taskID), err)
	}
	return nil
}

// Archive soft-deletes a task page. Notion keeps archived pages
// recoverable; nothing is ever hard-deleted here.
func (c *Client) Archive(ctx context.Context, taskID string) error {
	_, err := c.api.Page.Update(ctx, notionapi.PageID(taskID), &notionapi.PageUpdateRequest{
		Properties: notionapi.Properties{},
		Archived:   true,
	})
	if err != nil {
		return cerr.NewError(cerr.Unavailable, fmt.Sprintf("failed to archive task %s", taskID), err)
	}
	return nil
}

// SearchDatabases looks up databases matching the query, capped at five
// hits like the agent-facing search tool expects.
func (c *Client) SearchDatabases(ctx context.Context, query string) ([]SearchHit, error) {
	resp, err := c.api.Search.Do(ctx, &notionapi.SearchRequest{
		Query: query,
		Filter: notionapi.SearchFilter{
			Value:    "database",
			Property: "object",
		},
		PageSize: 5,
	})
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, fmt.Sprintf("failed to search for %q", query), err)
	}

	hits := make([]SearchHit, 0, len(resp.Results))
	for _, obj := range resp.Results {
		switch v := obj.(type) {
		case *notionapi.Database:
			hits = append(hits, SearchHit{
				ID:   string(v.ID),
				Name: richTextPlain(v.Title),
				URL:  v.URL,
				Type: string(v.GetObject()),
			})
		case *notionapi.Page:
			hits = append(hits, SearchHit{
				ID:   string(v.ID),
				URL:  v.URL,
				Type: string(v.GetObject()),
			})
		}
	}
	return hits, nil
}

func richTextPlain(rts []notionapi.RichText) string {
	for _, rt := range rts {
		if rt.PlainText != "" {
			return rt.PlainText
		}
		if rt.Text != nil && rt.Text.Content != "" {
			return rt.Text.Content
		}
	}
	return "Untitled"
}
