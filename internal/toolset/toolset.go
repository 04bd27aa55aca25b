package toolset

import (
	"context"
	"encoding/json"

	"github.com/sunthar/taskrelay/internal/notion"
	"github.com/sunthar/taskrelay/internal/slack"
	"github.com/sunthar/taskrelay/internal/tool"
	"github.com/sunthar/taskrelay/pkg/cerr"
)

// TaskStore is the task database surface the tools operate on.
type TaskStore interface {
	CreateTask(ctx context.Context, req *notion.CreateTaskRequest) (*notion.Task, error)
	UpdateStatus(ctx context.Context, taskID, status string) error
	Archive(ctx context.Context, taskID string) error
	SearchDatabases(ctx context.Context, query string) ([]notion.SearchHit, error)
}

// Notifier posts proposal messages to the review channel.
type Notifier interface {
	PostProposal(ctx context.Context, p *slack.Proposal) error
}

// Toolset owns the tool handlers that bridge the agent-facing registry
// to the task store and the review channel.
type Toolset struct {
	store      TaskStore
	notifier   Notifier
	databaseID string
}

func New(store TaskStore, notifier Notifier, databaseID string) *Toolset {
	return &Toolset{
		store:      store,
		notifier:   notifier,
		databaseID: databaseID,
	}
}

// Register installs the five task tools on the registry.
func (ts *Toolset) Register(registry *tool.Registry) error {
	descriptors := []*tool.Descriptor{
		{
			Name:        "search_notion",
			Description: "Search Notion for databases and pages matching a query.",
			Schema: tool.Schema{
				"query": {Type: tool.TypeString, Description: "Search query text.", Required: true},
			},
			Handler: ts.searchNotion,
		},
		{
			Name:        "create_proposed_task",
			Description: "Create a task in the tracking database. New tasks start in review status until a human approves them.",
			Schema: tool.Schema{
				"title":       {Type: tool.TypeString, Description: "Short task title.", Required: true},
				"description": {Type: tool.TypeString, Description: "Detailed task description."},
				"project_id":  {Type: tool.TypeString, Description: "Optional related project page ID."},
				"status":      {Type: tool.TypeString, Description: "Initial status.", Default: notion.StatusToReview},
			},
			Handler: ts.createProposedTask,
		},
		{
			Name:        "update_task_status",
			Description: "Set the status of an existing task, identified by its page URL.",
			Schema: tool.Schema{
				"task_url": {Type: tool.TypeString, Description: "URL of the task page.", Required: true},
				"status":   {Type: tool.TypeString, Description: "New status value.", Required: true},
			},
			Handler: ts.updateTaskStatus,
		},
		{
			Name:        "delete_task",
			Description: "Archive a task, identified by its page URL.",
			Schema: tool.Schema{
				"task_url": {Type: tool.TypeString, Description: "URL of the task page.", Required: true},
			},
			Handler: ts.deleteTask,
		},
		{
			Name:        "send_slack_proposal",
			Description: "Post an interactive proposal message for a task to the review channel.",
			Schema: tool.Schema{
				"task_name": {Type: tool.TypeString, Description: "Name of the proposed task.", Required: true},
				"task_url":  {Type: tool.TypeString, Description: "URL of the task page.", Required: true},
				"reasoning": {Type: tool.TypeString, Description: "Why this task was proposed.", Required: true},
			},
			Handler: ts.sendSlackProposal,
		},
	}

	for _, d := range descriptors {
		if err := registry.Register(d); err != nil {
			return err
		}
	}
	return nil
}

func (ts *Toolset) searchNotion(ctx context.Context, args tool.Args) (*tool.Result, error) {
	hits, err := ts.store.SearchDatabases(ctx, args.String("query"))
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return tool.TextResult("No results found."), nil
	}
	data, err := json.MarshalIndent(hits, "", "  ")
	if err != nil {
		return nil, cerr.NewError(cerr.Internal, "failed to encode search results", err)
	}
	return tool.TextResult("%s", data), nil
}

func (ts *Toolset) createProposedTask(ctx context.Context, args tool.Args) (*tool.Result, error) {
	if ts.databaseID == "" {
		return nil, cerr.NewError(cerr.FailedPrecondition, "no task database configured", nil)
	}
	task, err := ts.store.CreateTask(ctx, &notion.CreateTaskRequest{
		DatabaseID:  ts.databaseID,
		Title:       args.String("title"),
		Description: args.String("description"),
		ProjectID:   args.String("project_id"),
		Status:      args.String("status"),
	})
	if err != nil {
		return nil, err
	}
	return tool.TextResult("Created task %q with status %q: %s", task.Title, args.String("status"), task.URL), nil
}

func (ts *Toolset) updateTaskStatus(ctx context.Context, args tool.Args) (*tool.Result, error) {
	taskID, ok := notion.ExtractTaskID(args.String("task_url"))
	if !ok {
		return nil, cerr.NewError(cerr.InvalidArgument, "task_url does not contain a task ID", nil)
	}
	status := args.String("status")
	if err := ts.store.UpdateStatus(ctx, taskID, status); err != nil {
		return nil, err
	}
	return tool.TextResult("Updated task %s to status %q.", taskID, status), nil
}

func (ts *Toolset) deleteTask(ctx context.Context, args tool.Args) (*tool.Result, error) {
	taskID, ok := notion.ExtractTaskID(args.String("task_url"))
	if !ok {
		return nil, cerr.NewError(cerr.InvalidArgument, "task_url does not contain a task ID", nil)
	}
	if err := ts.store.Archive(ctx, taskID); err != nil {
		return nil, err
	}
	return tool.TextResult("Archived task %s.", taskID), nil
}

func (ts *Toolset) sendSlackProposal(ctx context.Context, args tool.Args) (*tool.Result, error) {
	p := &slack.Proposal{
		TaskName:  args.String("task_name"),
		TaskURL:   args.String("task_url"),
		Reasoning: args.String("reasoning"),
	}
	if err := ts.notifier.PostProposal(ctx, p); err != nil {
		return nil, err
	}
	return tool.TextResult("Proposal for %q sent to the review channel.", p.TaskName), nil
}
