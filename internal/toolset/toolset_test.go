package toolset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunthar/taskrelay/internal/notion"
	"github.com/sunthar/taskrelay/internal/slack"
	"github.com/sunthar/taskrelay/internal/tool"
	"github.com/sunthar/taskrelay/pkg/cerr"
)

type fakeStore struct {
	created  []*notion.CreateTaskRequest
	statuses map[string]string
	archived []string
	hits     []notion.SearchHit
	fail     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{statuses: map[string]string{}}
}

func (f *fakeStore) CreateTask(ctx context.Context, req *notion.CreateTaskRequest) (*notion.Task, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.created = append(f.created, req)
	id := "AbCdEf1234567890AbCdEf1234567890"
	return &notion.Task{ID: id, URL: notion.TaskURL(id), Title: req.Title}, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, taskID, status string) error {
	if f.fail != nil {
		return f.fail
	}
	f.statuses[taskID] = status
	return nil
}

func (f *fakeStore) Archive(ctx context.Context, taskID string) error {
	if f.fail != nil {
		return f.fail
	}
	f.archived = append(f.archived, taskID)
	return nil
}

func (f *fakeStore) SearchDatabases(ctx context.Context, query string) ([]notion.SearchHit, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.hits, nil
}

type fakeNotifier struct {
	proposals []*slack.Proposal
	fail      error
}

func (f *fakeNotifier) PostProposal(ctx context.Context, p *slack.Proposal) error {
	if f.fail != nil {
		return f.fail
	}
	f.proposals = append(f.proposals, p)
	return nil
}

func setup(t *testing.T) (*tool.Registry, *fakeStore, *fakeNotifier) {
	t.Helper()
	store := newFakeStore()
	notifier := &fakeNotifier{}
	registry := tool.NewRegistry()
	require.NoError(t, New(store, notifier, "db-123").Register(registry))
	return registry, store, notifier
}

func TestRegisterInstallsAllTools(t *testing.T) {
	registry, _, _ := setup(t)

	var names []string
	for _, d := range registry.List() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{
		"create_proposed_task",
		"delete_task",
		"search_notion",
		"send_slack_proposal",
		"update_task_status",
	}, names)
}

func TestCreateProposedTaskDefaultsToReviewStatus(t *testing.T) {
	registry, store, _ := setup(t)

	result, err := registry.Invoke(context.Background(), "create_proposed_task", map[string]any{
		"title":       "Buy paint",
		"description": "Two cans of eggshell white.",
	})
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	created := store.created[0]
	assert.Equal(t, "db-123", created.DatabaseID)
	assert.Equal(t, notion.StatusToReview, created.Status)
	assert.Contains(t, result.Content[0].Text, "https://www.notion.so/")
}

func TestCreateProposedTaskExplicitStatus(t *testing.T) {
	registry, store, _ := setup(t)

	_, err := registry.Invoke(context.Background(), "create_proposed_task", map[string]any{
		"title":  "Buy paint",
		"status": notion.StatusInProgress,
	})
	require.NoError(t, err)
	assert.Equal(t, notion.StatusInProgress, store.created[0].Status)
}

func TestUpdateTaskStatus(t *testing.T) {
	registry, store, _ := setup(t)

	_, err := registry.Invoke(context.Background(), "update_task_status", map[string]any{
		"task_url": "https://www.notion.so/workspace/AbCdEf1234567890AbCdEf1234567890",
		"status":   notion.StatusDone,
	})
	require.NoError(t, err)
	assert.Equal(t, notion.StatusDone, store.statuses["AbCdEf1234567890AbCdEf1234567890"])
}

func TestUpdateTaskStatusRejectsBadURL(t *testing.T) {
	registry, _, _ := setup(t)

	_, err := registry.Invoke(context.Background(), "update_task_status", map[string]any{
		"task_url": "not-a-url",
		"status":   notion.StatusDone,
	})
	require.Error(t, err)
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
}

func TestDeleteTask(t *testing.T) {
	registry, store, _ := setup(t)

	_, err := registry.Invoke(context.Background(), "delete_task", map[string]any{
		"task_url": "https://www.notion.so/AbCdEf1234567890AbCdEf1234567890",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"AbCdEf1234567890AbCdEf1234567890"}, store.archived)
}

func TestSearchNotion(t *testing.T) {
	registry, store, _ := setup(t)
	store.hits = []notion.SearchHit{
		{ID: "db-123", Name: "Tasks", URL: "https://www.notion.so/db-123", Type: "database"},
	}

	result, err := registry.Invoke(context.Background(), "search_notion", map[string]any{
		"query": "Tasks",
	})
	require.NoError(t, err)
	assert.Contains(t, result.Content[0].Text, `"name": "Tasks"`)
}

func TestSearchNotionEmpty(t *testing.T) {
	registry, _, _ := setup(t)

	result, err := registry.Invoke(context.Background(), "search_notion", map[string]any{
		"query": "nothing",
	})
	require.NoError(t, err)
	assert.Equal(t, "No results found.", result.Content[0].Text)
}

func TestSendSlackProposal(t *testing.T) {
	registry, _, notifier := setup(t)

	_, err := registry.Invoke(context.Background(), "send_slack_proposal", map[string]any{
		"task_name": "Buy paint",
		"task_url":  "https://www.notion.so/AbCdEf1234567890AbCdEf1234567890",
		"reasoning": "Blocker for the painting weekend.",
	})
	require.NoError(t, err)
	require.Len(t, notifier.proposals, 1)
	assert.Equal(t, "Buy paint", notifier.proposals[0].TaskName)
}

func TestUpstreamFailurePropagates(t *testing.T) {
	registry, store, _ := setup(t)
	store.fail = cerr.NewError(cerr.Unavailable, "notion is down", nil)

	_, err := registry.Invoke(context.Background(), "search_notion", map[string]any{
		"query": "x",
	})
	require.Error(t, err)
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))
}
