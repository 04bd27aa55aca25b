package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sunthar/taskrelay/internal/archive"
	"github.com/sunthar/taskrelay/internal/event"
	"github.com/sunthar/taskrelay/internal/normalizer"
	"github.com/sunthar/taskrelay/internal/notion"
	"github.com/sunthar/taskrelay/internal/slack"
	"github.com/sunthar/taskrelay/pkg/cerr"
)

// Normalizer distills a raw transcript into structured action items.
type Normalizer interface {
	Normalize(ctx context.Context, transcript string) (*normalizer.Normalized, error)
}

// TaskCreator creates task pages in the tracking database.
type TaskCreator interface {
	CreateTask(ctx context.Context, req *notion.CreateTaskRequest) (*notion.Task, error)
}

// Notifier posts proposal messages to the review channel.
type Notifier interface {
	PostProposal(ctx context.Context, p *slack.Proposal) error
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, source string, data any) error
}

// Recorder persists run records.
type Recorder interface {
	Save(ctx context.Context, run *archive.Run) error
}

// Workflow drives a transcript through normalization, task creation,
// and proposal delivery.
type Workflow struct {
	normalizer Normalizer
	store      TaskCreator
	notifier   Notifier
	publisher  Publisher
	recorder   Recorder
	databaseID string
}

func New(n Normalizer, store TaskCreator, notifier Notifier, publisher Publisher, recorder Recorder, databaseID string) *Workflow {
	return &Workflow{
		normalizer: n,
		store:      store,
		notifier:   notifier,
		publisher:  publisher,
		recorder:   recorder,
		databaseID: databaseID,
	}
}

// ProcessTranscript runs the whole pipeline for one transcript. A
// normalization failure aborts the run; a failure on one action item is
// recorded and the remaining items still go out. There is no rollback:
// tasks created before a later failure stay created.
func (w *Workflow) ProcessTranscript(ctx context.Context, transcript string) (*archive.Run, error) {
	run := &archive.Run{
		ID:        archive.NewRunID(),
		StartedAt: time.Now(),
	}

	normalized, err := w.normalizer.Normalize(ctx, transcript)
	if err != nil {
		w.publish(ctx, event.TranscriptRejectedData{Reason: err.Error()})
		return nil, err
	}
	run.MeetingTitle = normalized.MeetingTitle
	run.Summary = normalized.Summary

	w.publish(ctx, event.TranscriptReceivedData{
		MeetingTitle: normalized.MeetingTitle,
		ItemCount:    len(normalized.CriticalActionItems),
	})
	slog.InfoContext(ctx, "processing transcript",
		"meeting", normalized.MeetingTitle, "items", len(normalized.CriticalActionItems))

	for _, item := range normalized.CriticalActionItems {
		outcome := w.proposeItem(ctx, normalized.MeetingTitle, item)
		if outcome.Error != "" {
			run.Failed++
		}
		run.Items = append(run.Items, outcome)
	}

	run.FinishedAt = time.Now()
	if err := w.recorder.Save(ctx, run); err != nil {
		slog.ErrorContext(ctx, "failed to archive run", "run_id", run.ID, "error", err)
	}
	return run, nil
}

// proposeItem creates the task and sends its proposal. Each item is
// isolated: its failure never touches the others.
func (w *Workflow) proposeItem(ctx context.Context, meetingTitle string, item normalizer.ActionItem) archive.ItemOutcome {
	outcome := archive.ItemOutcome{Title: item.Title}

	status := item.SuggestedStatus
	if status == "" {
		status = notion.StatusToReview
	}
	task, err := w.store.CreateTask(ctx, &notion.CreateTaskRequest{
		DatabaseID:  w.databaseID,
		Title:       item.Title,
		Description: item.Description,
		Status:      status,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to create task", "title", item.Title, "error", err)
		outcome.Error = err.Error()
		return outcome
	}
	outcome.TaskID = task.ID
	outcome.TaskURL = task.URL

	reasoning := item.Description
	if reasoning == "" {
		reasoning = fmt.Sprintf("Raised as a critical follow-up in %q.", meetingTitle)
	}
	if err := w.notifier.PostProposal(ctx, &slack.Proposal{
		TaskName:  item.Title,
		TaskURL:   task.URL,
		Reasoning: reasoning,
	}); err != nil {
		// The task exists either way; the reviewer just never saw the
		// proposal message.
		slog.WarnContext(ctx, "failed to post proposal", "title", item.Title, "error", err)
		outcome.Error = err.Error()
		return outcome
	}

	w.publish(ctx, event.TaskProposedData{
		TaskID:  task.ID,
		TaskURL: task.URL,
		Title:   task.Title,
	})
	return outcome
}

func (w *Workflow) publish(ctx context.Context, data any) {
	if w.publisher == nil {
		return
	}
	if err := w.publisher.Publish(ctx, "workflow", data); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "error", err)
	}
}

// Validate reports whether the workflow has everything it needs to run.
func (w *Workflow) Validate() error {
	if w.databaseID == "" {
		return cerr.NewError(cerr.FailedPrecondition, "no task database configured", nil)
	}
	return nil
}
