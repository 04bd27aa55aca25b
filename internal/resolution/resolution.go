package resolution

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sunthar/taskrelay/internal/event"
	"github.com/sunthar/taskrelay/internal/notion"
	"github.com/sunthar/taskrelay/internal/slack"
	"github.com/sunthar/taskrelay/pkg/cerr"
)

// TaskStore is the slice of the task database a resolution touches.
type TaskStore interface {
	UpdateStatus(ctx context.Context, taskID, status string) error
	Archive(ctx context.Context, taskID string) error
}

// Responder posts outcome messages back to the channel via the
// interaction's one-shot response URL.
type Responder interface {
	Respond(ctx context.Context, responseURL, text string, replace bool) error
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, source string, data any) error
}

// Resolver applies a reviewer's decision to a proposed task and replaces
// the proposal message with the outcome. Concurrent decisions on the
// same proposal race without coordination: the last side effect wins,
// and each press still gets its own outcome message.
type Resolver struct {
	store     TaskStore
	responder Responder
	publisher Publisher
}

func New(store TaskStore, responder Responder, publisher Publisher) *Resolver {
	return &Resolver{
		store:     store,
		responder: responder,
		publisher: publisher,
	}
}

// Resolve handles one decoded interaction. The caller has already
// acknowledged the HTTP callback; all outcomes here travel through the
// response URL.
func (r *Resolver) Resolve(ctx context.Context, it *slack.Interaction) error {
	taskID, ok := notion.ExtractTaskID(it.TaskURL)
	if !ok {
		r.notifyFailure(ctx, it, fmt.Errorf("button value %q carries no task ID", it.TaskURL))
		return cerr.NewError(cerr.InvalidArgument, "interaction value carries no task ID", nil)
	}

	switch it.ActionID {
	case slack.ActionApprove:
		return r.approve(ctx, it, taskID)
	case slack.ActionSkip:
		return r.skip(ctx, it, taskID)
	case slack.ActionFeedback:
		return r.feedback(ctx, it, taskID)
	default:
		r.notifyFailure(ctx, it, fmt.Errorf("unknown action %q", it.ActionID))
		return cerr.NewError(cerr.InvalidArgument, "unknown action: "+it.ActionID, nil)
	}
}

func (r *Resolver) approve(ctx context.Context, it *slack.Interaction, taskID string) error {
	if err := r.store.UpdateStatus(ctx, taskID, notion.StatusDone); err != nil {
		r.notifyFailure(ctx, it, err)
		return err
	}

	text := fmt.Sprintf("✅ Approved by %s — status set to %q. <%s|View in Notion>",
		it.Actor, notion.StatusDone, it.TaskURL)
	if err := r.responder.Respond(ctx, it.ResponseURL, text, true); err != nil {
		slog.WarnContext(ctx, "approved but failed to replace proposal message",
			"task_id", taskID, "error", err)
	}
	r.publish(ctx, event.ProposalApprovedData{TaskID: taskID, Actor: it.Actor})
	return nil
}

func (r *Resolver) skip(ctx context.Context, it *slack.Interaction, taskID string) error {
	if err := r.store.Archive(ctx, taskID); err != nil {
		r.notifyFailure(ctx, it, err)
		return err
	}

	text := fmt.Sprintf("🚫 Skipped by %s — the task was archived.", it.Actor)
	if err := r.responder.Respond(ctx, it.ResponseURL, text, true); err != nil {
		slog.WarnContext(ctx, "skipped but failed to replace proposal message",
			"task_id", taskID, "error", err)
	}
	r.publish(ctx, event.ProposalSkippedData{TaskID: taskID, Actor: it.Actor})
	return nil
}

// feedback acknowledges the press without touching the task. A richer
// revision loop would start here; for now the proposal stays open so
// another reviewer can still decide it.
func (r *Resolver) feedback(ctx context.Context, it *slack.Interaction, taskID string) error {
	text := fmt.Sprintf("💬 %s asked for changes. The proposal stays open for a decision.", it.Actor)
	if err := r.responder.Respond(ctx, it.ResponseURL, text, false); err != nil {
		slog.WarnContext(ctx, "failed to acknowledge feedback",
			"task_id", taskID, "error", err)
	}
	r.publish(ctx, event.ProposalFeedbackData{TaskID: taskID, Actor: it.Actor})
	return nil
}

func (r *Resolver) notifyFailure(ctx context.Context, it *slack.Interaction, cause error) {
	if it.ResponseURL == "" {
		return
	}
	text := fmt.Sprintf("Something went wrong handling that press: %v", cause)
	if err := r.responder.Respond(ctx, it.ResponseURL, text, false); err != nil {
		slog.WarnContext(ctx, "failed to deliver failure notice", "error", err)
	}
}

func (r *Resolver) publish(ctx context.Context, data any) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, "resolution", data); err != nil {
		slog.WarnContext(ctx, "failed to publish event", "error", err)
	}
}
