package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sunthar/taskrelay/internal/archive"
	"github.com/sunthar/taskrelay/internal/slack"
	"github.com/sunthar/taskrelay/pkg/cerr"
	"github.com/sunthar/taskrelay/pkg/panicerr"
)

const maxTranscriptBytes = 4 << 20

// handleInteraction acknowledges the chat callback immediately and
// resolves the decision on a detached goroutine; every outcome after the
// ack travels through the interaction's response URL.
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := r.ParseForm(); err != nil {
		cerr.SetNewJSONError(ctx, cerr.InvalidArgument, "failed to parse interaction form", err)
		return
	}
	it, err := slack.ParseInteraction(r.PostForm)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	w.WriteHeader(http.StatusOK)

	detached := context.WithoutCancel(ctx)
	panicerr.Go(detached, "resolve-interaction", func(ctx context.Context) error {
		return s.resolver.Resolve(ctx, it)
	})
}

type processRequest struct {
	Transcript string `json:"transcript"`
	Text       string `json:"text"`
	Content    string `json:"content"`
}

// transcript returns the first populated field. Recorder integrations
// disagree on the field name for the same payload.
func (r processRequest) transcript() string {
	for _, v := range []string{r.Transcript, r.Text, r.Content} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type processResponse struct {
	Status       string `json:"status"`
	AgentReply   string `json:"agent_reply"`
	RunID        string `json:"run_id"`
	MeetingTitle string `json:"meeting_title"`
	Proposed     int    `json:"proposed"`
	Failed       int    `json:"failed"`
}

// runReply renders the run outcome as the reply text callers display.
func runReply(run *archive.Run) string {
	proposed := len(run.Items) - run.Failed
	if run.Failed > 0 {
		return fmt.Sprintf("Processed %q: proposed %d task(s) for review, %d item(s) failed.",
			run.MeetingTitle, proposed, run.Failed)
	}
	return fmt.Sprintf("Processed %q: proposed %d task(s) for review.", run.MeetingTitle, proposed)
}

// handleProcessTranscript runs the pipeline synchronously and returns
// the run summary.
func (s *Server) handleProcessTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transcript, err := readTranscript(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	run, err := s.workflow.ProcessTranscript(ctx, transcript)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, processResponse{
		Status:       "ok",
		AgentReply:   runReply(run),
		RunID:        run.ID,
		MeetingTitle: run.MeetingTitle,
		Proposed:     len(run.Items) - run.Failed,
		Failed:       run.Failed,
	})
}

// handleWebhook accepts a transcript from an external recorder and
// processes it in the background. The caller only learns that intake
// succeeded; outcomes surface in the review channel and the run archive.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	transcript, err := readTranscript(r)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)

	detached := context.WithoutCancel(ctx)
	panicerr.Go(detached, "process-webhook-transcript", func(ctx context.Context) error {
		run, err := s.workflow.ProcessTranscript(ctx, transcript)
		if err != nil {
			return err
		}
		slog.InfoContext(ctx, "processed webhook transcript",
			"run_id", run.ID, "meeting", run.MeetingTitle, "failed", run.Failed)
		return nil
	})
}

// readTranscript accepts either a JSON {"transcript": ...} body or raw
// text.
func readTranscript(r *http.Request) (string, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxTranscriptBytes))
	if err != nil {
		return "", cerr.NewError(cerr.InvalidArgument, "failed to read request body", err)
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req processRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return "", cerr.NewError(cerr.InvalidArgument, "failed to decode request body", err)
		}
		transcript := req.transcript()
		if transcript == "" {
			return "", cerr.NewError(cerr.InvalidArgument, "transcript is empty", nil)
		}
		return transcript, nil
	}

	if strings.TrimSpace(string(body)) == "" {
		return "", cerr.NewError(cerr.InvalidArgument, "transcript is empty", nil)
	}
	return string(body), nil
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	ids, err := s.archive.List(ctx)
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, map[string]any{"runs": ids})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	run, err := s.archive.Load(ctx, chi.URLParam(r, "runID"))
	if err != nil {
		cerr.SetJSONError(ctx, err)
		return
	}
	cerr.SetJSONResponse(ctx, run)
}
