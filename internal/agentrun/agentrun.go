package agentrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	claudeagent "github.com/kazz187/claude-agent-sdk-go"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

const (
	maxAttempts    = 3
	initialBackoff = 2 * time.Second

	// attemptTimeout bounds one agent run. An agent runtime that never
	// comes back is a connection failure, not an open-ended wait.
	attemptTimeout = 2 * time.Minute
)

const systemPrompt = `You are a task extraction agent. You are given a meeting
transcript and a set of task management tools.

For each critical action item in the transcript:
1. Use create_proposed_task to create it in the tracking database. Leave the
   status at its default so a human reviews it first.
2. Use send_slack_proposal to announce it, with a one-sentence reasoning for
   why it matters.

Use search_notion first if you need to confirm the right database. Do not
approve, complete, or delete anything yourself.`

// Runner delegates transcript processing to an external agent session
// that drives the task tools itself, instead of the built-in pipeline.
type Runner struct {
	workDir  string
	maxTurns int

	timeout time.Duration
	backoff time.Duration
	query   func(ctx context.Context, prompt string, opts *claudeagent.ClaudeAgentOptions) (string, error)
}

func New(workDir string, maxTurns int) *Runner {
	r := &Runner{
		workDir:  workDir,
		maxTurns: maxTurns,
		timeout:  attemptTimeout,
		backoff:  initialBackoff,
	}
	r.query = r.runAgent
	return r
}

// runAgent performs one agent run and returns its final report text.
func (r *Runner) runAgent(ctx context.Context, prompt string, opts *claudeagent.ClaudeAgentOptions) (string, error) {
	result, err := claudeagent.RunQuerySync(ctx, prompt, opts)
	if err != nil {
		return "", err
	}
	if result.Result == nil {
		return "", fmt.Errorf("agent returned no result")
	}
	if result.Result.IsError {
		return "", fmt.Errorf("agent reported an error: %s", result.Result.Result)
	}
	return result.Result.Result, nil
}

// ProcessTranscript hands the transcript to the agent and returns its
// final report. Transient failures are retried with backoff.
func (r *Runner) ProcessTranscript(ctx context.Context, transcript string) (string, error) {
	prompt := fmt.Sprintf("Process this meeting transcript:\n\n%s", transcript)

	opts := &claudeagent.ClaudeAgentOptions{
		SystemPrompt:   systemPrompt,
		Cwd:            r.workDir,
		PermissionMode: claudeagent.PermissionModeDefault,
	}
	if r.maxTurns > 0 {
		opts.MaxTurns = &r.maxTurns
	}

	backoff := r.backoff
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
		report, err := r.query(attemptCtx, prompt, opts)
		cancel()
		if err == nil {
			return report, nil
		}
		lastErr = err
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			lastErr = fmt.Errorf("agent did not respond within %s: %w", r.timeout, err)
		}

		slog.WarnContext(ctx, "agent run failed",
			"attempt", attempt, "max_attempts", maxAttempts, "error", lastErr)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", cerr.NewError(cerr.Canceled, "agent run canceled", ctx.Err())
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", cerr.NewError(cerr.Unavailable, "agent run failed after retries", lastErr)
}
