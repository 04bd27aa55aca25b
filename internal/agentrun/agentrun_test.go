package agentrun

import (
	"context"
	"fmt"
	"testing"
	"time"

	claudeagent "github.com/kazz187/claude-agent-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

func testRunner() *Runner {
	r := New(".", 5)
	r.backoff = time.Millisecond
	return r
}

func TestProcessTranscriptReturnsReport(t *testing.T) {
	r := testRunner()
	r.query = func(ctx context.Context, prompt string, opts *claudeagent.ClaudeAgentOptions) (string, error) {
		assert.Contains(t, prompt, "paint the living room")
		require.NotNil(t, opts.MaxTurns)
		assert.Equal(t, 5, *opts.MaxTurns)
		return "proposed 2 tasks", nil
	}

	report, err := r.ProcessTranscript(context.Background(), "paint the living room")
	require.NoError(t, err)
	assert.Equal(t, "proposed 2 tasks", report)
}

func TestProcessTranscriptRetriesTransientFailures(t *testing.T) {
	r := testRunner()
	calls := 0
	r.query = func(ctx context.Context, _ string, _ *claudeagent.ClaudeAgentOptions) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("transport closed")
		}
		return "done", nil
	}

	report, err := r.ProcessTranscript(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "done", report)
	assert.Equal(t, 3, calls)
}

func TestProcessTranscriptStalledAgentTimesOut(t *testing.T) {
	r := testRunner()
	r.timeout = 50 * time.Millisecond
	calls := 0
	r.query = func(ctx context.Context, _ string, _ *claudeagent.ClaudeAgentOptions) (string, error) {
		calls++
		<-ctx.Done()
		return "", ctx.Err()
	}

	start := time.Now()
	_, err := r.ProcessTranscript(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))
	assert.Contains(t, err.Error(), "did not respond")
	assert.Equal(t, maxAttempts, calls, "each attempt gets its own deadline")
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProcessTranscriptCanceled(t *testing.T) {
	r := testRunner()
	r.backoff = time.Minute
	ctx, cancel := context.WithCancel(context.Background())
	r.query = func(context.Context, string, *claudeagent.ClaudeAgentOptions) (string, error) {
		cancel()
		return "", fmt.Errorf("transport closed")
	}

	_, err := r.ProcessTranscript(ctx, "anything")
	require.Error(t, err)
	assert.Equal(t, cerr.Canceled, cerr.CodeOf(err))
}
