package normalizer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

func completionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, `{"error": {"message": "boom"}}`, status)
			return
		}
		resp := map[string]any{
			"id":     "chatcmpl-test",
			"object": "chat.completion",
			"model":  "gpt-4o",
			"choices": []map[string]any{
				{
					"index":         0,
					"finish_reason": "stop",
					"message":       map[string]any{"role": "assistant", "content": content},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestNormalize(t *testing.T) {
	srv := completionServer(t, `{
		"meeting_title": "Living Room Painting Plan",
		"summary": "Scheduling and supplies for the painting weekend.",
		"critical_action_items": [
			{"title": "Buy paint", "description": "Two cans of eggshell white.", "suggested_status": "To Review"},
			{"title": "Book HVAC inspection", "description": "Before sealing the vents.", "suggested_status": "To Review"}
		]
	}`, http.StatusOK)
	defer srv.Close()

	n := New("test-key", "gpt-4o", srv.URL+"/v1")
	out, err := n.Normalize(context.Background(), "We need paint and an HVAC check before the weekend.")
	require.NoError(t, err)

	assert.Equal(t, "Living Room Painting Plan", out.MeetingTitle)
	require.Len(t, out.CriticalActionItems, 2)
	assert.Equal(t, "Buy paint", out.CriticalActionItems[0].Title)
	assert.Equal(t, "Book HVAC inspection", out.CriticalActionItems[1].Title)
}

func TestNormalizeEmptyTranscript(t *testing.T) {
	n := New("test-key", "gpt-4o", "")
	_, err := n.Normalize(context.Background(), "   \n")
	require.Error(t, err)
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
}

func TestNormalizeUpstreamFailure(t *testing.T) {
	srv := completionServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	n := New("test-key", "gpt-4o", srv.URL+"/v1")
	_, err := n.Normalize(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))
}

func TestNormalizeStalledUpstreamFails(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	cfg := openai.DefaultConfig("test-key")
	cfg.BaseURL = srv.URL + "/v1"
	cfg.HTTPClient = &http.Client{Timeout: 100 * time.Millisecond}
	n := &Normalizer{client: openai.NewClientWithConfig(cfg), model: "gpt-4o"}

	start := time.Now()
	_, err := n.Normalize(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, cerr.Unavailable, cerr.CodeOf(err))
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestNormalizeMalformedModelOutput(t *testing.T) {
	srv := completionServer(t, "not json at all", http.StatusOK)
	defer srv.Close()

	n := New("test-key", "gpt-4o", srv.URL+"/v1")
	_, err := n.Normalize(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
}

func TestNormalizeMissingTitle(t *testing.T) {
	srv := completionServer(t, `{"summary": "x", "critical_action_items": []}`, http.StatusOK)
	defer srv.Close()

	n := New("test-key", "gpt-4o", srv.URL+"/v1")
	_, err := n.Normalize(context.Background(), "anything")
	require.Error(t, err)
	assert.Equal(t, cerr.InvalidArgument, cerr.CodeOf(err))
}
