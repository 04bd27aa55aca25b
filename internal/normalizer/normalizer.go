package normalizer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// upstreamTimeout bounds the whole completion call. A model endpoint
// that stops responding fails the transcript instead of blocking the
// caller.
const upstreamTimeout = 15 * time.Second

// ActionItem is one candidate task distilled from a transcript.
type ActionItem struct {
	Title           string `json:"title"`
	Description     string `json:"description"`
	SuggestedStatus string `json:"suggested_status"`
}

// Normalized is the structured view of a raw meeting transcript.
type Normalized struct {
	MeetingTitle        string       `json:"meeting_title"`
	Summary             string       `json:"summary"`
	CriticalActionItems []ActionItem `json:"critical_action_items"`
}

const systemPrompt = `You distill raw meeting transcripts into structured JSON.
Respond with a single JSON object of this exact shape:
{
  "meeting_title": string,
  "summary": string,
  "critical_action_items": [
    {"title": string, "description": string, "suggested_status": string}
  ]
}
Only include action items that are genuinely critical follow-ups.
If the transcript contains none, return an empty critical_action_items array.`

// Normalizer turns free-form transcripts into Normalized records via a
// chat-completion model constrained to JSON output.
type Normalizer struct {
	client *openai.Client
	model  string
}

// New builds a Normalizer. baseURL is optional and overrides the API
// endpoint, which also lets tests point at a local server.
func New(apiKey, model, baseURL string) *Normalizer {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.HTTPClient = &http.Client{Timeout: upstreamTimeout}
	return &Normalizer{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// Normalize sends the transcript through the model and decodes the
// structured result. Any failure aborts the whole transcript; there is
// no partial output.
func (n *Normalizer) Normalize(ctx context.Context, transcript string) (*Normalized, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "transcript is empty", nil)
	}

	resp, err := n.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: n.model,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: transcript},
		},
	})
	if err != nil {
		return nil, cerr.NewError(cerr.Unavailable, "transcript normalization call failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, cerr.NewError(cerr.Unavailable, "transcript normalization returned no choices", nil)
	}

	var out Normalized
	content := resp.Choices[0].Message.Content
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument,
			fmt.Sprintf("failed to decode normalized transcript: %s", truncate(content, 120)), err)
	}
	if out.MeetingTitle == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "normalized transcript has no meeting title", nil)
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
