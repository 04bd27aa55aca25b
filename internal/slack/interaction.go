package slack

import (
	"encoding/json"
	"net/url"

	slackapi "github.com/slack-go/slack"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// Interaction is the decoded outcome of one button press on a proposal
// message.
type Interaction struct {
	ActionID    string
	TaskURL     string
	Actor       string
	ResponseURL string
}

// ParseInteraction decodes the form-encoded interactivity callback Slack
// posts when a proposal button is pressed. The callback carries a single
// `payload` field holding the JSON envelope.
func ParseInteraction(form url.Values) (*Interaction, error) {
	payload := form.Get("payload")
	if payload == "" {
		return nil, cerr.NewError(cerr.InvalidArgument, "interaction callback has no payload", nil)
	}

	var cb slackapi.InteractionCallback
	if err := json.Unmarshal([]byte(payload), &cb); err != nil {
		return nil, cerr.NewError(cerr.InvalidArgument, "failed to decode interaction payload", err)
	}

	actions := cb.ActionCallback.BlockActions
	if len(actions) == 0 {
		return nil, cerr.NewError(cerr.InvalidArgument, "interaction payload has no block actions", nil)
	}
	action := actions[0]

	actor := cb.User.Name
	if actor == "" {
		actor = cb.User.ID
	}
	if actor == "" {
		actor = "unknown"
	}

	return &Interaction{
		ActionID:    action.ActionID,
		TaskURL:     action.Value,
		Actor:       actor,
		ResponseURL: cb.ResponseURL,
	}, nil
}
