package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/sunthar/taskrelay/pkg/cerr"
)

// Action IDs carried by the proposal buttons. The interactivity payload
// routes on these, so they must stay stable once a proposal is out.
const (
	ActionApprove  = "approve"
	ActionSkip     = "skip"
	ActionFeedback = "feedback"
)

// Proposal is the chat message announcing one tracked task for review.
type Proposal struct {
	TaskName  string
	TaskURL   string
	Reasoning string
}

// Client posts proposal messages to the configured channel webhook and
// replacement messages to one-shot response URLs.
type Client struct {
	webhookURL string
}

func NewClient(webhookURL string) *Client {
	return &Client{webhookURL: webhookURL}
}

// PostProposal sends the interactive proposal message to the fixed
// channel webhook: header, task summary, and the three decision buttons.
func (c *Client) PostProposal(ctx context.Context, p *Proposal) error {
	if c.webhookURL == "" {
		return cerr.NewError(cerr.FailedPrecondition, "no Slack webhook URL configured", nil)
	}

	approve := slackapi.NewButtonBlockElement(ActionApprove, p.TaskURL,
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "Approve ✅", true, false))
	approve.Style = slackapi.StylePrimary
	skip := slackapi.NewButtonBlockElement(ActionSkip, p.TaskURL,
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "Skip 🚫", true, false))
	skip.Style = slackapi.StyleDanger
	feedback := slackapi.NewButtonBlockElement(ActionFeedback, p.TaskURL,
		slackapi.NewTextBlockObject(slackapi.PlainTextType, "Feedback 💬", true, false))

	msg := &slackapi.WebhookMessage{
		Blocks: &slackapi.Blocks{
			BlockSet: []slackapi.Block{
				slackapi.NewHeaderBlock(
					slackapi.NewTextBlockObject(slackapi.PlainTextType, "🤖 New Task Proposal", true, false)),
				slackapi.NewSectionBlock(
					slackapi.NewTextBlockObject(slackapi.MarkdownType,
						fmt.Sprintf("*%s*\n%s", p.TaskName, p.Reasoning), false, false),
					nil, nil),
				slackapi.NewActionBlock("proposal_actions", approve, skip, feedback),
			},
		},
	}

	if err := slackapi.PostWebhookContext(ctx, c.webhookURL, msg); err != nil {
		return cerr.NewError(cerr.Unavailable, fmt.Sprintf("failed to post proposal for %q", p.TaskName), err)
	}
	return nil
}

// Respond posts text to a one-shot response URL. When replace is true the
// original proposal message is replaced in place.
func (c *Client) Respond(ctx context.Context, responseURL, text string, replace bool) error {
	msg := &slackapi.WebhookMessage{
		Text:            text,
		ReplaceOriginal: replace,
	}
	if err := slackapi.PostWebhookContext(ctx, responseURL, msg); err != nil {
		return cerr.NewError(cerr.Unavailable, "failed to post response message", err)
	}
	return nil
}
