package event

import (
	"crypto/rand"
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Type identifies a domain event on the bus.
type Type string

const (
	// Transcript pipeline events
	TranscriptReceived Type = "transcript.received"
	TranscriptRejected Type = "transcript.rejected"

	// Proposal lifecycle events
	TaskProposed     Type = "task.proposed"
	ProposalApproved Type = "proposal.approved"
	ProposalSkipped  Type = "proposal.skipped"
	ProposalFeedback Type = "proposal.feedback"
)

// AllTypes lists every event type, in pipeline order. Subscribers that
// want the whole stream register once per entry.
var AllTypes = []Type{
	TranscriptReceived, TranscriptRejected,
	TaskProposed, ProposalApproved, ProposalSkipped, ProposalFeedback,
}

// Event is a typed domain event.
type Event[T any] struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Data      T         `json:"data"`
}

// Message is the serialized form an event travels in.
type Message struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Data      json.RawMessage `json:"data"`
}

// New creates a typed event stamped with a fresh ULID.
func New[T any](source string, data T) *Event[T] {
	return &Event[T]{
		ID:        newEventID(),
		Timestamp: time.Now(),
		Source:    source,
		Data:      data,
	}
}

// ToMessage converts a typed event to its transport form.
func (e *Event[T]) ToMessage() (*Message, error) {
	rawData, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:        e.ID,
		Type:      inferType(e.Data),
		Timestamp: e.Timestamp,
		Source:    e.Source,
		Data:      rawData,
	}, nil
}

// FromMessage decodes a transport message back into a typed event.
func FromMessage[T any](msg *Message) (*Event[T], error) {
	var data T
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return nil, err
	}
	return &Event[T]{
		ID:        msg.ID,
		Timestamp: msg.Timestamp,
		Source:    msg.Source,
		Data:      data,
	}, nil
}

// inferType maps a data payload to its event type by Go type name.
func inferType(data any) Type {
	dataType := reflect.TypeOf(data)
	if dataType.Kind() == reflect.Ptr {
		dataType = dataType.Elem()
	}

	switch dataType.Name() {
	case "TranscriptReceivedData":
		return TranscriptReceived
	case "TranscriptRejectedData":
		return TranscriptRejected
	case "TaskProposedData":
		return TaskProposed
	case "ProposalApprovedData":
		return ProposalApproved
	case "ProposalSkippedData":
		return ProposalSkipped
	case "ProposalFeedbackData":
		return ProposalFeedback
	default:
		return Type(camelToDotted(dataType.Name()))
	}
}

func camelToDotted(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

func newEventID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader).String()
}

// TranscriptReceivedData announces a transcript entering the pipeline.
type TranscriptReceivedData struct {
	MeetingTitle string `json:"meeting_title"`
	ItemCount    int    `json:"item_count"`
}

// TranscriptRejectedData records a transcript that failed normalization.
type TranscriptRejectedData struct {
	Reason string `json:"reason"`
}

// TaskProposedData records a task created and sent out for review.
type TaskProposedData struct {
	TaskID  string `json:"task_id"`
	TaskURL string `json:"task_url"`
	Title   string `json:"title"`
}

// ProposalApprovedData records a reviewer approving a proposed task.
type ProposalApprovedData struct {
	TaskID string `json:"task_id"`
	Actor  string `json:"actor"`
}

// ProposalSkippedData records a reviewer discarding a proposed task.
type ProposalSkippedData struct {
	TaskID string `json:"task_id"`
	Actor  string `json:"actor"`
}

// ProposalFeedbackData records a reviewer requesting changes.
type ProposalFeedbackData struct {
	TaskID string `json:"task_id"`
	Actor  string `json:"actor"`
}
