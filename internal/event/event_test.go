package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	ev := New("workflow", TaskProposedData{
		TaskID: "AbCdEf1234567890AbCdEf1234567890",
		Title:  "Buy paint",
	})

	assert.Equal(t, "workflow", ev.Source)
	assert.NotEmpty(t, ev.ID)
	assert.False(t, ev.Timestamp.IsZero())
	assert.Equal(t, "Buy paint", ev.Data.Title)
}

func TestMessageRoundTrip(t *testing.T) {
	ev := New("resolution", ProposalApprovedData{TaskID: "t1", Actor: "alice"})

	msg, err := ev.ToMessage()
	require.NoError(t, err)
	assert.Equal(t, ProposalApproved, msg.Type)
	assert.Equal(t, ev.ID, msg.ID)

	back, err := FromMessage[ProposalApprovedData](msg)
	require.NoError(t, err)
	assert.Equal(t, ev.Data, back.Data)
	assert.Equal(t, ev.Source, back.Source)
}

func TestInferType(t *testing.T) {
	tests := []struct {
		data any
		want Type
	}{
		{TranscriptReceivedData{}, TranscriptReceived},
		{TranscriptRejectedData{}, TranscriptRejected},
		{TaskProposedData{}, TaskProposed},
		{&TaskProposedData{}, TaskProposed},
		{ProposalApprovedData{}, ProposalApproved},
		{ProposalSkippedData{}, ProposalSkipped},
		{ProposalFeedbackData{}, ProposalFeedback},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, inferType(tt.data))
	}
}

func TestEventIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for range 100 {
		id := newEventID()
		require.False(t, seen[id], "duplicate event ID %s", id)
		seen[id] = true
	}
}
