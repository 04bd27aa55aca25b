package notion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractTaskID(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		wantID string
		wantOK bool
	}{
		{
			name:   "id with query string",
			url:    "https://x.tld/workspace/AbCdEf1234567890AbCdEf1234567890?v=1",
			wantID: "AbCdEf1234567890AbCdEf1234567890",
			wantOK: true,
		},
		{
			name:   "notion page url with slug prefix",
			url:    "https://www.notion.so/Paint-Living-Room-1f3a5b2c4d6e7f8091a2b3c4d5e6f708",
			wantID: "1f3a5b2c4d6e7f8091a2b3c4d5e6f708",
			wantOK: true,
		},
		{
			name:   "trailing slash",
			url:    "https://www.notion.so/AbCdEf1234567890AbCdEf1234567890/",
			wantID: "AbCdEf1234567890AbCdEf1234567890",
			wantOK: true,
		},
		{
			name:   "no scheme marker",
			url:    "www.notion.so/AbCdEf1234567890AbCdEf1234567890",
			wantOK: false,
		},
		{
			name:   "segment too short",
			url:    "https://www.notion.so/short",
			wantOK: false,
		},
		{
			name:   "no path",
			url:    "https://www.notion.so",
			wantOK: false,
		},
		{
			name:   "empty input",
			url:    "",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ExtractTaskID(tt.url)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestExtractTaskIDIsPure(t *testing.T) {
	url := "https://x.tld/workspace/AbCdEf1234567890AbCdEf1234567890?v=1"
	first, ok1 := ExtractTaskID(url)
	second, ok2 := ExtractTaskID(url)
	assert.Equal(t, first, second)
	assert.Equal(t, ok1, ok2)

	// The None case is stable too.
	_, ok1 = ExtractTaskID("no marker here")
	_, ok2 = ExtractTaskID("no marker here")
	assert.Equal(t, ok1, ok2)
	assert.False(t, ok1)
}
