package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain array",
			content: `[{"time":"07:00","activity":"Run"}]`,
			want:    `[{"time":"07:00","activity":"Run"}]`,
		},
		{
			name:    "fenced array",
			content: "```json\n[{\"time\":\"07:00\",\"activity\":\"Run\"}]\n```",
			want:    `[{"time":"07:00","activity":"Run"}]`,
		},
		{
			name:    "fence without language tag",
			content: "```\n{\"activity\":\"Read\"}\n```",
			want:    `{"activity":"Read"}`,
		},
		{
			name:    "prose around the value",
			content: "Here is your plan:\n[{\"activity\":\"Walk\"}]\nEnjoy your day!",
			want:    `[{"activity":"Walk"}]`,
		},
		{
			name:    "object with trailing prose",
			content: `{"activity":"Yoga"} is what I suggest.`,
			want:    `{"activity":"Yoga"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractJSON(tt.content)
			require.NotNil(t, got)
			assert.JSONEq(t, tt.want, string(got))
		})
	}
}

func TestExtractJSONRecovery(t *testing.T) {
	// The outermost trim picks up a stray '}' after the array; the recovery
	// pass still finds the valid array span.
	content := "plan: [{\"activity\":\"Walk\"}] }"
	got := ExtractJSON(content)
	require.NotNil(t, got)

	var activities []map[string]string
	require.NoError(t, json.Unmarshal(got, &activities))
	assert.Equal(t, "Walk", activities[0]["activity"])
}

func TestExtractJSONUnrecoverable(t *testing.T) {
	for _, content := range []string{
		"",
		"no json here",
		`[{"time": "07:00", "activity": "Run"`, // truncated
	} {
		assert.Nil(t, ExtractJSON(content), "content: %q", content)
	}
}

func TestTrimToJSON(t *testing.T) {
	assert.Equal(t, `[1,2]`, TrimToJSON("noise [1,2] noise"))
	assert.Equal(t, "", TrimToJSON("no delimiters"))
	assert.Equal(t, "", TrimToJSON("} ["))
}
