package assistant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatcher_Reply(t *testing.T) {
	m := DefaultMatcher()

	tests := []struct {
		name     string
		question string
		want     string // substring of the expected response
	}{
		{"greeting", "Hi there!", "EcoBot"},
		{"points question", "How do I earn points?", "completing tasks"},
		{"badges question", "what badges can I get", "bronze, silver, and gold"},
		{"streak question", "I lost my daily streak", "consecutive days"},
		{"story question", "how do episodes unlock", "Story Mode"},
		{"case insensitive", "HELP ME PLEASE", "every expert was once a beginner"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, m.Reply(tt.question), tt.want)
		})
	}
}

func TestMatcher_Fallback(t *testing.T) {
	m := DefaultMatcher()

	reply := m.Reply("what is the airspeed velocity of an unladen swallow")
	assert.Contains(t, reply, "great question")
	assert.False(t, m.Matched("unrelated topic"))

	assert.Equal(t, reply, m.Reply(""))
}

func TestMatcher_FirstMatchWins(t *testing.T) {
	m := NewMatcher([]Entry{
		{Keywords: []string{"water"}, Response: "first"},
		{Keywords: []string{"water", "ocean"}, Response: "second"},
	}, "fallback")

	assert.Equal(t, "first", m.Reply("tell me about water"))
	assert.Equal(t, "second", m.Reply("tell me about the ocean"))
}
