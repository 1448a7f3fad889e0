package compress

import (
	"strings"
	"testing"

	"github.com/devagent/devagent/internal/session"
)

func TestEstimateTokens(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("a", 131072*4), 131072},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.text); got != c.want {
			t.Errorf("EstimateTokens(len=%d) = %d, want %d", len(c.text), got, c.want)
		}
	}
}

func TestEstimateHistoryTokens(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleSystem, Content: strings.Repeat("a", 8)},
		{Role: session.RoleUser, Content: strings.Repeat("b", 12)},
	}
	if got := EstimateHistoryTokens(history); got != 5 {
		t.Errorf("EstimateHistoryTokens = %d, want 5", got)
	}
}

func TestSerializeHistoryFormat(t *testing.T) {
	history := []session.Message{
		{Role: session.RoleSystem, Content: "be helpful"},
		{Role: session.RoleUser, Content: "do a thing"},
	}
	got := serializeHistory(history)
	want := "[SYSTEM]\nbe helpful\n\n---\n\n[USER]\ndo a thing"
	if got != want {
		t.Errorf("serializeHistory = %q, want %q", got, want)
	}
}
