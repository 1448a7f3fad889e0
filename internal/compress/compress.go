// Package compress implements the agent loop's context compressor
// (spec.md §4.7): when the estimated token count of a session's history
// reaches the configured ceiling, the history is replaced with a short
// continuation summary produced by the model itself.
package compress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/devagent/devagent/internal/llm"
	"github.com/devagent/devagent/internal/session"
)

// EstimateTokens approximates token count as one token per four characters,
// rounded up. This mirrors the char-count heuristic used throughout the
// loop; spec.md §1 explicitly excludes tokenizer fidelity as a goal.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + 3) / 4
}

// EstimateHistoryTokens sums the per-message estimate across a history.
func EstimateHistoryTokens(history []session.Message) int {
	total := 0
	for _, m := range history {
		total += EstimateTokens(m.Content)
	}
	return total
}

const compressionSystemPrompt = `You are a context compression assistant. You will be given the full transcript of an agent's conversation so far. Produce a detailed prompt for continuing the conversation: what was done, what is in progress, which files matter, and what should happen next. The new session will not have access to this transcript, so be concrete and self-contained.`

// Compress sends the current history to the model for summarization and
// returns the new two-message replacement history (system prompt +
// combined summary/original-request message), along with the compression
// record to append to the session.
func Compress(ctx context.Context, client llm.Streamer, sess *session.Session, systemPrompt string) ([]session.Message, session.Compression, error) {
	tokensBefore := EstimateHistoryTokens(sess.History)

	summary, err := client.Stream(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: compressionSystemPrompt},
		{Role: llm.RoleUser, Content: serializeHistory(sess.History)},
	}, llm.StreamOptions{Silent: true})
	if err != nil {
		return nil, session.Compression{}, fmt.Errorf("compress: %w", err)
	}

	combined := fmt.Sprintf("[CONTEXT SUMMARY]\n\n%s\n\n[ORIGINAL REQUEST]\n\n%s", summary, sess.OriginalPrompt)

	newHistory := []session.Message{
		{Role: session.RoleSystem, Content: systemPrompt},
		{Role: session.RoleUser, Content: combined},
	}

	record := session.Compression{
		Timestamp:    time.Now().UTC(),
		TokensBefore: tokensBefore,
		TokensAfter:  EstimateHistoryTokens(newHistory),
	}

	return newHistory, record, nil
}

// serializeHistory renders the history as the literal dialogue format the
// compression model receives: each entry as "[ROLE]\n<content>", joined by
// a blank-line-delimited separator.
func serializeHistory(history []session.Message) string {
	parts := make([]string, len(history))
	for i, m := range history {
		parts[i] = fmt.Sprintf("[%s]\n%s", strings.ToUpper(m.Role), m.Content)
	}
	return strings.Join(parts, "\n\n---\n\n")
}
