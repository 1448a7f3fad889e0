// Package llm wraps an OpenAI-compatible Chat Completions streaming client.
// Per spec, only the accumulated text content matters: the model's "tool
// calls" are expressed through the Markdown envelope (see internal/parser),
// not OpenAI function-calling, so delta.ToolCalls is deliberately ignored.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"
)

// Message is the minimal role/content pair the client sends upstream.
type Message struct {
	Role    string
	Content string
}

// Role constants mirrored from spec.md §3.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Streamer is the interface the agent loop, compressor, and auditor depend
// on, so tests can substitute a fake without a network round trip.
type Streamer interface {
	Stream(ctx context.Context, messages []Message, opts StreamOptions) (string, error)
}

// Client issues streaming chat completions against an OpenAI-compatible
// endpoint (spec.md §4.8).
type Client struct {
	client *openai.Client
	model  string
}

// New constructs a Client. apiURL is the base URL; the SDK appends
// "/chat/completions" itself. An empty apiKey is permitted — no
// Authorization header is then sent.
func New(apiURL, apiKey, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if apiURL != "" {
		cfg.BaseURL = apiURL
	}
	return &Client{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

// StreamOptions controls ancillary behavior of a single streaming call.
type StreamOptions struct {
	// Silent suppresses any caller-side progress indicator for ancillary
	// calls (compression, audit sub-agent, reflection).
	Silent bool
	// OnToken is invoked once per non-empty content delta, in order, when
	// Silent is false. Callers that want raw streaming output (interactive
	// mode) supply this; it may be nil.
	OnToken func(string)
}

// Stream issues one streaming chat completion and returns the fully
// concatenated assistant text, or a transport/API error.
func (c *Client) Stream(ctx context.Context, messages []Message, opts StreamOptions) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: toOpenAIMessages(messages),
		Stream:   true,
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("llm: stream request failed: %w", err)
	}
	defer stream.Close()

	var out []byte
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("llm: stream receive failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		out = append(out, delta...)
		if !opts.Silent && opts.OnToken != nil {
			opts.OnToken(delta)
		}
	}

	return string(out), nil
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		}
	}
	return out
}
