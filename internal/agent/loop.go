package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/devagent/devagent/internal/audit"
	"github.com/devagent/devagent/internal/compress"
	"github.com/devagent/devagent/internal/config"
	"github.com/devagent/devagent/internal/llm"
	"github.com/devagent/devagent/internal/parser"
	"github.com/devagent/devagent/internal/session"
	"github.com/devagent/devagent/internal/tool"
)

// malformedComplaint is appended as a user message when a response fails
// to parse, per spec.md §4.2 step 3.
const malformedComplaint = `Your previous response could not be parsed. Reply again using the exact Markdown envelope: a final "# Agent Response" line, then "## Thoughts", "## Task List", and one or more "## Tool Choice" / "## Tool Input" pairs naming one of the recognized tools.`

// Deps bundles everything the loop needs beyond the session itself.
type Deps struct {
	Client    llm.Streamer
	Store     *session.Store
	Config    *config.Config
	Tools     *tool.Context
	AuditDeps audit.Deps
	// Trace, if non-nil, receives one line per retry and per tool dispatch
	// (the --verbose flag, spec.md §A.3). Nil means no tracing.
	Trace func(format string, args ...interface{})
}

func (d Deps) trace(format string, args ...interface{}) {
	if d.Trace == nil {
		return
	}
	d.Trace(format, args...)
}

// Run drives one session to completion: DONE + audit PASS, a fatal error,
// or the loop cap (spec.md §4.2).
func Run(ctx context.Context, deps Deps, sess *session.Session, automated bool) error {
	systemPrompt := BuildSystemPrompt(sess.WorkingDirectory, automated)
	sess.EnsureSystemPrompt(systemPrompt)

	retries := 0
	loops := 0
	maxRetries := deps.Config.MaxRetriesFor(automated)

	for {
		if compress.EstimateHistoryTokens(sess.History) >= deps.Config.MaxContextTokens {
			newHistory, record, err := compress.Compress(ctx, deps.Client, sess, systemPrompt)
			if err != nil {
				return newFatal(FatalTransportExhausted, "context compression failed", err)
			}
			sess.History = newHistory
			sess.Compressions = append(sess.Compressions, record)
			sess.TotalTokens = compress.EstimateHistoryTokens(sess.History)
			if err := deps.Store.Save(sess); err != nil {
				return newFatal(FatalTransportExhausted, "failed to persist session after compression", err)
			}
		}

		raw, err := deps.Client.Stream(ctx, toLLMMessages(sess.History), llm.StreamOptions{
			Silent:  automated,
			OnToken: nil,
		})
		if err != nil {
			retries++
			deps.trace("transport error (retry %d/%d): %v", retries, maxRetries, err)
			if retries >= maxRetries {
				return newFatal(FatalTransportExhausted, fmt.Sprintf("transport failures exhausted retries (%d)", maxRetries), err)
			}
			continue
		}

		parsed, perr := parser.Parse(raw)
		if perr != nil {
			sess.AppendHistory(
				session.Message{Role: session.RoleAssistant, Content: raw},
				session.Message{Role: session.RoleUser, Content: malformedComplaint},
			)
			sess.TotalTokens = compress.EstimateHistoryTokens(sess.History)
			if err := deps.Store.Save(sess); err != nil {
				return newFatal(FatalTransportExhausted, "failed to persist session after malformed response", err)
			}
			retries++
			deps.trace("malformed response (retry %d/%d): %v", retries, maxRetries, perr)
			if retries >= maxRetries {
				return newFatal(FatalMalformedExhausted, fmt.Sprintf("model response remained malformed after %d retries", maxRetries), perr)
			}
			loops++
			if loops >= deps.Config.MaxLoops {
				return newFatal(FatalLoopCapReached, fmt.Sprintf("reached loop cap (%d) without completion", deps.Config.MaxLoops), nil)
			}
			continue
		}

		retries = 0
		sess.TaskList = toSessionTaskList(parsed.TaskList)
		sess.AppendHistory(session.Message{Role: session.RoleAssistant, Content: parsed.Raw})
		sess.TotalTokens = compress.EstimateHistoryTokens(sess.History)
		if err := deps.Store.Save(sess); err != nil {
			return newFatal(FatalTransportExhausted, "failed to persist session after turn", err)
		}

		var results []string
		doneHit := false
		var doneSummary string
		for _, call := range parsed.Tools {
			if call.Name == "DONE" {
				doneHit = true
				deps.trace("tool dispatch: DONE")
				doneSummary = tool.Dispatch(ctx, deps.Tools, "DONE", call.Input)
				break
			}

			deps.trace("tool dispatch: %s", call.Name)
			result := tool.Dispatch(ctx, deps.Tools, call.Name, call.Input)
			results = append(results, fmt.Sprintf("[%s]: %s", call.Name, result))
			if strings.HasPrefix(result, "ERROR") {
				deps.trace("tool %s returned an error", call.Name)
				break
			}
		}

		if len(results) > 0 {
			sess.AppendHistory(session.Message{
				Role:    session.RoleUser,
				Content: "Tool results:\n" + strings.Join(results, "\n"),
			})
			sess.TotalTokens = compress.EstimateHistoryTokens(sess.History)
			if err := deps.Store.Save(sess); err != nil {
				return newFatal(FatalTransportExhausted, "failed to persist session after tool execution", err)
			}
		}

		if doneHit {
			verdict, err := audit.Run(ctx, deps.AuditDeps, sess.WorkingDirectory, doneSummary, sess.TaskList)
			if err != nil {
				return newFatal(FatalTransportExhausted, "audit failed to run", err)
			}
			if verdict.Pass {
				return nil
			}

			sess.AppendHistory(session.Message{
				Role:    session.RoleUser,
				Content: "AUDIT FAILED. Please address the following issues:\n\n" + verdict.Feedback,
			})
			sess.TotalTokens = compress.EstimateHistoryTokens(sess.History)
			if err := deps.Store.Save(sess); err != nil {
				return newFatal(FatalTransportExhausted, "failed to persist session after audit failure", err)
			}
		}

		loops++
		if loops >= deps.Config.MaxLoops {
			return newFatal(FatalLoopCapReached, fmt.Sprintf("reached loop cap (%d) without completion", deps.Config.MaxLoops), nil)
		}
	}
}

func toLLMMessages(history []session.Message) []llm.Message {
	out := make([]llm.Message, len(history))
	for i, m := range history {
		out[i] = llm.Message{Role: m.Role, Content: m.Content}
	}
	return out
}

func toSessionTaskList(items []parser.TaskItem) []session.TaskItem {
	out := make([]session.TaskItem, len(items))
	for i, it := range items {
		out[i] = session.TaskItem{Status: session.TaskStatus(it.Status), Text: it.Text}
	}
	return out
}
