// Package audit implements the independent, read-only second agent that
// reviews a completed session before the main loop reports success
// (spec.md §4.6).
package audit

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/devagent/devagent/internal/llm"
	"github.com/devagent/devagent/internal/parser"
	"github.com/devagent/devagent/internal/session"
	"github.com/devagent/devagent/internal/tool"
)

// MaxIterations bounds the auditor's own sub-loop (spec.md §4.6).
const MaxIterations = 20

// allowedCommandPrefixes mirrors the command allow-list the auditor is
// restricted to; adapted from the teacher's regex-based rule matching
// idiom (internal/permission/ruleset.go), repurposed here as a fixed
// read-only list instead of user-configurable permission rules.
var allowedCommandPrefixes = []*regexp.Regexp{
	regexp.MustCompile(`^cat `),
	regexp.MustCompile(`^head `),
	regexp.MustCompile(`^tail `),
	regexp.MustCompile(`^ls(\s|$)`),
	regexp.MustCompile(`^dir(\s|$)`),
	regexp.MustCompile(`^tree(\s|$)`),
	regexp.MustCompile(`^git (status|diff|log)(\s|$)`),
	regexp.MustCompile(`^npm (test|run build)(\s|$)`),
	regexp.MustCompile(`^type `),
}

func isCommandAllowed(cmd string) bool {
	trimmed := strings.TrimSpace(cmd)
	for _, re := range allowedCommandPrefixes {
		if re.MatchString(trimmed) {
			return true
		}
	}
	return false
}

// allowedToolNames is the set of tools the auditor may invoke besides
// COMMAND, which gets its own handling in executeRestricted, and DONE,
// which Run intercepts before any dispatch.
var allowedToolNames = map[string]bool{
	"LIST_DIRECTORY": true,
	"READ_FILE":      true,
}

// Verdict is the result of one audit pass.
type Verdict struct {
	Pass     bool
	Feedback string
}

// SystemPromptFunc computes the auditor's system prompt.
type SystemPromptFunc func(workingDir, summary, taskList string) string

// Deps bundles the collaborators the auditor needs. The auditor gets its
// own tool.Context (with its own background process registry) so it
// never touches the main loop's state, satisfying the "does not mutate
// the session's own history" constraint (spec.md §4.6).
type Deps struct {
	Client       llm.Streamer
	Tools        *tool.Context
	SystemPrompt SystemPromptFunc
}

// Run executes the auditor sub-loop and returns its verdict.
func Run(ctx context.Context, deps Deps, workingDir, doneSummary string, taskList []session.TaskItem) (Verdict, error) {
	rendered := renderTaskList(taskList)
	history := []llm.Message{
		{Role: llm.RoleSystem, Content: deps.SystemPrompt(workingDir, doneSummary, rendered)},
	}

	for i := 0; i < MaxIterations; i++ {
		raw, err := deps.Client.Stream(ctx, history, llm.StreamOptions{Silent: true})
		if err != nil {
			return Verdict{}, fmt.Errorf("audit: stream failed: %w", err)
		}

		parsed, err := parser.Parse(raw)
		if err != nil {
			return inferVerdictFromText(raw), nil
		}

		history = append(history, llm.Message{Role: llm.RoleAssistant, Content: parsed.Raw})

		var results []string
		done := false
		var verdict Verdict
		for _, call := range parsed.Tools {
			if call.Name == "DONE" {
				verdict = verdictFromDoneInput(call.Input)
				done = true
				break
			}

			result := executeRestricted(ctx, deps.Tools, call)
			results = append(results, fmt.Sprintf("[%s]: %s", call.Name, result))
			if strings.HasPrefix(result, "ERROR") {
				break
			}
		}
		if done {
			return verdict, nil
		}

		if len(results) > 0 {
			history = append(history, llm.Message{
				Role:    llm.RoleUser,
				Content: "Tool results:\n" + strings.Join(results, "\n"),
			})
		}
	}

	// Exhausted iterations without a DONE: conservative PASS per spec.md
	// §4.6 fallback rule (absent both verdict substrings, PASS).
	return Verdict{Pass: true, Feedback: "audit exhausted its iteration budget without a verdict"}, nil
}

// executeRestricted applies the auditor's tool allow-list before
// delegating to the shared dispatcher.
func executeRestricted(ctx context.Context, tc *tool.Context, call parser.ToolCall) string {
	if call.Name == "COMMAND" {
		if !isCommandAllowed(call.Input) {
			return fmt.Sprintf("ERROR: Command not allowed in audit mode: %s", strings.TrimSpace(call.Input))
		}
		return tool.Dispatch(ctx, tc, "COMMAND", call.Input)
	}
	if !allowedToolNames[call.Name] {
		return fmt.Sprintf("ERROR: Tool not allowed in audit mode: %s", call.Name)
	}
	return tool.Dispatch(ctx, tc, call.Name, call.Input)
}

func verdictFromDoneInput(input string) Verdict {
	pass := !strings.Contains(strings.ToLower(input), "fail")
	return Verdict{Pass: pass, Feedback: strings.TrimSpace(input)}
}

// inferVerdictFromText scans an unparseable response for an explicit
// "overall: pass"/"overall: fail" marker, falling back to PASS.
func inferVerdictFromText(text string) Verdict {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "overall: fail"):
		return Verdict{Pass: false, Feedback: strings.TrimSpace(text)}
	case strings.Contains(lower, "overall: pass"):
		return Verdict{Pass: true}
	default:
		return Verdict{Pass: true}
	}
}

func renderTaskList(items []session.TaskItem) string {
	var lines []string
	for _, item := range items {
		marker := " "
		switch item.Status {
		case session.TaskComplete:
			marker = "x"
		case session.TaskInProgress:
			marker = "~"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", marker, item.Text))
	}
	return strings.Join(lines, "\n")
}
