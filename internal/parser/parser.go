// Package parser turns a raw streamed model response into a structured
// ParsedResponse: thoughts, task list, and an ordered tool call sequence.
//
// The wire format is a Markdown envelope. Models are free to emit scratch
// or reasoning text before the real answer; only the content from the
// final "# Agent Response" marker onward is considered.
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

// ToolNames is the fixed, exhaustive set of tool names the parser recognizes.
var ToolNames = []string{
	"LIST_DIRECTORY",
	"READ_FILE",
	"WRITE_FILE",
	"FIND_AND_REPLACE_IN_FILE",
	"COMMAND",
	"UPDATE_TASK_LIST",
	"ASK_USER",
	"DONE",
	"READ_BACKGROUND_PROCESS",
	"LIST_BACKGROUND_PROCESSES",
	"KILL_BACKGROUND_PROCESS",
}

var knownTools = func() map[string]bool {
	m := make(map[string]bool, len(ToolNames))
	for _, n := range ToolNames {
		m[n] = true
	}
	return m
}()

const responseMarker = "# Agent Response"

// TaskStatus enumerates the normalized states a task list line can carry.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskComplete   TaskStatus = "complete"
)

// TaskItem is one line of a parsed task list.
type TaskItem struct {
	Status TaskStatus
	Text   string
}

// ToolCall is one finalized tool invocation extracted from the response.
type ToolCall struct {
	Name  string
	Input string
}

// ParsedResponse is the transient product of parsing one model turn.
type ParsedResponse struct {
	Thoughts string
	TaskList []TaskItem
	Tools    []ToolCall
	Raw      string // the canonical Markdown slice, as stored into history
}

// ErrMalformed signals the parser could not extract at least one tool call.
type ErrMalformed struct {
	Reason string
}

func (e *ErrMalformed) Error() string {
	return fmt.Sprintf("malformed agent response: %s", e.Reason)
}

type section int

const (
	sectionNone section = iota
	sectionThoughts
	sectionTaskList
	sectionToolChoice
	sectionToolInput
)

// fenceState tracks whether the scanner currently believes it is inside a
// fenced code block, and with what opening fence.
type fenceState struct {
	open bool
	char byte // '`' or '~'
	run  int
}

var fenceLineRe = regexp.MustCompile("^(`{3,}|~{3,})(.*)$")

// Parse locates the final "# Agent Response" marker and runs the
// line-oriented state machine over everything from there onward.
func Parse(raw string) (*ParsedResponse, error) {
	idx := lastIndexLineStart(raw, responseMarker)
	if idx < 0 {
		return nil, &ErrMalformed{Reason: "no \"# Agent Response\" marker found"}
	}
	canonical := raw[idx:]

	lines := strings.Split(canonical, "\n")

	var (
		sec          = sectionNone
		fence        fenceState
		thoughts     []string
		taskList     []TaskItem
		tools        []ToolCall
		curName      string
		curInputLine []string
	)

	finalizeTool := func() {
		if sec == sectionToolChoice || sec == sectionToolInput {
			if curName != "" {
				tools = append(tools, ToolCall{
					Name:  curName,
					Input: strings.TrimSpace(strings.Join(curInputLine, "\n")),
				})
			}
		}
		curName = ""
		curInputLine = nil
	}

	for i := 1; i < len(lines); i++ { // line 0 is the marker line itself
		line := lines[i]

		if header, ok := matchHeader(line); ok {
			inFence := fence.open
			isToolBoundary := header == "## Tool Choice" || header == "## Tool Input"
			// Pragma: a Tool Choice/Tool Input header is honored as a
			// section boundary even inside an unclosed fence, as long as
			// we are currently in the toolInput section recovering from a
			// model that forgot to close its fence.
			if inFence && sec == sectionToolInput && isToolBoundary {
				fence = fenceState{}
				inFence = false
			}
			if !inFence {
				switch header {
				case "## Thoughts":
					finalizeTool()
					sec = sectionThoughts
					continue
				case "## Task List":
					finalizeTool()
					sec = sectionTaskList
					continue
				case "## Tool Choice":
					finalizeTool()
					sec = sectionToolChoice
					continue
				case "## Tool Input":
					// Tool Input does not finalize; it continues the
					// current tool assembly started by Tool Choice.
					sec = sectionToolInput
					continue
				default:
					// Any other "## " header terminates the current
					// section, finalizing a pending tool if any.
					finalizeTool()
					sec = sectionNone
					continue
				}
			}
		}

		updateFence(&fence, line)

		switch sec {
		case sectionThoughts:
			thoughts = append(thoughts, line)
		case sectionTaskList:
			if item, ok := parseTaskLine(line); ok {
				taskList = append(taskList, item)
			}
		case sectionToolChoice:
			if curName == "" {
				if name, ok := matchToolName(line); ok {
					curName = name
				}
			}
			// later lines in Tool Choice are ignored
		case sectionToolInput:
			curInputLine = append(curInputLine, line)
		}
	}
	finalizeTool()

	if len(tools) == 0 {
		return nil, &ErrMalformed{Reason: "zero tool calls accumulated"}
	}

	return &ParsedResponse{
		Thoughts: strings.TrimSpace(strings.Join(thoughts, "\n")),
		TaskList: taskList,
		Tools:    tools,
		Raw:      canonical,
	}, nil
}

// lastIndexLineStart returns the byte offset of the last line that begins
// with marker exactly (allowing trailing content on the same line), or -1.
func lastIndexLineStart(s, marker string) int {
	lines := strings.Split(s, "\n")
	offset := 0
	last := -1
	for _, line := range lines {
		if strings.HasPrefix(line, marker) {
			last = offset
		}
		offset += len(line) + 1
	}
	return last
}

var headerRe = regexp.MustCompile(`^(## [^\n]*)$`)

func matchHeader(line string) (string, bool) {
	trimmed := strings.TrimRight(line, "\r")
	if !strings.HasPrefix(trimmed, "## ") {
		return "", false
	}
	// Normalize trailing whitespace but keep the recognized prefixes exact.
	for _, known := range []string{"## Thoughts", "## Task List", "## Tool Choice", "## Tool Input"} {
		if trimmed == known || strings.HasPrefix(trimmed, known+" ") {
			return known, true
		}
	}
	return trimmed, true
}

func matchToolName(line string) (string, bool) {
	name := strings.ToUpper(strings.TrimSpace(line))
	name = strings.Trim(name, "`*_- ")
	if knownTools[name] {
		return name, true
	}
	return "", false
}

var taskLineRe = regexp.MustCompile(`^\s*\[(.)\]\s?(.*)$`)

func parseTaskLine(line string) (TaskItem, bool) {
	m := taskLineRe.FindStringSubmatch(line)
	if m == nil {
		return TaskItem{}, false
	}
	var status TaskStatus
	switch m[1] {
	case "x", "X":
		status = TaskComplete
	case "~":
		status = TaskInProgress
	case " ":
		status = TaskPending
	default:
		return TaskItem{}, false
	}
	return TaskItem{Status: status, Text: strings.TrimSpace(m[2])}, true
}

// updateFence advances fence tracking state for a single (non-header, or
// header-treated-as-content) line.
func updateFence(f *fenceState, line string) {
	trimmed := strings.TrimRight(line, "\r")
	leading := strings.TrimLeft(trimmed, " \t")
	m := fenceLineRe.FindStringSubmatch(leading)
	if m == nil {
		return
	}
	run := m[1]
	rest := strings.TrimSpace(m[2])
	char := run[0]
	length := len(run)

	if !f.open {
		f.open = true
		f.char = char
		f.run = length
		return
	}
	// We are inside a fence: only a *bare* line (no info string) with the
	// same character and run length >= opener's closes it. A shorter or
	// differently-charactered fence line is just content.
	if rest == "" && char == f.char && length >= f.run {
		*f = fenceState{}
	}
}
