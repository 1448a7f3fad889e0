// Package tool implements the agent's tool dispatcher: a pure switch over
// the eleven recognized tool names, routing to filesystem, command, and
// background-process operations (spec.md §4.3).
package tool

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/devagent/devagent/internal/bgproc"
	"github.com/devagent/devagent/internal/config"
)

// AskUserFunc prompts the user on the TTY and returns their response.
type AskUserFunc func(prompt string) (string, error)

// Context carries everything the dispatcher needs to execute a single
// tool call.
type Context struct {
	WorkingDir string
	Automated  bool
	Config     *config.Config
	Background *bgproc.Registry
	AskUser    AskUserFunc
}

// Dispatch routes a parsed tool call to its implementation and returns the
// literal result string the loop will embed as "[<TOOL>]: <result>".
func Dispatch(ctx context.Context, tc *Context, name, input string) string {
	switch name {
	case "LIST_DIRECTORY":
		return listDirectory(tc, input)
	case "READ_FILE":
		return readFile(tc, input)
	case "WRITE_FILE":
		return writeFile(tc, input)
	case "FIND_AND_REPLACE_IN_FILE":
		return findAndReplaceInFile(tc, input)
	case "COMMAND":
		return runCommand(tc, input)
	case "UPDATE_TASK_LIST":
		return "Task list updated"
	case "ASK_USER":
		return askUser(tc, input)
	case "DONE":
		return doneSummary(input)
	case "READ_BACKGROUND_PROCESS":
		return tc.Background.Read(strings.TrimSpace(input))
	case "LIST_BACKGROUND_PROCESSES":
		return tc.Background.List()
	case "KILL_BACKGROUND_PROCESS":
		return tc.Background.Kill(strings.TrimSpace(input))
	default:
		return fmt.Sprintf("ERROR: Unknown tool: %s", name)
	}
}

// resolvePath joins a tool-supplied path against the working directory,
// unless it is already absolute. Spec.md §4.3: "/" or "<letter>:" prefixes
// count as absolute.
func resolvePath(workingDir, p string) string {
	if isAbsolutePath(p) {
		return p
	}
	return filepath.Join(workingDir, p)
}

func isAbsolutePath(p string) bool {
	if strings.HasPrefix(p, "/") {
		return true
	}
	if len(p) >= 2 && p[1] == ':' && isLetter(p[0]) {
		return true
	}
	return false
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// doneSummary implements the DONE tool for completeness. The agent loop
// intercepts DONE before it reaches Dispatch in the normal path.
func doneSummary(input string) string {
	summary := strings.TrimSpace(input)
	if summary == "" {
		return "No summary provided"
	}
	return summary
}
