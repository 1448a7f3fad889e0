package tool

import (
	"time"

	"github.com/devagent/devagent/internal/parser"
)

// runCommand implements COMMAND (spec.md §4.4), delegating the actual
// process lifecycle (launch, timeout-to-background promotion, output
// capture) to the background process registry.
func runCommand(tc *Context, input string) string {
	command := parser.ExtractCommandInput(input)
	timeout := time.Duration(tc.Config.CommandTimeout) * time.Second

	result, err := tc.Background.Run(tc.WorkingDir, command, timeout)
	if err != nil {
		return "Error: " + err.Error()
	}
	return result
}
