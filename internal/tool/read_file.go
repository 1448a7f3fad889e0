package tool

import (
	"fmt"
	"os"

	"github.com/devagent/devagent/internal/parser"
)

// readFile implements READ_FILE (spec.md §4.3).
func readFile(tc *Context, input string) string {
	rel := parser.ExtractPath(input)
	path := resolvePath(tc.WorkingDir, rel)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("File not found: %s", rel)
		}
		return fmt.Sprintf("Error reading file: %s", err)
	}
	return string(data)
}
