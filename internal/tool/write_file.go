package tool

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/devagent/devagent/internal/parser"
)

// writeFile implements WRITE_FILE (spec.md §4.3): requires a code block in
// the input, creates parent directories recursively, then writes.
func writeFile(tc *Context, input string) string {
	rel := parser.ExtractPath(input)
	path := resolvePath(tc.WorkingDir, rel)

	content, ok := parser.ExtractCodeBlock(input)
	if !ok {
		return "ERROR: No code block found for WRITE_FILE"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Sprintf("ERROR: creating parent directories: %s", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Sprintf("ERROR: writing file: %s", err)
	}
	return fmt.Sprintf("File written: %s", rel)
}
