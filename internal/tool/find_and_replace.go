package tool

import (
	"fmt"
	"os"
	"strings"

	"github.com/devagent/devagent/internal/parser"
)

// findAndReplaceInFile implements FIND_AND_REPLACE_IN_FILE (spec.md §4.3):
// a literal, non-regex, all-occurrences substitution.
func findAndReplaceInFile(tc *Context, input string) string {
	rel := parser.ExtractPath(input)
	path := resolvePath(tc.WorkingDir, rel)

	find, replace, ok := parser.ExtractFindReplace(input)
	if !ok {
		return "ERROR: FIND_AND_REPLACE_IN_FILE requires both find and replace code blocks"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Sprintf("File not found: %s", rel)
		}
		return fmt.Sprintf("ERROR: reading file: %s", err)
	}
	original := string(data)

	count := strings.Count(original, find)
	if count == 0 {
		return fmt.Sprintf("Pattern not found in file: %s", rel)
	}

	updated := strings.ReplaceAll(original, find, replace)
	if err := os.WriteFile(path, []byte(updated), 0644); err != nil {
		return fmt.Sprintf("ERROR: writing file: %s", err)
	}
	return fmt.Sprintf("Replaced %d occurrence(s) in: %s", count, rel)
}
