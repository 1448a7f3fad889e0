package parser

import (
	"regexp"
	"strings"
)

// ExtractPath returns the tool target path from raw tool input: the first
// "quoted" span on the first line if present, else the first line trimmed.
func ExtractPath(input string) string {
	lines := strings.SplitN(input, "\n", 2)
	first := lines[0]
	if m := quotedRe.FindStringSubmatch(first); m != nil {
		return m[1]
	}
	return strings.TrimSpace(first)
}

var quotedRe = regexp.MustCompile(`"([^"]*)"`)

var fenceOpenRe = regexp.MustCompile("(?m)^[ \t]*(`{3,}|~{3,})([^\n]*)$")

// ExtractCodeBlock finds the first fence and scans to the *last* bare-fence
// line of the same character with run length >= the opener's, returning the
// content between (trailing whitespace stripped). Using the last matching
// close, rather than the first, keeps nested shorter/equal fences inside a
// bigger info-stringed wrapper intact.
func ExtractCodeBlock(input string) (string, bool) {
	lines := strings.Split(input, "\n")

	openIdx := -1
	var openChar byte
	var openRun int
	for i, line := range lines {
		leading := strings.TrimLeft(strings.TrimRight(line, "\r"), " \t")
		m := fenceLineRe.FindStringSubmatch(leading)
		if m == nil {
			continue
		}
		openIdx = i
		openChar = m[1][0]
		openRun = len(m[1])
		break
	}
	if openIdx < 0 {
		return "", false
	}

	closeIdx := -1
	for i := len(lines) - 1; i > openIdx; i-- {
		leading := strings.TrimLeft(strings.TrimRight(lines[i], "\r"), " \t")
		m := fenceLineRe.FindStringSubmatch(leading)
		if m == nil {
			continue
		}
		char := m[1][0]
		run := len(m[1])
		rest := strings.TrimSpace(m[2])
		if rest == "" && char == openChar && run >= openRun {
			closeIdx = i
			break
		}
	}
	if closeIdx < 0 {
		return "", false
	}

	content := strings.Join(lines[openIdx+1:closeIdx], "\n")
	return strings.TrimRight(content, " \t\r\n"), true
}

// ExtractFindReplace extracts the literal "find" and "replace" fenced blocks
// required by FIND_AND_REPLACE_IN_FILE. Both must be present.
func ExtractFindReplace(input string) (find, replace string, ok bool) {
	find, fOK := extractNamedBlock(input, "find")
	replace, rOK := extractNamedBlock(input, "replace")
	if !fOK || !rOK {
		return "", "", false
	}
	return find, replace, true
}

func extractNamedBlock(input, info string) (string, bool) {
	// Non-greedy match of a 3-backtick block whose info string is exactly
	// the requested name, case-insensitive on the info token.
	pattern := "(?is)```[ \t]*" + regexp.QuoteMeta(info) + "[ \t]*\r?\n(.*?)\r?\n?```"
	re := regexp.MustCompile(pattern)
	m := re.FindStringSubmatch(input)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// ExtractCommandInput returns the extracted code block if one is present,
// else the raw input verbatim.
func ExtractCommandInput(input string) string {
	if block, ok := ExtractCodeBlock(input); ok {
		return block
	}
	return input
}
