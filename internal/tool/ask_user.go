package tool

import "strings"

// askUser implements ASK_USER (spec.md §4.3): disabled in automated mode,
// otherwise prompts on the TTY via the injected AskUserFunc.
func askUser(tc *Context, input string) string {
	if tc.Automated {
		return "ERROR: ASK_USER is disabled in automated mode (-p)"
	}

	response, err := tc.AskUser(strings.TrimSpace(input))
	if err != nil {
		return "ERROR: " + err.Error()
	}
	if strings.TrimSpace(response) == "" {
		return "(no response)"
	}
	return response
}
