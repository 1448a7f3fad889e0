// Package agent implements the agent loop (spec.md §4.2): the single
// state machine that streams model turns, parses them, executes tool
// sequences, and drives compression and the auditor.
package agent

import "fmt"

// FatalKind enumerates the unrecoverable error categories spec.md §7
// enumerates; each maps to CLI exit code 1.
type FatalKind string

const (
	FatalMalformedExhausted FatalKind = "malformed_response_exhausted"
	FatalTransportExhausted FatalKind = "transport_exhausted"
	FatalLoopCapReached     FatalKind = "loop_cap_reached"
	FatalBadArguments       FatalKind = "bad_arguments"
	FatalMissingSession     FatalKind = "missing_session"
)

// FatalError is a typed, user-facing terminal error. It renders as a
// single line suitable for stderr (spec.md §7: "a single fatal message
// printed to stderr with exit code 1").
type FatalError struct {
	Kind     FatalKind
	Message  string
	Original error
}

func (e *FatalError) Error() string {
	if e.Original != nil {
		return fmt.Sprintf("%s: %s", e.Message, e.Original)
	}
	return e.Message
}

func (e *FatalError) Unwrap() error {
	return e.Original
}

func newFatal(kind FatalKind, message string, original error) *FatalError {
	return &FatalError{Kind: kind, Message: message, Original: original}
}
