package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/devagent/devagent/internal/audit"
	"github.com/devagent/devagent/internal/bgproc"
	"github.com/devagent/devagent/internal/config"
	"github.com/devagent/devagent/internal/llm"
	"github.com/devagent/devagent/internal/session"
	"github.com/devagent/devagent/internal/tool"
)

// scriptedStreamer returns one canned response per call, in order, and
// counts the calls made; the messages it is given are ignored.
type scriptedStreamer struct {
	responses []string
	calls     int
}

func (s *scriptedStreamer) Stream(_ context.Context, _ []llm.Message, _ llm.StreamOptions) (string, error) {
	if s.calls >= len(s.responses) {
		return "", fmt.Errorf("scriptedStreamer: no more scripted responses (call %d)", s.calls+1)
	}
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}

func newTestDeps(t *testing.T, mainResponses, auditResponses []string) (Deps, *session.Session) {
	t.Helper()
	workDir := t.TempDir()

	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	cfg := &config.Config{
		MaxContextTokens:     131072,
		CommandTimeout:       5,
		MaxRetries:           3,
		MaxRetriesAutomated:  3,
		MaxLoops:             50,
		SessionRetentionDays: 30,
	}

	tc := &tool.Context{
		WorkingDir: workDir,
		Automated:  true,
		Config:     cfg,
		Background: bgproc.NewRegistry(),
	}

	deps := Deps{
		Client: &scriptedStreamer{responses: mainResponses},
		Store:  store,
		Config: cfg,
		Tools:  tc,
		AuditDeps: audit.Deps{
			Client:       &scriptedStreamer{responses: auditResponses},
			Tools:        tc,
			SystemPrompt: AuditSystemPrompt,
		},
	}

	sess := session.New(workDir, "write hello.txt")
	return deps, sess
}

const writeHelloResponse = "# Agent Response\n\n## Thoughts\nWriting the file.\n\n## Task List\n[~] write hello.txt\n\n## Tool Choice\nWRITE_FILE\n\n## Tool Input\n\"hello.txt\"\n```\nhi\n```"

const doneResponse = "# Agent Response\n\n## Thoughts\nDone.\n\n## Task List\n[x] write hello.txt\n\n## Tool Choice\nDONE\n\n## Tool Input\nWrote hello.txt with the requested content."

const auditPassResponse = "# Agent Response\n\n## Thoughts\nLooks correct.\n\n## Tool Choice\nDONE\n\n## Tool Input\nOverall: PASS"

const auditFailResponse = "# Agent Response\n\n## Thoughts\nSomething is missing.\n\n## Tool Choice\nDONE\n\n## Tool Input\nOverall: FAIL\nFeedback: hello.txt is missing a trailing newline"

func TestRunSingleTurnWriteThenDone(t *testing.T) {
	deps, sess := newTestDeps(t,
		[]string{writeHelloResponse, doneResponse},
		[]string{auditPassResponse},
	)

	if err := Run(context.Background(), deps, sess, true); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(sess.WorkingDirectory, "hello.txt"))
	if err != nil {
		t.Fatalf("reading hello.txt: %v", err)
	}
	if string(data) != "hi" {
		t.Fatalf("hello.txt content = %q, want %q", string(data), "hi")
	}

	if len(sess.History) < 4 {
		t.Fatalf("history length = %d, want >= 4", len(sess.History))
	}
	if sess.History[0].Role != session.RoleSystem {
		t.Fatalf("history[0].Role = %q, want system", sess.History[0].Role)
	}
}

func TestRunAuditFailThenRetryThenPass(t *testing.T) {
	correctiveResponse := "# Agent Response\n\n## Thoughts\nFixing it.\n\n## Tool Choice\nWRITE_FILE\n\n## Tool Input\n\"hello.txt\"\n```\nhi\n```"

	deps, sess := newTestDeps(t,
		[]string{writeHelloResponse, doneResponse, correctiveResponse, doneResponse},
		[]string{auditFailResponse, auditPassResponse},
	)

	if err := Run(context.Background(), deps, sess, true); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	found := false
	for _, m := range sess.History {
		if strings.Contains(m.Content, "AUDIT FAILED") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an AUDIT FAILED message in history, got: %+v", sess.History)
	}
}

func TestRunMalformedResponseRetriesThenFatal(t *testing.T) {
	deps, sess := newTestDeps(t,
		[]string{"garbage with no marker", "garbage again", "still garbage"},
		nil,
	)

	err := Run(context.Background(), deps, sess, true)
	if err == nil {
		t.Fatalf("expected a fatal error, got nil")
	}
	fatalErr, ok := err.(*FatalError)
	if !ok {
		t.Fatalf("expected *FatalError, got %T: %v", err, err)
	}
	if fatalErr.Kind != FatalMalformedExhausted {
		t.Fatalf("Kind = %v, want %v", fatalErr.Kind, FatalMalformedExhausted)
	}
}

func TestRunDoneTerminatesToolExecutionWithinResponse(t *testing.T) {
	doneThenWrite := "# Agent Response\n\n## Thoughts\nDone already.\n\n## Tool Choice\nDONE\n\n## Tool Input\nAll set.\n\n## Tool Choice\nWRITE_FILE\n\n## Tool Input\n\"should-not-exist.txt\"\n```\nnope\n```"

	deps, sess := newTestDeps(t,
		[]string{doneThenWrite},
		[]string{auditPassResponse},
	)

	if err := Run(context.Background(), deps, sess, true); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if _, err := os.Stat(filepath.Join(sess.WorkingDirectory, "should-not-exist.txt")); err == nil {
		t.Fatalf("expected should-not-exist.txt to not be created, DONE must terminate tool execution")
	}
}
