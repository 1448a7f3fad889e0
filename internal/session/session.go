// Package session persists agent sessions as one JSON file per session
// (spec.md §3, §4.9). The file on disk is the single source of truth
// between invocations: every history-mutating operation rewrites it in
// full.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message roles, mirrored from internal/llm.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a session's ordered history.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// TaskStatus enumerates the normalized states of a task list item.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in-progress"
	TaskComplete   TaskStatus = "complete"
)

// TaskItem is one line of the session's task list.
type TaskItem struct {
	Status TaskStatus `json:"status"`
	Text   string     `json:"text"`
}

// Compression is a record of one compaction event (spec.md §4.7).
type Compression struct {
	Timestamp    time.Time `json:"timestamp"`
	TokensBefore int       `json:"tokensBefore"`
	TokensAfter  int       `json:"tokensAfter"`
}

// Session is the persisted unit of agent state (spec.md §3).
type Session struct {
	ID               string        `json:"id"`
	CreatedAt        time.Time     `json:"createdAt"`
	UpdatedAt        time.Time     `json:"updatedAt"`
	WorkingDirectory string        `json:"workingDirectory"`
	OriginalPrompt   string        `json:"originalPrompt"`
	TaskList         []TaskItem    `json:"taskList"`
	History          []Message     `json:"history"`
	TotalTokens      int           `json:"totalTokens"`
	Compressions     []Compression `json:"compressions"`
}

// EnsureSystemPrompt guarantees history[0] is a system message, prepending
// one if missing (spec.md §3 invariant).
func (s *Session) EnsureSystemPrompt(systemPrompt string) {
	if len(s.History) > 0 && s.History[0].Role == RoleSystem {
		return
	}
	s.History = append([]Message{{Role: RoleSystem, Content: systemPrompt}}, s.History...)
}

// AppendHistory appends one or more messages to history.
func (s *Session) AppendHistory(msgs ...Message) {
	s.History = append(s.History, msgs...)
}

// Store manages file-per-session persistence under a base directory,
// plus the directory-to-last-session map (spec.md §3, §4.9).
type Store struct {
	mu      sync.RWMutex
	baseDir string
}

// NewStore opens (creating if necessary) the sessions directory.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("session: creating sessions directory: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

const directoryMapFile = "directory-map.json"

// New creates a fresh session rooted at workingDir with the given prompt.
func New(workingDir, originalPrompt string) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:               uuid.New().String(),
		CreatedAt:        now,
		UpdatedAt:        now,
		WorkingDirectory: workingDir,
		OriginalPrompt:   originalPrompt,
		TaskList:         []TaskItem{},
		History:          []Message{},
		Compressions:     []Compression{},
	}
}

// Save rewrites the session's file in full (spec.md §3 invariant:
// "after any history-mutating operation the file is rewritten in its
// entirety").
func (s *Store) Save(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal: %w", err)
	}
	if err := os.WriteFile(s.path(sess.ID), data, 0644); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	return s.recordDirectory(sess.WorkingDirectory, sess.ID)
}

// Load reads a session by id. A malformed file is treated as a missing
// session, per spec.md §7 ("session file corruption... never crashes the
// process") — it returns (nil, nil) rather than an error.
func (s *Store) Load(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: read: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, nil
	}
	return &sess, nil
}

// List enumerates all sessions, newest-updated first. Malformed session
// files are silently skipped.
func (s *Store) List() ([]*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("session: reading sessions directory: %w", err)
	}

	var sessions []*Session
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") || e.Name() == directoryMapFile {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, e.Name()))
		if err != nil {
			continue
		}
		var sess Session
		if err := json.Unmarshal(data, &sess); err != nil {
			continue
		}
		sessions = append(sessions, &sess)
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// LastForDirectory returns the last session id associated with an absolute
// working directory, or "" if none is recorded.
func (s *Store) LastForDirectory(dir string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, err := s.readDirectoryMap()
	if err != nil {
		return "", err
	}
	return m[dir], nil
}

// recordDirectory updates the directory-to-session map. Callers must hold
// s.mu (Save already does).
func (s *Store) recordDirectory(dir, id string) error {
	m, err := s.readDirectoryMap()
	if err != nil {
		return err
	}
	if m == nil {
		m = make(map[string]string)
	}
	m[dir] = id

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal directory map: %w", err)
	}
	return os.WriteFile(filepath.Join(s.baseDir, directoryMapFile), data, 0644)
}

func (s *Store) readDirectoryMap() (map[string]string, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, directoryMapFile))
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("session: reading directory map: %w", err)
	}
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		// A corrupt map is treated like a corrupt session file: non-fatal.
		return map[string]string{}, nil
	}
	return m, nil
}

// SweepRetention deletes session files whose updatedAt age exceeds
// retentionDays (spec.md §4.9). Run once at CLI start.
func (s *Store) SweepRetention(retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	sessions, err := s.List()
	if err != nil {
		return err
	}

	cutoff := time.Now().UTC().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range sessions {
		if sess.UpdatedAt.Before(cutoff) {
			_ = os.Remove(s.path(sess.ID))
		}
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}
