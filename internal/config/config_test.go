package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

// TestSaveConfigPermissions verifies Save writes with 0600 permissions.
func TestSaveConfigPermissions(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)

	cfg := &Config{Model: "gpt-4o", MaxContextTokens: 4096}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	path, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat failed: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("expected 0600 permissions, got %04o", perm)
	}
}

// TestSaveConfigRoundTrip writes config with Save and reads the JSON back.
func TestSaveConfigRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)

	cfg := &Config{
		APIUrl:           "https://api.example.com/v1",
		Model:            "gpt-4o",
		MaxContextTokens: 8192,
		CommandTimeout:   45,
	}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}
	path, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	var got Config
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if got.Model != cfg.Model {
		t.Errorf("Model: want %q, got %q", cfg.Model, got.Model)
	}
	if got.MaxContextTokens != cfg.MaxContextTokens {
		t.Errorf("MaxContextTokens: want %d, got %d", cfg.MaxContextTokens, got.MaxContextTokens)
	}
	if got.CommandTimeout != cfg.CommandTimeout {
		t.Errorf("CommandTimeout: want %d, got %d", cfg.CommandTimeout, got.CommandTimeout)
	}
}

// TestSaveConfigCreatesDirectory ensures Save creates missing parent dirs.
func TestSaveConfigCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", filepath.Join(dir, "nested", "deep"))
	t.Setenv("HOME", filepath.Join(dir, "nested", "deep"))

	cfg := &Config{Model: "gpt-4o"}
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save with nested dirs: %v", err)
	}

	path, err := Path()
	if err != nil {
		t.Fatalf("Path: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("expected config file to exist after Save")
	}
}

// TestDirNonEmpty returns a non-empty path.
func TestDirNonEmpty(t *testing.T) {
	dir, err := Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if dir == "" {
		t.Error("Dir should return a non-empty path")
	}
}

// TestLoadAppliesDefaults checks that an absent config file still yields
// every documented default (spec.md §3: "defaults fill missing fields").
func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)
	t.Setenv("DEVAGENT_API_URL", "")
	t.Setenv("DEVAGENT_API_KEY", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.MaxContextTokens != DefaultMaxContextTokens {
		t.Errorf("MaxContextTokens: want %d, got %d", DefaultMaxContextTokens, cfg.MaxContextTokens)
	}
	if cfg.CommandTimeout != DefaultCommandTimeout {
		t.Errorf("CommandTimeout: want %d, got %d", DefaultCommandTimeout, cfg.CommandTimeout)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries: want %d, got %d", DefaultMaxRetries, cfg.MaxRetries)
	}
	if cfg.MaxRetriesAutomated != DefaultMaxRetriesAutomated {
		t.Errorf("MaxRetriesAutomated: want %d, got %d", DefaultMaxRetriesAutomated, cfg.MaxRetriesAutomated)
	}
	if cfg.MaxLoops != DefaultMaxLoops {
		t.Errorf("MaxLoops: want %d, got %d", DefaultMaxLoops, cfg.MaxLoops)
	}
	if cfg.SessionRetentionDays != DefaultSessionRetentionDays {
		t.Errorf("SessionRetentionDays: want %d, got %d", DefaultSessionRetentionDays, cfg.SessionRetentionDays)
	}
}

// TestLoadPartialFilePreservesDefaults ensures a config.json that sets only
// some fields still gets defaults for the rest.
func TestLoadPartialFilePreservesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)

	confDir, err := Dir()
	if err != nil {
		t.Fatalf("Dir: %v", err)
	}
	if err := os.MkdirAll(confDir, 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	partial := []byte(`{"model": "custom-model", "max_context_tokens": 2048}`)
	if err := os.WriteFile(filepath.Join(confDir, "config.json"), partial, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxContextTokens != 2048 {
		t.Errorf("MaxContextTokens: want 2048, got %d", cfg.MaxContextTokens)
	}
	if cfg.MaxRetries != DefaultMaxRetries {
		t.Errorf("MaxRetries should default: want %d, got %d", DefaultMaxRetries, cfg.MaxRetries)
	}
}

// TestMaxRetriesFor checks the automated/interactive retry cap split (spec.md §4.2).
func TestMaxRetriesFor(t *testing.T) {
	cfg := &Config{MaxRetries: 3, MaxRetriesAutomated: 10}

	if got := cfg.MaxRetriesFor(false); got != 3 {
		t.Errorf("interactive: want 3, got %d", got)
	}
	if got := cfg.MaxRetriesFor(true); got != 10 {
		t.Errorf("automated: want 10, got %d", got)
	}
}

// TestExists reports false when no config file is present.
func TestExists(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APPDATA", dir)
	t.Setenv("HOME", dir)

	if Exists() {
		t.Error("Exists should be false for a fresh temp dir")
	}
}
