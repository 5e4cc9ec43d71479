package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := &Config{DefaultProfile: "work", ServerURL: "https://staging.feiralink.com"}
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.DefaultProfile != "work" {
		t.Errorf("DefaultProfile = %q, want %q", loaded.DefaultProfile, "work")
	}
	if loaded.Server() != "https://staging.feiralink.com" {
		t.Errorf("Server() = %q, want staging origin", loaded.Server())
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestDefaults(t *testing.T) {
	var cfg *Config
	if cfg.Server() != DefaultServerURL {
		t.Errorf("Server() = %q, want default", cfg.Server())
	}
	if cfg.TypingIdle() != DefaultTypingIdle {
		t.Errorf("TypingIdle() = %v, want default", cfg.TypingIdle())
	}

	cfg = &Config{TypingIdleMs: 250}
	if cfg.TypingIdle() != 250*time.Millisecond {
		t.Errorf("TypingIdle() = %v, want 250ms", cfg.TypingIdle())
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, &Config{DefaultProfile: "main"}); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
