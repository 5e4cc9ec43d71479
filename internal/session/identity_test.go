package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSaveAndLoadCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")

	creds := &Credentials{
		Identity: Identity{ID: "u-1", Name: "Ana", Role: RoleSeller, Market: "Mercado Central / Box 12"},
		Token:    "bearer-token",
	}
	if err := SaveCredentials(path, creds); err != nil {
		t.Fatalf("SaveCredentials() error = %v", err)
	}

	loaded, err := LoadCredentials(path)
	if err != nil {
		t.Fatalf("LoadCredentials() error = %v", err)
	}
	if loaded.Token != "bearer-token" || loaded.Identity.ID != "u-1" {
		t.Errorf("loaded = %+v, want round-trip", loaded)
	}
	if loaded.Identity.Market != "Mercado Central / Box 12" {
		t.Errorf("Market = %q, want stall label preserved", loaded.Identity.Market)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}

func TestLoadCredentialsMissing(t *testing.T) {
	_, err := LoadCredentials(filepath.Join(t.TempDir(), "credentials.toml"))
	if !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("error = %v, want ErrNotAuthenticated", err)
	}
}

func TestLoadCredentialsIncomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := SaveCredentials(path, &Credentials{Token: "t"}); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadCredentials(path); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("error = %v, want ErrNotAuthenticated for missing identity", err)
	}
}

func TestClearCredentials(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.toml")
	if err := SaveCredentials(path, &Credentials{Identity: Identity{ID: "u-1"}, Token: "t"}); err != nil {
		t.Fatal(err)
	}
	if err := ClearCredentials(path); err != nil {
		t.Fatal(err)
	}
	// Idempotent on missing file.
	if err := ClearCredentials(path); err != nil {
		t.Errorf("second ClearCredentials() error = %v, want nil", err)
	}
}
