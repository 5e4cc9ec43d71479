package session

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Roles a marketplace identity can hold. Every conversation pairs exactly
// one customer with one seller.
const (
	RoleCustomer = "customer"
	RoleSeller   = "seller"
)

// Identity is the authenticated marketplace user the engine acts as.
type Identity struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Role   string `toml:"role"`
	Market string `toml:"market,omitempty"` // seller stall label, empty for customers
}

// Credentials pairs an identity with its bearer token, as issued by the
// auth surface (out of scope here) and stored in the profile directory.
type Credentials struct {
	Identity Identity `toml:"identity"`
	Token    string   `toml:"token"`
}

// ErrNotAuthenticated is returned when no credential file exists for a profile.
var ErrNotAuthenticated = errors.New("no credentials for profile; log in first")

// LoadCredentials reads the credential file for a profile.
func LoadCredentials(path string) (*Credentials, error) {
	var creds Credentials
	if _, err := os.Stat(path); err != nil {
		return nil, ErrNotAuthenticated
	}
	if _, err := toml.DecodeFile(path, &creds); err != nil {
		return nil, err
	}
	if creds.Token == "" || creds.Identity.ID == "" {
		return nil, ErrNotAuthenticated
	}
	return &creds, nil
}

// SaveCredentials writes the credential file with 0600 permissions.
func SaveCredentials(path string, creds *Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(creds)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ClearCredentials removes the credential file (logout).
func ClearCredentials(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
