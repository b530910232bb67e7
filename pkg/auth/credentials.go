// Package auth stores the message-source API credentials. The system keychain
// is preferred; environment variables act as a read-only fallback.
package auth

import (
	"errors"
	"fmt"
	"time"
)

// Credentials holds one API credential set for the message-source session
type Credentials struct {
	Name         string    `json:"name"`
	APIID        int       `json:"api_id"`
	APIHash      string    `json:"api_hash"`
	Session      string    `json:"session,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Store saves a credential set
	Store(creds *Credentials) error

	// Retrieve gets the credential set for a given name
	Retrieve(name string) (*Credentials, error)

	// Delete removes the credential set for a given name
	Delete(name string) error

	// Exists checks if a credential set exists for a name
	Exists(name string) bool
}

// DefaultName is the credential-set name used when none is given
const DefaultName = "default"

// Manager handles credential storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a credential manager with the available backends
func NewManager() *Manager {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}
	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}
}

// Store saves credentials using the first store that accepts them
func (m *Manager) Store(creds *Credentials) error {
	if creds.APIID <= 0 {
		return errors.New("api id is required")
	}
	if creds.APIHash == "" {
		return errors.New("api hash is required")
	}
	if creds.Name == "" {
		creds.Name = DefaultName
	}
	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(creds); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets credentials from the first store that has them
func (m *Manager) Retrieve(name string) (*Credentials, error) {
	if name == "" {
		name = DefaultName
	}
	for _, store := range m.stores {
		if creds, err := store.Retrieve(name); err == nil && creds != nil {
			return creds, nil
		}
	}
	return nil, ErrCredentialsNotFound
}

// Delete removes credentials from every store that holds them
func (m *Manager) Delete(name string) error {
	if name == "" {
		name = DefaultName
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return ErrCredentialsNotFound
	}
	return nil
}

// Sanitize returns a copy with the API hash masked for display
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}
	return &Credentials{
		Name:         creds.Name,
		APIID:        creds.APIID,
		APIHash:      maskString(creds.APIHash),
		Session:      creds.Session,
		LastModified: creds.LastModified,
	}
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
