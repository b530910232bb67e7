package auth

import (
	"os"
	"strconv"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// Read-only; useful for CI and headless machines without a keychain.
type EnvironmentStore struct{}

// NewEnvironmentStore creates an environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(name string) (*Credentials, error) {
	apiID, _ := strconv.Atoi(os.Getenv("TGRAB_API_ID"))
	apiHash := os.Getenv("TGRAB_API_HASH")

	if apiID <= 0 || apiHash == "" {
		return nil, ErrCredentialsNotFound
	}
	if name == "" {
		name = DefaultName
	}

	return &Credentials{
		Name:         name,
		APIID:        apiID,
		APIHash:      apiHash,
		Session:      os.Getenv("TGRAB_SESSION"),
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(name string) bool {
	apiID, _ := strconv.Atoi(os.Getenv("TGRAB_API_ID"))
	return apiID > 0 && os.Getenv("TGRAB_API_HASH") != ""
}
