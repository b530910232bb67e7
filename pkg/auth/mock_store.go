package auth

import "sync"

// MockStore is an in-memory CredentialStore for testing
type MockStore struct {
	mu    sync.Mutex
	creds map[string]*Credentials
	// FailStore makes Store return ErrStoreUnavailable
	FailStore bool
}

// NewMockStore creates an empty in-memory credential store
func NewMockStore() *MockStore {
	return &MockStore{creds: make(map[string]*Credentials)}
}

// Store saves a credential set in memory
func (m *MockStore) Store(creds *Credentials) error {
	if m.FailStore {
		return ErrStoreUnavailable
	}
	if creds == nil || creds.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *creds
	m.creds[creds.Name] = &copied
	return nil
}

// Retrieve gets a credential set from memory
func (m *MockStore) Retrieve(name string) (*Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.creds[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	copied := *creds
	return &copied, nil
}

// Delete removes a credential set from memory
func (m *MockStore) Delete(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.creds, name)
	return nil
}

// Exists checks if a credential set exists in memory
func (m *MockStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.creds[name]
	return ok
}
