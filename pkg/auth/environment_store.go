package auth

import (
	"os"
	"time"
)

// EnvironmentStore implements CredentialStore using environment variables.
// Read-only, meant for headless deployments where no keychain exists.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(account *Account) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables
func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	envUser := os.Getenv("IGNETWORK_USERNAME")
	password := os.Getenv("IGNETWORK_PASSWORD")
	userAgent := os.Getenv("IGNETWORK_USER_AGENT")

	if password == "" {
		return nil, ErrCredentialsNotFound
	}

	if username == "" {
		username = envUser
	}
	if username == "" {
		return nil, ErrCredentialsNotFound
	}
	if envUser != "" && username != envUser {
		return nil, ErrCredentialsNotFound
	}

	return &Account{
		Username:     username,
		Password:     password,
		UserAgent:    userAgent,
		LastModified: time.Now(),
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(username string) error {
	return ErrStoreUnavailable
}

// Exists checks if environment credentials exist
func (e *EnvironmentStore) Exists(username string) bool {
	if os.Getenv("IGNETWORK_PASSWORD") == "" {
		return false
	}
	envUser := os.Getenv("IGNETWORK_USERNAME")
	return username == "" || envUser == "" || username == envUser
}
