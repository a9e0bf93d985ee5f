// Package session owns the persisted client session (bearer token and
// cached user profile) shared by every running instance of the client.
package session

import (
	"context"

	"github.com/nhle/todo-client/internal/model"
)

// Storage keys in the shared key-value table.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

// vaultKey is the keyring entry holding the token when a vault is in use.
const vaultKey = "session-token"

// vaultMarker replaces the token in the shared table when the real token
// lives in the vault.
const vaultMarker = "@keyring"

// Store is the single access point for session state. Components never
// read or write the underlying storage directly.
type Store interface {
	// Get returns the current session. A missing session is the zero value.
	Get(ctx context.Context) (model.Session, error)

	// Set persists the session and notifies subscribers.
	Set(ctx context.Context, s model.Session) error

	// Clear removes token and profile and notifies subscribers.
	Clear(ctx context.Context) error

	// Subscribe returns a channel receiving the session after every change,
	// local or made by another instance, and a function that cancels the
	// subscription.
	Subscribe() (<-chan model.Session, func())
}

// TokenSource supplies the bearer token for outgoing requests.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenVault keeps the token outside the shared table, e.g. in the OS
// keyring. credential.Vault implements it.
type TokenVault interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

// sameSession reports whether two sessions carry the same identity.
func sameSession(a, b model.Session) bool {
	if a.Token != b.Token {
		return false
	}
	if (a.User == nil) != (b.User == nil) {
		return false
	}
	if a.User == nil {
		return true
	}
	return *a.User == *b.User
}
