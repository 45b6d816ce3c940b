package session

import (
	"github.com/PickFolio/pickfolio-go/internal/domain"
)

// Store holds the current credential pair. It is pure data access: no
// network calls against the identity service, no token validation.
// Implementations must be safe for concurrent use; the refresh coordinator
// is the only writer once a session exists.
type Store interface {
	// Get returns the stored pair, or false when no session exists.
	Get() (domain.CredentialPair, bool)
	// Set replaces the stored pair wholesale.
	Set(pair domain.CredentialPair) error
	// Clear removes the stored pair. Clearing an empty store is a no-op.
	Clear() error
}
