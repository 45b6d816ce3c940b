package auth

import (
	"github.com/PickFolio/pickfolio-go/internal/session"
)

// Session is the logical identity of the connected user. The subject is
// recomputed from the live access token on every call, never cached: after
// a refresh the store holds a new token and the next call sees it.
type Session struct {
	SubjectID   string
	DeviceLabel string
}

// CurrentSession derives the session from the stored access token.
// Returns ErrUnauthenticated when no credential pair exists.
func CurrentSession(store session.Store, deviceLabel string) (Session, error) {
	pair, ok := store.Get()
	if !ok {
		return Session{}, ErrUnauthenticated
	}

	claims, err := IntrospectAccessToken(pair.AccessToken)
	if err != nil {
		return Session{}, err
	}

	return Session{SubjectID: claims.Subject, DeviceLabel: deviceLabel}, nil
}
