package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenClaims is the subset of access-token claims the client reads. The
// token is treated as an opaque signed structure: the signature is the
// issuing service's responsibility and is never verified here.
type TokenClaims struct {
	Subject   string
	ExpiresAt time.Time
}

// IntrospectAccessToken parses the access token without verifying its
// signature and extracts the subject and expiry claims.
func IntrospectAccessToken(tokenString string) (*TokenClaims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errors.New("error extracting claims")
	}

	sub, err := claims.GetSubject()
	if err != nil {
		return nil, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, errors.New("token has no expiry claim")
	}

	return &TokenClaims{Subject: sub, ExpiresAt: exp.Time}, nil
}

// Expired reports whether the token's expiry claim has passed. This is an
// optimization for skipping a doomed request; a 401 from the service
// remains the authoritative signal, which sidesteps clock-skew issues.
func (c *TokenClaims) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
