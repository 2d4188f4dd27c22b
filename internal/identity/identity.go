// Package identity verifies externally issued ID tokens and mints, verifies and revokes the
// long-lived session artifacts the API hands to browsers.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnauthenticated indicates no credential was presented.
	ErrUnauthenticated = errors.New("identity: no credential presented")
	// ErrInvalidToken indicates a credential failed signature, expiry or audience checks.
	ErrInvalidToken = errors.New("identity: invalid token")
	// ErrRevoked indicates the session was issued before the subject's tokens were revoked.
	// It is always reported wrapped together with ErrInvalidToken.
	ErrRevoked = errors.New("identity: session revoked")
	// ErrStaleLogin indicates the ID token's sign-in is too old to mint a session from.
	ErrStaleLogin = errors.New("identity: recent sign-in required")
)

const (
	// MinSessionTTL and MaxSessionTTL bound the lifetime of a minted session artifact.
	MinSessionTTL = 5 * time.Minute
	MaxSessionTTL = 14 * 24 * time.Hour

	localSubjectPrefix = "local:"
)

// Identity is the verified view of a principal, from an ID token or a session artifact.
type Identity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
	IssuedAt      time.Time
	AuthTime      time.Time
}

// Provider is the identity collaborator consumed by the session issuer and the gate.
type Provider interface {
	VerifyIDToken(ctx context.Context, raw string) (*Identity, error)
	CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error)
	// CreateSessionForIdentity mints a session for an identity established locally,
	// for example by a one-time passcode.
	CreateSessionForIdentity(ctx context.Context, id Identity, ttl time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*Identity, error)
	RevokeRefreshTokens(ctx context.Context, subject string) error
}

// LocalSubject builds the session subject for a user that has no external identity.
func LocalSubject(userID string) string {
	return localSubjectPrefix + userID
}

// ParseLocalSubject returns the user id encoded in a local subject.
func ParseLocalSubject(subject string) (string, bool) {
	if !strings.HasPrefix(subject, localSubjectPrefix) {
		return "", false
	}
	id := strings.TrimPrefix(subject, localSubjectPrefix)
	return id, id != ""
}
