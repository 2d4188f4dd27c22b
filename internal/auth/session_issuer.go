// Package auth turns verified identity tokens into browser session cookies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/pkg/logger"
)

const (
	// DefaultCookieName is the cookie carrying the session artifact.
	DefaultCookieName = "session"
	// SessionLifetime is the default validity window of an issued session.
	SessionLifetime = 14 * 24 * time.Hour
)

// ErrSessionIssuanceFailed wraps provider failures while minting a session.
var ErrSessionIssuanceFailed = errors.New("auth: session issuance failed")

// SessionConfig controls cookie attributes.
type SessionConfig struct {
	CookieName string
	// TTL defaults to SessionLifetime.
	TTL time.Duration
	// DevMode relaxes the cookie to Secure=false and SameSite=Lax for plain-HTTP local work.
	DevMode bool
}

// SessionCookie is the artifact plus the transport attributes it must be set with.
type SessionCookie struct {
	Name     string
	Value    string
	MaxAge   time.Duration
	HTTPOnly bool
	Secure   bool
	SameSite http.SameSite
	Path     string
}

// MaxAgeMillis reports the cookie lifetime in milliseconds.
func (c SessionCookie) MaxAgeMillis() int64 {
	return c.MaxAge.Milliseconds()
}

// HTTPCookie renders the cookie for http.SetCookie.
func (c SessionCookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{
		Name:     c.Name,
		Value:    c.Value,
		Path:     c.Path,
		MaxAge:   int(c.MaxAge / time.Second),
		HttpOnly: c.HTTPOnly,
		Secure:   c.Secure,
		SameSite: c.SameSite,
	}
}

// SessionIssuer mints and revokes session cookies through an identity.Provider.
type SessionIssuer struct {
	provider identity.Provider
	cfg      SessionConfig
	log      *zap.Logger
}

// NewSessionIssuer constructs a SessionIssuer.
func NewSessionIssuer(provider identity.Provider, cfg SessionConfig) (*SessionIssuer, error) {
	if provider == nil {
		return nil, errors.New("session issuer: identity provider is required")
	}
	if strings.TrimSpace(cfg.CookieName) == "" {
		cfg.CookieName = DefaultCookieName
	}
	if cfg.TTL == 0 {
		cfg.TTL = SessionLifetime
	}
	if cfg.TTL < identity.MinSessionTTL || cfg.TTL > identity.MaxSessionTTL {
		return nil, fmt.Errorf("session issuer: ttl %s outside [%s, %s]", cfg.TTL, identity.MinSessionTTL, identity.MaxSessionTTL)
	}
	return &SessionIssuer{
		provider: provider,
		cfg:      cfg,
		log:      logger.WithModule("auth"),
	}, nil
}

// CookieName returns the configured session cookie name.
func (s *SessionIssuer) CookieName() string {
	return s.cfg.CookieName
}

// Issue exchanges a bearer ID token for a session cookie valid for the configured TTL.
func (s *SessionIssuer) Issue(ctx context.Context, idToken string) (SessionCookie, error) {
	value, err := s.provider.CreateSessionCookie(ctx, idToken, s.cfg.TTL)
	if err != nil {
		return SessionCookie{}, fmt.Errorf("%w: %w", ErrSessionIssuanceFailed, err)
	}
	return s.cookie(value, s.cfg.TTL), nil
}

// IssueForIdentity mints a session cookie for an identity proven without the provider.
func (s *SessionIssuer) IssueForIdentity(ctx context.Context, id identity.Identity) (SessionCookie, error) {
	value, err := s.provider.CreateSessionForIdentity(ctx, id, s.cfg.TTL)
	if err != nil {
		return SessionCookie{}, fmt.Errorf("%w: %w", ErrSessionIssuanceFailed, err)
	}
	return s.cookie(value, s.cfg.TTL), nil
}

// Revoke decodes the presented session and revokes every session for its subject.
// Failures are returned for reporting; callers clear the cookie regardless.
func (s *SessionIssuer) Revoke(ctx context.Context, cookie string) error {
	id, err := s.provider.VerifySessionCookie(ctx, cookie, false)
	if err != nil {
		return fmt.Errorf("session issuer: decode session: %w", err)
	}
	if err := s.provider.RevokeRefreshTokens(ctx, id.Subject); err != nil {
		return fmt.Errorf("session issuer: revoke %s: %w", id.Subject, err)
	}
	return nil
}

// Clear returns an expired cookie that removes the session from the browser.
func (s *SessionIssuer) Clear() *http.Cookie {
	c := s.cookie("", 0).HTTPCookie()
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}

func (s *SessionIssuer) cookie(value string, maxAge time.Duration) SessionCookie {
	sameSite := http.SameSiteNoneMode
	if s.cfg.DevMode {
		sameSite = http.SameSiteLaxMode
	}
	return SessionCookie{
		Name:     s.cfg.CookieName,
		Value:    value,
		MaxAge:   maxAge,
		HTTPOnly: true,
		Secure:   !s.cfg.DevMode,
		SameSite: sameSite,
		Path:     "/",
	}
}
