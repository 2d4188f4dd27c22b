package app

import (
	"time"

	"github.com/feelize/platform/internal/auth"
	"github.com/feelize/platform/internal/identity"
	"github.com/feelize/platform/internal/services"
)

const defaultSessionIssuer = "feelize"

// VerifierConfig converts IdentityConfig into ID token verifier parameters.
func (c IdentityConfig) VerifierConfig() identity.VerifierConfig {
	return identity.VerifierConfig{
		ProjectID: c.ProjectID,
		Issuer:    c.Issuer,
		JWKSURL:   c.JWKSURL,
	}
}

// SessionSignerConfig converts AuthConfig into session signer parameters. Sessions are
// audience-bound to the identity project.
func (c AuthConfig) SessionSignerConfig(projectID string) (identity.SessionSignerConfig, error) {
	secret, err := DecodeKey(c.Session.Secret)
	if err != nil {
		return identity.SessionSignerConfig{}, err
	}

	issuer := c.Session.Issuer
	if issuer == "" {
		issuer = defaultSessionIssuer
	}

	return identity.SessionSignerConfig{
		Secret:   string(secret),
		Issuer:   issuer,
		Audience: projectID,
	}, nil
}

// SessionIssuerConfig converts AuthConfig into cookie parameters.
func (c AuthConfig) SessionIssuerConfig(devMode bool) auth.SessionConfig {
	ttl := c.Session.TTL
	if ttl <= 0 {
		ttl = auth.SessionLifetime
	}
	return auth.SessionConfig{
		CookieName: c.Session.CookieName,
		TTL:        ttl,
		DevMode:    devMode,
	}
}

// DirectoryOptions converts the passcode policy into user directory options.
func (c AuthConfig) DirectoryOptions() []services.DirectoryOption {
	ttl := c.Passcode.TTL
	if ttl <= 0 {
		ttl = services.DefaultPasscodeTTL
	}
	length := c.Passcode.Length
	if length <= 0 {
		length = services.DefaultPasscodeDigits
	}
	return []services.DirectoryOption{
		services.WithPasscodePolicy(ttl, length),
		services.WithPasscodeAttemptLimit(c.Passcode.MaxAttempts),
	}
}

// MaxAuthAgeOrDefault returns the permitted sign-in age for session creation.
func (c AuthConfig) MaxAuthAgeOrDefault() time.Duration {
	if c.MaxAuthAge <= 0 {
		return 5 * time.Minute
	}
	return c.MaxAuthAge
}
