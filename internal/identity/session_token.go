package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims are embedded in session artifacts.
type SessionClaims struct {
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"email_verified,omitempty"`
	Name          string `json:"name,omitempty"`
	Picture       string `json:"picture,omitempty"`
	AuthTime      int64  `json:"auth_time,omitempty"`
	jwt.RegisteredClaims
}

// SessionSignerConfig bundles the configuration required to build a SessionSigner.
type SessionSignerConfig struct {
	Secret   string
	Issuer   string
	Audience string
	Clock    func() time.Time
}

// SessionSigner issues and validates HS256 session artifacts.
type SessionSigner struct {
	secret   []byte
	issuer   string
	audience string
	now      func() time.Time
}

// NewSessionSigner constructs a SessionSigner.
func NewSessionSigner(cfg SessionSignerConfig) (*SessionSigner, error) {
	if len(cfg.Secret) < 32 {
		return nil, errors.New("session signer: secret must be at least 32 bytes")
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &SessionSigner{
		secret:   []byte(cfg.Secret),
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		now:      now,
	}, nil
}

// Sign mints a session artifact for the identity that expires after ttl.
func (s *SessionSigner) Sign(id Identity, ttl time.Duration) (string, error) {
	if id.Subject == "" {
		return "", errors.New("session signer: subject is required")
	}

	now := s.now()
	claims := &SessionClaims{
		Email:         id.Email,
		EmailVerified: id.EmailVerified,
		Name:          id.Name,
		Picture:       id.Picture,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if s.audience != "" {
		claims.Audience = jwt.ClaimStrings{s.audience}
	}
	if !id.AuthTime.IsZero() {
		claims.AuthTime = id.AuthTime.Unix()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("session signer: sign: %w", err)
	}
	return signed, nil
}

// Parse validates a session artifact and returns its claims.
func (s *SessionSigner) Parse(token string) (*SessionClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	if s.audience != "" {
		opts = append(opts, jwt.WithAudience(s.audience))
	}

	var claims SessionClaims
	if _, err := jwt.NewParser(opts...).ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("session signer: parse: %w", err)
	}
	if claims.Subject == "" {
		return nil, errors.New("session signer: missing subject claim")
	}
	return &claims, nil
}

func (c *SessionClaims) identity() *Identity {
	id := &Identity{
		Subject:       c.Subject,
		Email:         c.Email,
		EmailVerified: c.EmailVerified,
		Name:          c.Name,
		Picture:       c.Picture,
	}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.AuthTime > 0 {
		id.AuthTime = time.Unix(c.AuthTime, 0)
	}
	return id
}
