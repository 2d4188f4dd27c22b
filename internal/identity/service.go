package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/feelize/platform/pkg/logger"
)

// Options wires the collaborators of a Service.
type Options struct {
	Verifier    IDTokenVerifier
	Signer      *SessionSigner
	Revocations RevocationStore
	// MaxAuthAge rejects session creation from ID tokens whose sign-in is older. Zero disables the check.
	MaxAuthAge time.Duration
	Clock      func() time.Time
}

// Service is the Provider backed by an OIDC verifier and locally signed sessions.
type Service struct {
	verifier    IDTokenVerifier
	signer      *SessionSigner
	revocations RevocationStore
	maxAuthAge  time.Duration
	now         func() time.Time
	log         *zap.Logger
}

var _ Provider = (*Service)(nil)

// NewService constructs the identity Service.
func NewService(opts Options) (*Service, error) {
	if opts.Verifier == nil {
		return nil, errors.New("identity service: verifier is required")
	}
	if opts.Signer == nil {
		return nil, errors.New("identity service: signer is required")
	}
	if opts.Revocations == nil {
		return nil, errors.New("identity service: revocation store is required")
	}

	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Service{
		verifier:    opts.Verifier,
		signer:      opts.Signer,
		revocations: opts.Revocations,
		maxAuthAge:  opts.MaxAuthAge,
		now:         now,
		log:         logger.WithModule("identity"),
	}, nil
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
	AuthTime      int64  `json:"auth_time"`
}

// VerifyIDToken validates a bearer ID token issued by the external provider.
func (s *Service) VerifyIDToken(ctx context.Context, raw string) (*Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	token, err := s.verifier.Verify(ensureContext(ctx), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("%w: decode claims: %v", ErrInvalidToken, err)
	}

	id := &Identity{
		Subject:       token.Subject,
		Email:         strings.ToLower(strings.TrimSpace(claims.Email)),
		EmailVerified: claims.EmailVerified,
		Name:          claims.Name,
		Picture:       claims.Picture,
		IssuedAt:      token.IssuedAt,
	}
	if claims.AuthTime > 0 {
		id.AuthTime = time.Unix(claims.AuthTime, 0)
	}
	return id, nil
}

// CreateSessionCookie exchanges a fresh ID token for a session artifact valid for ttl.
func (s *Service) CreateSessionCookie(ctx context.Context, idToken string, ttl time.Duration) (string, error) {
	id, err := s.VerifyIDToken(ctx, idToken)
	if err != nil {
		return "", err
	}

	if s.maxAuthAge > 0 {
		authTime := id.AuthTime
		if authTime.IsZero() {
			authTime = id.IssuedAt
		}
		if s.now().Sub(authTime) > s.maxAuthAge {
			return "", ErrStaleLogin
		}
	}

	return s.CreateSessionForIdentity(ctx, *id, ttl)
}

// CreateSessionForIdentity mints a session artifact for an already established identity.
func (s *Service) CreateSessionForIdentity(_ context.Context, id Identity, ttl time.Duration) (string, error) {
	if ttl < MinSessionTTL || ttl > MaxSessionTTL {
		return "", fmt.Errorf("identity service: session ttl %s outside [%s, %s]", ttl, MinSessionTTL, MaxSessionTTL)
	}
	if id.AuthTime.IsZero() {
		id.AuthTime = s.now()
	}
	return s.signer.Sign(id, ttl)
}

// VerifySessionCookie validates a session artifact and optionally checks it against the
// subject's revocation floor.
func (s *Service) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*Identity, error) {
	cookie = strings.TrimSpace(cookie)
	if cookie == "" {
		return nil, ErrUnauthenticated
	}

	claims, err := s.signer.Parse(cookie)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	id := claims.identity()

	if checkRevoked {
		validAfter, ok, err := s.revocations.ValidAfter(ensureContext(ctx), id.Subject)
		if err != nil {
			return nil, err
		}
		if ok && id.IssuedAt.Unix() < validAfter.Unix() {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrRevoked)
		}
	}

	return id, nil
}

// RevokeRefreshTokens invalidates every session minted for the subject up to now.
func (s *Service) RevokeRefreshTokens(ctx context.Context, subject string) error {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return errors.New("identity service: subject is required")
	}
	if err := s.revocations.Revoke(ensureContext(ctx), subject, s.now()); err != nil {
		return err
	}
	s.log.Info("revoked sessions", zap.String("subject", subject))
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
