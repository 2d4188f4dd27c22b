package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
)

// DefaultJWKSURL publishes the signing keys for Google secure-token ID tokens.
const DefaultJWKSURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"

// IDTokenVerifier validates a raw ID token. *oidc.IDTokenVerifier satisfies it.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawIDToken string) (*oidc.IDToken, error)
}

// VerifierConfig configures OIDC ID token verification.
type VerifierConfig struct {
	ProjectID  string
	Issuer     string
	JWKSURL    string
	HTTPClient *http.Client
	Now        func() time.Time
}

// NewOIDCVerifier builds a verifier that checks issuer, audience (the project id), expiry and
// signature against the remote key set. Keys are fetched lazily on first use.
func NewOIDCVerifier(ctx context.Context, cfg VerifierConfig) (*oidc.IDTokenVerifier, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("identity verifier: project id is required")
	}

	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		issuer = "https://securetoken.google.com/" + projectID
	}
	jwksURL := strings.TrimSpace(cfg.JWKSURL)
	if jwksURL == "" {
		jwksURL = DefaultJWKSURL
	}

	if cfg.HTTPClient != nil {
		ctx = oidc.ClientContext(ctx, cfg.HTTPClient)
	}
	keySet := oidc.NewRemoteKeySet(ctx, jwksURL)

	return oidc.NewVerifier(issuer, keySet, &oidc.Config{
		ClientID: projectID,
		Now:      cfg.Now,
	}), nil
}
