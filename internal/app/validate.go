package app

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/feelize/platform/internal/identity"
)

const minSessionSecretBytes = 32

// Validate reports every configuration problem that would prevent the server from starting.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config is nil")
	}

	var errs error

	if strings.TrimSpace(c.Identity.ProjectID) == "" {
		errs = multierr.Append(errs, fmt.Errorf("identity.project_id is required"))
	}
	if key := strings.TrimSpace(c.Identity.PrivateKey); key != "" {
		if _, err := ParsePrivateKey(key); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("identity.private_key: %w", err))
		}
	}

	if n := KeyByteLength(c.Auth.Session.Secret); n < minSessionSecretBytes {
		errs = multierr.Append(errs, fmt.Errorf("auth.session.secret must decode to at least %d bytes, got %d", minSessionSecretBytes, n))
	}
	if ttl := c.Auth.Session.TTL; ttl != 0 && (ttl < identity.MinSessionTTL || ttl > identity.MaxSessionTTL) {
		errs = multierr.Append(errs, fmt.Errorf("auth.session.ttl must be between %s and %s", identity.MinSessionTTL, identity.MaxSessionTTL))
	}
	if r := c.Maintenance.RevocationRetention; r != 0 && r < c.Auth.Session.TTL {
		errs = multierr.Append(errs, fmt.Errorf("maintenance.revocation_retention must not be shorter than auth.session.ttl"))
	}
	if l := c.Auth.Passcode.Length; l != 0 && l != 6 && l != 8 {
		errs = multierr.Append(errs, fmt.Errorf("auth.passcode.length must be 6 or 8"))
	}

	if c.LLM.MaxTokens <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("llm.max_tokens must be positive"))
	}

	for key, spec := range map[string]string{
		"maintenance.passcode_cleanup":   c.Maintenance.PasscodeCleanup,
		"maintenance.revocation_cleanup": c.Maintenance.RevocationCleanup,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	return errs
}

// ParsePrivateKey parses a PEM service-account key. Escaped newlines, as found in environment
// variables, are expanded first.
func ParsePrivateKey(value string) (any, error) {
	pem := strings.ReplaceAll(strings.TrimSpace(value), `\n`, "\n")
	return jwt.ParseRSAPrivateKeyFromPEM([]byte(pem))
}
