package app

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feelize/platform/internal/identity"
)

func TestLoadConfigFromFile(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "debug", cfg.Server.LogLevel)
	require.Equal(t, []string{"https://app.feelize.test", "https://admin.feelize.test"}, cfg.Server.ClientOrigin)
	require.Equal(t, 50, cfg.Server.RateLimit.Requests)
	require.Equal(t, 30*time.Second, cfg.Server.RateLimit.Window)

	require.Equal(t, "postgres", cfg.Database.Driver)
	require.Equal(t, "db.example.com", cfg.Database.Postgres.Host)
	require.Equal(t, 5433, cfg.Database.Postgres.Port)

	require.Equal(t, "feelize-test", cfg.Identity.ProjectID)
	require.Equal(t, 72*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, "feelize_session", cfg.Auth.Session.CookieName)
	require.Equal(t, 5*time.Minute, cfg.Auth.Passcode.TTL)
	require.Equal(t, 8, cfg.Auth.Passcode.Length)
	require.Equal(t, 2*time.Minute, cfg.Auth.MaxAuthAge)
	require.True(t, cfg.Auth.RevokeOnBan)

	require.Equal(t, "gmail", cfg.Email.Service)
	require.True(t, cfg.Email.SMTP.Enabled)
	require.Equal(t, 15*time.Second, cfg.Email.SMTP.Timeout)

	require.Equal(t, "gemini-1.5-pro", cfg.LLM.Model)
	require.Equal(t, 4096, cfg.LLM.MaxTokens)
	require.Equal(t, "whsec", cfg.Webhooks.BookingSecret)
	require.Equal(t, "*/10 * * * *", cfg.Maintenance.PasscodeCleanup)
	require.Equal(t, "@daily", cfg.Maintenance.RevocationCleanup)
	require.Equal(t, []string{"owner@feelize.test"}, cfg.Seed.AdminEmails)

	require.NoError(t, cfg.Validate())
}

func TestLoadConfigDefaultsAndEnv(t *testing.T) {
	t.Setenv("FEELIZE_IDENTITY_PROJECT_ID", "env-project")
	t.Setenv("FEELIZE_SERVER_CLIENT_ORIGIN", "https://a.test,https://b.test")
	t.Setenv("FEELIZE_AUTH_SESSION_TTL", "24h")

	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, 8000, cfg.Server.Port)
	require.Equal(t, "sqlite", cfg.Database.Driver)
	require.Equal(t, "env-project", cfg.Identity.ProjectID)
	require.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.Server.ClientOrigin)
	require.Equal(t, 24*time.Hour, cfg.Auth.Session.TTL)
	require.Equal(t, 10*time.Minute, cfg.Auth.Passcode.TTL)
	require.Equal(t, "@every 30m", cfg.Maintenance.PasscodeCleanup)
	require.Equal(t, 5, cfg.Auth.Passcode.MaxAttempts)
	require.Equal(t, 2048, cfg.LLM.MaxTokens)
}

func validConfig() *Config {
	return &Config{
		Identity: IdentityConfig{ProjectID: "feelize-test"},
		Auth: AuthConfig{
			Session: SessionSettings{Secret: strings.Repeat("k", 48), TTL: 24 * time.Hour},
		},
		LLM: LLMConfig{MaxTokens: 1},
	}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Identity.ProjectID = ""
	cfg.Identity.PrivateKey = "not a pem"
	cfg.Auth.Session.Secret = "short"
	cfg.Auth.Session.TTL = time.Minute
	cfg.Auth.Passcode.Length = 7
	cfg.LLM.MaxTokens = 0
	cfg.Maintenance.PasscodeCleanup = "every now and then"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	for _, want := range []string{
		"identity.project_id",
		"identity.private_key",
		"auth.session.secret",
		"auth.session.ttl",
		"auth.passcode.length",
		"llm.max_tokens",
		"maintenance.passcode_cleanup",
	} {
		require.Contains(t, msg, want)
	}
}

func TestAuthConfigAdapters(t *testing.T) {
	cfg := AuthConfig{
		Session: SessionSettings{
			Secret:     strings.Repeat("ab", 32),
			TTL:        time.Hour,
			CookieName: "feelize_session",
		},
		Passcode: PasscodeSettings{TTL: 3 * time.Minute, Length: 8},
	}

	signer, err := cfg.SessionSignerConfig("feelize-test")
	require.NoError(t, err)
	require.Len(t, signer.Secret, 32)
	require.Equal(t, defaultSessionIssuer, signer.Issuer)
	require.Equal(t, "feelize-test", signer.Audience)

	issuer := cfg.SessionIssuerConfig(true)
	require.Equal(t, time.Hour, issuer.TTL)
	require.Equal(t, "feelize_session", issuer.CookieName)
	require.True(t, issuer.DevMode)

	require.Len(t, cfg.DirectoryOptions(), 2)
	require.Equal(t, 5*time.Minute, cfg.MaxAuthAgeOrDefault())

	_, err = AuthConfig{}.SessionSignerConfig("p")
	require.Error(t, err)
}

func TestIdentityVerifierConfig(t *testing.T) {
	cfg := IdentityConfig{ProjectID: "p", Issuer: "https://issuer.test", JWKSURL: "https://issuer.test/jwks"}
	require.Equal(t, identity.VerifierConfig{
		ProjectID: "p",
		Issuer:    "https://issuer.test",
		JWKSURL:   "https://issuer.test/jwks",
	}, cfg.VerifierConfig())
}

func TestDatabaseConnectionConfig(t *testing.T) {
	cfg := DatabaseConfig{
		Driver:   "postgres",
		Postgres: DBAuthConfig{Host: "db", Port: 5432, Database: "feelize", Username: "u", Password: "p"},
		MySQL:    DBAuthConfig{Host: "other"},
	}
	conn := cfg.ConnectionConfig()
	require.Equal(t, "db", conn.Host)
	require.Equal(t, "feelize", conn.Name)
	require.Equal(t, "u", conn.User)

	sqlite := DatabaseConfig{Driver: "sqlite", Path: "x.db", Postgres: DBAuthConfig{Host: "db"}}.ConnectionConfig()
	require.Empty(t, sqlite.Host)
	require.Equal(t, "x.db", sqlite.Path)
}

func TestEmailSMTPSettings(t *testing.T) {
	cfg := EmailConfig{Service: "gmail", SMTP: SMTPConfig{Enabled: true, From: "a@b.test", Timeout: time.Second}}
	settings := cfg.SMTPSettings()
	require.Equal(t, "gmail", settings.Service)
	require.True(t, settings.Enabled)
	require.Equal(t, "a@b.test", settings.From)
}
