package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the Feelize API.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Email       EmailConfig       `mapstructure:"email"`
	LLM         LLMConfig         `mapstructure:"llm"`
	Webhooks    WebhookConfig     `mapstructure:"webhooks"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Seed        SeedConfig        `mapstructure:"seed"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
	// DevMode relaxes cookie attributes and switches logging to the console encoder.
	DevMode      bool     `mapstructure:"dev_mode"`
	ClientOrigin []string `mapstructure:"client_origin"`
	// DebugErrors includes upstream failure detail in 5xx responses.
	DebugErrors     bool          `mapstructure:"debug_errors"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	RateLimit       RateLimit     `mapstructure:"rate_limit"`
}

// RateLimit caps requests per client IP and route.
type RateLimit struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	DSN             string        `mapstructure:"dsn"`
	Postgres        DBAuthConfig  `mapstructure:"postgres"`
	MySQL           DBAuthConfig  `mapstructure:"mysql"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// IdentityConfig points at the external identity provider whose ID tokens are accepted.
type IdentityConfig struct {
	ProjectID   string `mapstructure:"project_id"`
	Issuer      string `mapstructure:"issuer"`
	JWKSURL     string `mapstructure:"jwks_url"`
	ClientEmail string `mapstructure:"client_email"`
	PrivateKey  string `mapstructure:"private_key"`
}

// AuthConfig captures all authentication-related settings.
type AuthConfig struct {
	Session  SessionSettings  `mapstructure:"session"`
	Passcode PasscodeSettings `mapstructure:"passcode"`
	// MaxAuthAge bounds how old an ID token's sign-in may be when exchanged for a session.
	MaxAuthAge  time.Duration `mapstructure:"max_auth_age"`
	RevokeOnBan bool          `mapstructure:"revoke_on_ban"`
}

// SessionSettings configures the session cookie and its signing.
type SessionSettings struct {
	Secret     string        `mapstructure:"secret"`
	TTL        time.Duration `mapstructure:"ttl"`
	CookieName string        `mapstructure:"cookie_name"`
	Issuer     string        `mapstructure:"issuer"`
}

// PasscodeSettings configures one-time sign-in codes.
type PasscodeSettings struct {
	TTL         time.Duration `mapstructure:"ttl"`
	Length      int           `mapstructure:"length"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	RateLimit   RateLimit     `mapstructure:"rate_limit"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	// Service names a well-known SMTP provider and fills host and port when omitted.
	Service string     `mapstructure:"service"`
	SMTP    SMTPConfig `mapstructure:"smtp"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the report-generation collaborator.
type LLMConfig struct {
	APIKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// WebhookConfig configures inbound webhooks.
type WebhookConfig struct {
	// BookingSecret, when set, requires booking webhooks to carry a valid HMAC signature.
	BookingSecret string `mapstructure:"booking_secret"`
}

// MaintenanceConfig schedules background cleanup jobs (cron syntax).
type MaintenanceConfig struct {
	PasscodeCleanup     string        `mapstructure:"passcode_cleanup"`
	RevocationCleanup   string        `mapstructure:"revocation_cleanup"`
	RevocationRetention time.Duration `mapstructure:"revocation_retention"`
}

// SeedConfig lists data ensured at boot.
type SeedConfig struct {
	AdminEmails []string `mapstructure:"admin_emails"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("FEELIZE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.dev_mode", false)
	v.SetDefault("server.client_origin", "http://localhost:3000")
	v.SetDefault("server.debug_errors", false)
	v.SetDefault("server.shutdown_timeout", "15s")
	v.SetDefault("server.rate_limit.requests", 300)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/feelize.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.log_queries", false)
	for _, driver := range []string{"postgres", "mysql"} {
		v.SetDefault("database."+driver+".enabled", false)
		v.SetDefault("database."+driver+".host", "")
		v.SetDefault("database."+driver+".port", 0)
		v.SetDefault("database."+driver+".database", "")
		v.SetDefault("database."+driver+".username", "")
		v.SetDefault("database."+driver+".password", "")
	}

	v.SetDefault("identity.project_id", "")
	v.SetDefault("identity.issuer", "")
	v.SetDefault("identity.jwks_url", "")
	v.SetDefault("identity.client_email", "")
	v.SetDefault("identity.private_key", "")

	v.SetDefault("auth.session.secret", "")
	v.SetDefault("auth.session.ttl", "336h") // 14 days
	v.SetDefault("auth.session.cookie_name", "session")
	v.SetDefault("auth.session.issuer", "feelize")
	v.SetDefault("auth.passcode.ttl", "10m")
	v.SetDefault("auth.passcode.length", 6)
	v.SetDefault("auth.passcode.max_attempts", 5)
	v.SetDefault("auth.passcode.rate_limit.requests", 5)
	v.SetDefault("auth.passcode.rate_limit.window", "15m")
	v.SetDefault("auth.max_auth_age", "5m")
	v.SetDefault("auth.revoke_on_ban", false)

	v.SetDefault("email.service", "")
	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")

	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.max_tokens", 2048)

	v.SetDefault("webhooks.booking_secret", "")

	v.SetDefault("maintenance.passcode_cleanup", "@every 30m")
	v.SetDefault("maintenance.revocation_cleanup", "@daily")
	v.SetDefault("maintenance.revocation_retention", "336h")

	v.SetDefault("seed.admin_emails", []string{})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
