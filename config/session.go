package config

import "time"

// SessionConfig contains session policy configuration.
type SessionConfig struct {
	// CredentialTTL is how long a persisted credential stays usable without
	// a fresh sign-in.
	CredentialTTL time.Duration `env:"CREDENTIAL_TTL" envDefault:"24h"`

	// RefreshInterval bounds how long a verified identity is trusted before
	// the account directory is consulted again.
	RefreshInterval time.Duration `env:"REFRESH_INTERVAL" envDefault:"15m"`

	// RetryAttempts is how many extra verification attempts are made on a
	// transient directory failure within one resolution.
	RetryAttempts uint64 `env:"RETRY_ATTEMPTS" envDefault:"2"`

	// RetryBaseDelay seeds the exponential backoff between attempts.
	RetryBaseDelay time.Duration `env:"RETRY_BASE_DELAY" envDefault:"250ms"`

	// PublicRoutes lists path patterns reachable while unauthenticated.
	// A pattern matches its exact path and everything below it.
	PublicRoutes []string `env:"PUBLIC_ROUTES" envDefault:"/healthz;/api/session" envSeparator:";"`

	// SignUpURL is the external registrar URL linked from the sign-up page.
	SignUpURL string `env:"SIGNUP_URL" envDefault:""`

	// AuditRetention is how long session audit events are kept.
	AuditRetention time.Duration `env:"AUDIT_RETENTION" envDefault:"2160h"` // 90 days
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.CredentialTTL <= 0 {
		s.CredentialTTL = 24 * time.Hour
	}
	if s.RefreshInterval <= 0 {
		s.RefreshInterval = 15 * time.Minute
	}
	// The identity cache must not outlive the credential itself.
	if s.RefreshInterval > s.CredentialTTL {
		s.RefreshInterval = s.CredentialTTL
	}
	if s.RetryBaseDelay <= 0 {
		s.RetryBaseDelay = 250 * time.Millisecond
	}
	if s.AuditRetention <= 0 {
		s.AuditRetention = 90 * 24 * time.Hour
	}
}
