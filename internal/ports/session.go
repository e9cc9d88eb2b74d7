package ports

// Package ports defines interfaces (hexagonal ports) for session-related
// behavior. Implementations live in internal/adapters; orchestration in
// internal/service.

import (
	"context"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
)

// ErrNoCredential is returned by a CredentialStore when no credential is
// persisted under the given key.
type noCredentialError struct{}

func (noCredentialError) Error() string { return "no credential stored" }

var ErrNoCredential error = noCredentialError{}

// CredentialStore persists the browser's credential record across page
// reloads. It performs no validation and no expiry checks; the session
// manager owns that policy and is the only writer.
type CredentialStore interface {
	Save(ctx context.Context, key string, cred domainauth.Credential) error
	Load(ctx context.Context, key string) (domainauth.Credential, error)
	Clear(ctx context.Context, key string) error
}

// IdentityVerifier turns a bare identifier into an authoritative,
// role-bearing user record, or fails with a coded error: not_found,
// server_error, or network_unavailable (see internal/errors).
type IdentityVerifier interface {
	Verify(ctx context.Context, identifier string) (domainauth.VerifiedUser, error)
}

// CredentialsAuthenticator checks a sign-in password against the school
// accounts API and returns the account identifier on success.
type CredentialsAuthenticator interface {
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// SessionAuditor records session lifecycle events. Recording is best effort;
// the session manager never fails a resolution over an audit write.
type SessionAuditor interface {
	Record(ctx context.Context, ev domainauth.SessionEvent) error
}

// BeginInput carries inputs for initiating an SSO sign-in flow.
type BeginInput struct {
	RedirectURL string
}

// ExchangeInput groups parameters for the SSO code exchange.
type ExchangeInput struct {
	Code  string
	State string
	Nonce string
}

// SSOIdentity is the identity asserted by the district IdP after a
// successful exchange. Only the identifier feeds the session manager; the
// directory remains the sole source of truth for role and profile.
type SSOIdentity struct {
	Identifier string
	FirstName  string
	LastName   string
}

// SSOProvider initiates and completes a staff SSO sign-in against the
// district identity provider.
type SSOProvider interface {
	// Begin starts the flow and returns the provider auth URL, an opaque
	// state, and a nonce.
	Begin(ctx context.Context, in BeginInput) (authURL, state, nonce string, err error)

	// Exchange completes the flow, verifying state and nonce.
	Exchange(ctx context.Context, in ExchangeInput) (SSOIdentity, error)
}
