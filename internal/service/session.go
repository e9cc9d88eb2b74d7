package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
	"github.com/edusuite/portal/internal/ports"
)

const (
	defaultCredentialTTL   = 24 * time.Hour
	defaultRefreshInterval = 15 * time.Minute
	defaultRetryAttempts   = 2
	defaultRetryBaseDelay  = 250 * time.Millisecond

	// DefaultSignInPath and DefaultSignUpPath are the redirect targets used
	// when no override is configured. Both accept a redirect=<original-path>
	// query parameter honored after a successful sign-in.
	DefaultSignInPath = "/accounts/signin"
	DefaultSignUpPath = "/accounts/signup"

	// DefaultSSOPath and DefaultSignOutPath round out the account boundary.
	// The SSO path covers both the start route and its callback.
	DefaultSSOPath     = "/accounts/sso"
	DefaultSignOutPath = "/accounts/signout"
)

// SessionManagerOptions groups dependencies and policy for SessionManager.
type SessionManagerOptions struct {
	Store    ports.CredentialStore
	Verifier ports.IdentityVerifier
	Auditor  ports.SessionAuditor // optional

	// Mode is the portal's operating mode, fixed for the deployment.
	Mode domainauth.Mode

	// CredentialTTL is how long a persisted credential stays usable without a
	// fresh sign-in. Default 24h.
	CredentialTTL time.Duration

	// RefreshInterval bounds how long a verified identity is trusted before
	// the directory is consulted again. Default 15m.
	RefreshInterval time.Duration

	// PublicRoutes are path patterns reachable while unauthenticated. A
	// pattern matches its exact path and everything below it.
	PublicRoutes []string

	SignInPath string
	SignUpPath string

	// RetryAttempts is how many extra verification attempts are made on
	// transient failure within one resolution. Default 2.
	RetryAttempts uint64
	// RetryBaseDelay seeds the exponential backoff between attempts. Default 250ms.
	RetryBaseDelay time.Duration

	Logger *slog.Logger
	Now    func() time.Time
}

// SessionManager is the session authentication orchestrator. On every page
// load and navigation it reconciles the locally persisted credential against
// a server-verified identity, enforces the role guard, and decides the
// redirect policy. It is constructed once per process and is the exclusive
// writer of the credential store and the identity cache.
type SessionManager struct {
	store    ports.CredentialStore
	verifier ports.IdentityVerifier
	auditor  ports.SessionAuditor

	mode         domainauth.Mode
	ttl          time.Duration
	publicRoutes []string
	signInPath   string
	signUpPath   string

	// accountRoutes is the sign-in boundary itself: sign-in, sign-up, SSO
	// start/callback, sign-out. Always reachable, otherwise a signed-out
	// browser could never get back in.
	accountRoutes []string

	retryAttempts  uint64
	retryBaseDelay time.Duration

	// flights dedupes concurrent verification for the same identifier; the
	// cache carries the result forward so re-entrant resolutions never issue
	// a second request.
	flights singleflight.Group
	cache   *identityCache

	logger *slog.Logger
	now    func() time.Time
}

// Resolution is what the session manager exposes to the rendering layer:
// the session state, the verified user when authenticated, an optional
// redirect, and an optional human-readable notice. The rendering layer never
// writes back.
type Resolution struct {
	Phase      domainauth.Phase
	User       *domainauth.VerifiedUser
	RedirectTo string
	Notice     string
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(opts SessionManagerOptions) (*SessionManager, error) {
	if opts.Store == nil {
		return nil, errors.New("session manager: credential store is required")
	}
	if opts.Verifier == nil {
		return nil, errors.New("session manager: identity verifier is required")
	}
	if opts.Mode != domainauth.ModeStudent && opts.Mode != domainauth.ModeStaff {
		return nil, fmt.Errorf("session manager: invalid operating mode %q", opts.Mode)
	}

	ttl := opts.CredentialTTL
	if ttl <= 0 {
		ttl = defaultCredentialTTL
	}
	refresh := opts.RefreshInterval
	if refresh <= 0 {
		refresh = defaultRefreshInterval
	}
	signIn := opts.SignInPath
	if signIn == "" {
		signIn = DefaultSignInPath
	}
	signUp := opts.SignUpPath
	if signUp == "" {
		signUp = DefaultSignUpPath
	}
	retryAttempts := opts.RetryAttempts
	if retryAttempts == 0 {
		retryAttempts = defaultRetryAttempts
	}
	retryBase := opts.RetryBaseDelay
	if retryBase <= 0 {
		retryBase = defaultRetryBaseDelay
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &SessionManager{
		store:          opts.Store,
		verifier:       opts.Verifier,
		auditor:        opts.Auditor,
		mode:           opts.Mode,
		ttl:            ttl,
		publicRoutes:   append([]string(nil), opts.PublicRoutes...),
		signInPath:     signIn,
		signUpPath:     signUp,
		accountRoutes:  []string{signIn, signUp, DefaultSSOPath, DefaultSignOutPath},
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBase,
		cache:          newIdentityCache(refresh),
		logger:         logger,
		now:            now,
	}, nil
}

// Mode returns the portal's operating mode.
func (m *SessionManager) Mode() domainauth.Mode { return m.mode }

// SignInPath returns the configured sign-in route.
func (m *SessionManager) SignInPath() string { return m.signInPath }

// SignUpPath returns the configured sign-up route.
func (m *SessionManager) SignUpPath() string { return m.signUpPath }

// Resolve runs the startup/navigation algorithm for one request:
//
//  1. No credential → Unauthenticated; redirect to sign-in with the original
//     path preserved, unless the route is public. Zero network calls.
//  2. Credential older than the TTL → expired: local state cleared, same
//     redirect rule, verification never invoked.
//  3. Fresh credential → at most one in-flight verification per identifier;
//     on success the role guard runs, the identity cache and the stored
//     timestamp are refreshed, and the state becomes Authenticated.
//  4. NotFound → local state cleared, redirect to sign-up (the credential no
//     longer corresponds to any account).
//  5. Transient failure → nothing cleared, state stays Loading with a notice
//     so a later navigation retries.
func (m *SessionManager) Resolve(ctx context.Context, credentialKey, path string) Resolution {
	cred, err := m.store.Load(ctx, credentialKey)
	if err != nil {
		if errors.Is(err, ports.ErrNoCredential) {
			return m.unauthenticated(path, "")
		}
		// The store itself failed; keep the credential and let a later
		// navigation retry, same as a transient verification failure.
		m.logger.WarnContext(ctx, "credential store read failed", "error", err)
		return Resolution{Phase: domainauth.PhaseLoading, Notice: apperrors.UserMessage(err)}
	}

	if cred.Age(m.now()) >= m.ttl {
		m.clearLocal(ctx, credentialKey, cred.Identifier)
		m.audit(ctx, domainauth.EventExpired, cred.Identifier, path)
		return m.unauthenticated(path, "Your session has expired. Please sign in again.")
	}

	user, err := m.verifiedUser(ctx, cred.Identifier)
	if err != nil {
		return m.resolveFailure(ctx, credentialKey, cred, path, err)
	}

	// Re-persist with a refreshed timestamp; savedAt is only ever set to
	// "now" at a successful verification or sign-in.
	refreshed := domainauth.Credential{Identifier: cred.Identifier, SavedAt: m.now()}
	if saveErr := m.store.Save(ctx, credentialKey, refreshed); saveErr != nil {
		m.logger.WarnContext(ctx, "credential refresh failed", "error", saveErr)
	}

	return Resolution{Phase: domainauth.PhaseAuthenticated, User: &user}
}

// SignIn establishes a session for an identifier that was just authenticated
// by the sign-in flow (password or SSO). The identifier still goes through
// verification and the role guard; the directory remains the sole source of
// truth for identity and role.
func (m *SessionManager) SignIn(ctx context.Context, credentialKey, identifier string) (domainauth.VerifiedUser, error) {
	if credentialKey == "" {
		return domainauth.VerifiedUser{}, apperrors.Internal("credential key is required")
	}
	if identifier == "" {
		return domainauth.VerifiedUser{}, apperrors.ValidationField("identifier", "Identifier is required.")
	}

	user, err := m.verifiedUser(ctx, identifier)
	if err != nil {
		return domainauth.VerifiedUser{}, err
	}

	cred := domainauth.Credential{Identifier: identifier, SavedAt: m.now()}
	if saveErr := m.store.Save(ctx, credentialKey, cred); saveErr != nil {
		return domainauth.VerifiedUser{}, fmt.Errorf("save credential: %w", saveErr)
	}

	m.audit(ctx, domainauth.EventSignIn, identifier, "")
	return user, nil
}

// SignOut destroys the local session: the persisted credential and the cached
// identity. It is idempotent.
func (m *SessionManager) SignOut(ctx context.Context, credentialKey string) error {
	cred, err := m.store.Load(ctx, credentialKey)
	if err != nil && !errors.Is(err, ports.ErrNoCredential) {
		return fmt.Errorf("load credential: %w", err)
	}

	if clearErr := m.store.Clear(ctx, credentialKey); clearErr != nil {
		return fmt.Errorf("clear credential: %w", clearErr)
	}
	if cred.Identifier != "" {
		m.cache.drop(cred.Identifier)
		m.audit(ctx, domainauth.EventSignOut, cred.Identifier, "")
	}
	return nil
}

// Whitelisted reports whether a path is reachable without an authenticated
// session. A pattern matches its exact path and everything below it. The
// account boundary is whitelisted unconditionally, on top of any configured
// public routes.
func (m *SessionManager) Whitelisted(path string) bool {
	routePath := path
	if i := strings.IndexByte(routePath, '?'); i >= 0 {
		routePath = routePath[:i]
	}
	for _, pattern := range m.publicRoutes {
		if matchRoute(pattern, routePath) {
			return true
		}
	}
	for _, pattern := range m.accountRoutes {
		if matchRoute(pattern, routePath) {
			return true
		}
	}
	return false
}

// verifiedUser returns the authoritative user record for an identifier,
// issuing at most one verification request no matter how many resolutions
// run concurrently or back to back. The role guard and the cache write both
// happen inside the shared flight, strictly before any caller can observe an
// authenticated state.
func (m *SessionManager) verifiedUser(ctx context.Context, identifier string) (domainauth.VerifiedUser, error) {
	if user, ok := m.cache.get(identifier, m.now()); ok {
		return user, nil
	}

	ch := m.flights.DoChan(identifier, func() (any, error) {
		// The flight outlives any single caller so a torn-down request
		// cannot kill verification for the others.
		fctx := context.WithoutCancel(ctx)

		user, err := m.verifyWithRetry(fctx, identifier)
		if err != nil {
			return nil, err
		}

		if decision := domainauth.CheckRole(user, m.mode); !decision.Match {
			return nil, apperrors.RoleMismatch(m.mismatchNotice(decision))
		}

		m.cache.put(identifier, user, m.now())
		m.audit(fctx, domainauth.EventRefresh, identifier, "")
		return user, nil
	})

	select {
	case <-ctx.Done():
		// Caller torn down mid-verification: discard the in-flight result
		// rather than applying it to a stale context. The flight still
		// completes and fills the cache exactly once.
		return domainauth.VerifiedUser{}, apperrors.Wrap(ctx.Err(), apperrors.ErrCodeCanceled, "Navigation canceled.")
	case res := <-ch:
		if res.Err != nil {
			return domainauth.VerifiedUser{}, res.Err
		}
		user, ok := res.Val.(domainauth.VerifiedUser)
		if !ok {
			return domainauth.VerifiedUser{}, apperrors.Internal("unexpected verification result type")
		}
		return user, nil
	}
}

// verifyWithRetry retries transient verification failures with bounded
// exponential backoff, so a blip does not leave the session stuck while a
// real outage still surfaces promptly.
func (m *SessionManager) verifyWithRetry(ctx context.Context, identifier string) (domainauth.VerifiedUser, error) {
	var user domainauth.VerifiedUser
	backoff := retry.WithMaxRetries(m.retryAttempts, retry.NewExponential(m.retryBaseDelay))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var verr error
		user, verr = m.verifier.Verify(ctx, identifier)
		if verr != nil && apperrors.IsTransient(verr) {
			return retry.RetryableError(verr)
		}
		return verr
	})
	if err != nil {
		return domainauth.VerifiedUser{}, err
	}
	return user, nil
}

func (m *SessionManager) resolveFailure(
	ctx context.Context,
	credentialKey string,
	cred domainauth.Credential,
	path string,
	err error,
) Resolution {
	switch {
	case apperrors.IsRoleMismatch(err):
		m.clearLocal(ctx, credentialKey, cred.Identifier)
		m.audit(ctx, domainauth.EventMismatch, cred.Identifier, path)
		return m.unauthenticated(path, apperrors.UserMessage(err))

	case apperrors.IsNotFound(err):
		// The credential no longer corresponds to any account: clear it and
		// send the browser to sign-up, not sign-in.
		m.clearLocal(ctx, credentialKey, cred.Identifier)
		m.audit(ctx, domainauth.EventNotFound, cred.Identifier, path)
		res := Resolution{
			Phase:  domainauth.PhaseUnauthenticated,
			Notice: apperrors.UserMessage(err),
		}
		if !m.Whitelisted(path) {
			res.RedirectTo = redirectURL(m.signUpPath, path)
		}
		return res

	default:
		// Transient (or canceled): nothing is cleared so an otherwise valid
		// session survives the outage; a later navigation retries.
		m.logger.WarnContext(ctx, "identity verification failed",
			"identifier", cred.Identifier,
			"code", string(apperrors.GetCode(err)),
			"error", err)
		return Resolution{Phase: domainauth.PhaseLoading, Notice: apperrors.UserMessage(err)}
	}
}

func (m *SessionManager) unauthenticated(path, notice string) Resolution {
	res := Resolution{Phase: domainauth.PhaseUnauthenticated, Notice: notice}
	if !m.Whitelisted(path) {
		res.RedirectTo = redirectURL(m.signInPath, path)
	}
	return res
}

// clearLocal destroys the persisted credential and the cached identity.
// Both operations are idempotent so repeated clears are harmless.
func (m *SessionManager) clearLocal(ctx context.Context, credentialKey, identifier string) {
	if err := m.store.Clear(ctx, credentialKey); err != nil {
		m.logger.WarnContext(ctx, "credential clear failed", "error", err)
	}
	if identifier != "" {
		m.cache.drop(identifier)
	}
}

func (m *SessionManager) mismatchNotice(d domainauth.GuardDecision) string {
	switch m.mode {
	case domainauth.ModeStaff:
		return "This portal is for staff accounts. Please sign in on the student portal."
	case domainauth.ModeStudent:
		return "This portal is for student accounts. Please sign in on the staff portal."
	default:
		return fmt.Sprintf("This account belongs to the %s portal.", d.WantMode)
	}
}

func (m *SessionManager) audit(ctx context.Context, kind domainauth.EventKind, identifier, path string) {
	if m.auditor == nil {
		return
	}
	ev := domainauth.SessionEvent{
		ID:         uuid.NewString(),
		Kind:       kind,
		Identifier: identifier,
		Mode:       m.mode,
		Path:       path,
		OccurredAt: m.now(),
	}
	// Audit writes never fail a resolution; detach from request cancellation.
	if err := m.auditor.Record(context.WithoutCancel(ctx), ev); err != nil {
		m.logger.WarnContext(ctx, "session audit write failed", "kind", string(kind), "error", err)
	}
}

func redirectURL(target, originalPath string) string {
	if originalPath == "" {
		return target
	}
	return target + "?redirect=" + url.QueryEscape(originalPath)
}

func matchRoute(pattern, path string) bool {
	pattern = strings.TrimSuffix(pattern, "/")
	if pattern == "" {
		return path == "/"
	}
	return path == pattern || strings.HasPrefix(path, pattern+"/")
}
