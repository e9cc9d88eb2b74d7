package httpx

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
	"github.com/edusuite/portal/internal/ports"
	"github.com/edusuite/portal/internal/service"
)

// testLogger returns a logger that discards output, keeping test logs quiet.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memStore struct {
	mu    sync.Mutex
	creds map[string]domainauth.Credential
}

func newMemStore() *memStore { return &memStore{creds: map[string]domainauth.Credential{}} }

func (s *memStore) Save(_ context.Context, key string, cred domainauth.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[key] = cred
	return nil
}

func (s *memStore) Load(_ context.Context, key string) (domainauth.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.creds[key]
	if !ok {
		return domainauth.Credential{}, ports.ErrNoCredential
	}
	return cred, nil
}

func (s *memStore) Clear(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, key)
	return nil
}

type stubVerifier struct {
	verify func(ctx context.Context, identifier string) (domainauth.VerifiedUser, error)
}

func (v *stubVerifier) Verify(ctx context.Context, identifier string) (domainauth.VerifiedUser, error) {
	return v.verify(ctx, identifier)
}

type stubAuthenticator struct {
	authenticate func(ctx context.Context, email, password string) (string, error)
}

func (a *stubAuthenticator) Authenticate(ctx context.Context, email, password string) (string, error) {
	return a.authenticate(ctx, email, password)
}

func testUser(identifier string) domainauth.VerifiedUser {
	return domainauth.VerifiedUser{
		ID:         "u-9",
		Identifier: identifier,
		FirstName:  "Noor",
		LastName:   "Haddad",
		Role:       domainauth.RoleStudent,
	}
}

type gateEnv struct {
	store    *memStore
	verifier *stubVerifier
	manager  *service.SessionManager
}

func newGateEnv(t *testing.T) *gateEnv {
	t.Helper()
	env := &gateEnv{store: newMemStore()}
	env.verifier = &stubVerifier{
		verify: func(_ context.Context, identifier string) (domainauth.VerifiedUser, error) {
			return testUser(identifier), nil
		},
	}
	manager, err := service.NewSessionManager(service.SessionManagerOptions{
		Store:          env.store,
		Verifier:       env.verifier,
		Mode:           domainauth.ModeStudent,
		PublicRoutes:   []string{"/healthz", "/api/session"},
		RetryAttempts:  1,
		RetryBaseDelay: time.Millisecond,
	})
	require.NoError(t, err)
	env.manager = manager
	return env
}

func (e *gateEnv) handler(t *testing.T) http.Handler {
	t.Helper()
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, ok := GetUserFromContext(r.Context()); ok {
			w.Header().Set("X-User", user.Identifier)
		}
		w.WriteHeader(http.StatusOK)
	})
	return SessionGate(e.manager, testLogger())(okHandler)
}

func (e *gateEnv) signedInRequest(t *testing.T, target string) *http.Request {
	t.Helper()
	cred := domainauth.Credential{Identifier: "noor@school.test", SavedAt: time.Now()}
	require.NoError(t, e.store.Save(context.Background(), "key-1", cred))
	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.AddCookie(&http.Cookie{Name: "portal_credential", Value: "key-1"})
	return r
}

func TestSessionGateRedirectsAnonymousBrowser(t *testing.T) {
	env := newGateEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/grades/term-2", nil)
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/accounts/signin?redirect=%2Fgrades%2Fterm-2", w.Header().Get("Location"))
}

func TestSessionGateRejectsAnonymousAPI(t *testing.T) {
	env := newGateEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/api/grades", nil)
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authentication_required")
}

func TestSessionGatePassesPublicRoute(t *testing.T) {
	env := newGateEnv(t)

	r := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-User"))
}

func TestSessionGateAuthenticatedRequestCarriesUser(t *testing.T) {
	env := newGateEnv(t)

	r := env.signedInRequest(t, "/grades")
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "noor@school.test", w.Header().Get("X-User"))
}

func TestSessionGateExpiredSessionRedirectsWithNotice(t *testing.T) {
	env := newGateEnv(t)

	cred := domainauth.Credential{Identifier: "noor@school.test", SavedAt: time.Now().Add(-25 * time.Hour)}
	require.NoError(t, env.store.Save(context.Background(), "key-1", cred))

	r := httptest.NewRequest(http.MethodGet, "/grades", nil)
	r.AddCookie(&http.Cookie{Name: "portal_credential", Value: "key-1"})
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/accounts/signin?redirect=%2Fgrades", w.Header().Get("Location"))

	var notice *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "portal_notice" {
			notice = c
		}
	}
	require.NotNil(t, notice, "expiry sets a flash notice for the sign-in page")
	assert.NotEmpty(t, notice.Value)
}

func TestSessionGateTransientFailureHoldsBrowser(t *testing.T) {
	env := newGateEnv(t)
	env.verifier.verify = func(context.Context, string) (domainauth.VerifiedUser, error) {
		return domainauth.VerifiedUser{}, apperrors.NetworkUnavailable("directory unreachable", nil)
	}

	r := env.signedInRequest(t, "/grades")
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "http-equiv=\"refresh\"")

	// The credential survives the outage.
	_, err := env.store.Load(context.Background(), "key-1")
	assert.NoError(t, err)
}

func TestSessionGateTransientFailureAPIGets503(t *testing.T) {
	env := newGateEnv(t)
	env.verifier.verify = func(context.Context, string) (domainauth.VerifiedUser, error) {
		return domainauth.VerifiedUser{}, apperrors.ServerError("directory 502", nil)
	}

	r := env.signedInRequest(t, "/api/grades")
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "2", w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "verification_pending")
}

func TestSessionGateRoleMismatchRedirects(t *testing.T) {
	env := newGateEnv(t)
	env.verifier.verify = func(_ context.Context, identifier string) (domainauth.VerifiedUser, error) {
		u := testUser(identifier)
		u.Role = domainauth.RoleStaff
		return u, nil
	}

	r := env.signedInRequest(t, "/grades")
	w := httptest.NewRecorder()
	env.handler(t).ServeHTTP(w, r)

	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/accounts/signin?redirect=%2Fgrades", w.Header().Get("Location"))

	// The mismatched credential is destroyed.
	_, err := env.store.Load(context.Background(), "key-1")
	assert.ErrorIs(t, err, ports.ErrNoCredential)
}

func TestIsAPIRequest(t *testing.T) {
	cases := []struct {
		name   string
		build  func() *http.Request
		expect bool
	}{
		{"api path", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/api/x", nil)
		}, true},
		{"browser accept", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/grades", nil)
			r.Header.Set("Accept", "text/html,application/xhtml+xml")
			return r
		}, false},
		{"json accept", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/grades", nil)
			r.Header.Set("Accept", "application/json")
			return r
		}, true},
		{"xhr header", func() *http.Request {
			r := httptest.NewRequest(http.MethodGet, "/grades", nil)
			r.Header.Set("X-Requested-With", "XMLHttpRequest")
			return r
		}, true},
		{"plain browser", func() *http.Request {
			return httptest.NewRequest(http.MethodGet, "/grades", nil)
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, isAPIRequest(tc.build()))
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	panicky := http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	r := httptest.NewRequest(http.MethodGet, "/grades", nil)
	w := httptest.NewRecorder()
	Recover(testLogger())(panicky).ServeHTTP(w, r)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
