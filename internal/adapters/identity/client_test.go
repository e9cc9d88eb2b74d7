package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
)

func newTestClient(t *testing.T, handler http.Handler, flagExprs map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{
		BaseURL:   srv.URL,
		APIKey:    "test-key",
		FlagExprs: flagExprs,
	})
	require.NoError(t, err)
	return client
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(Config{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BaseURL is required")
}

func TestNewClient_RejectsBadFlagExpression(t *testing.T) {
	_, err := NewClient(Config{
		BaseURL:   "http://localhost",
		FlagExprs: map[string]string{"broken": "billing.["},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile flag expression")
}

func TestClient_Verify_Success(t *testing.T) {
	var gotPath, gotAuth string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "u-1",
			"email": "a@x.com",
			"first_name": "Ada",
			"last_name": "Lovelace",
			"role": "student",
			"profile": {"grade": "11"},
			"billing": {"enabled": true}
		}`))
	}), map[string]string{"payments": "billing.enabled"})

	user, err := client.Verify(context.Background(), "a@x.com")
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/accounts/a@x.com", gotPath)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, "a@x.com", user.Identifier)
	assert.Equal(t, domainauth.RoleStudent, user.Role)
	assert.Equal(t, "11", user.Profile["grade"])
	assert.True(t, user.Flags["payments"])
}

func TestClient_Verify_FlagMissingMeansOff(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": "u-1", "email": "a@x.com", "role": "staff"}`))
	}), map[string]string{"payments": "billing.enabled"})

	user, err := client.Verify(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.False(t, user.Flags["payments"])
}

func TestClient_Verify_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "no such account", http.StatusNotFound)
	}), nil)

	_, err := client.Verify(context.Background(), "gone@x.com")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestClient_Verify_ServerError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}), nil)

	_, err := client.Verify(context.Background(), "a@x.com")
	assert.Equal(t, apperrors.ErrCodeServerError, apperrors.GetCode(err))
	assert.True(t, apperrors.IsTransient(err))
}

func TestClient_Verify_NetworkUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listening anymore

	client, err := NewClient(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = client.Verify(context.Background(), "a@x.com")
	assert.Equal(t, apperrors.ErrCodeNetworkUnavailable, apperrors.GetCode(err))
	assert.True(t, apperrors.IsTransient(err))
}

func TestClient_Verify_UnknownRoleIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"id": "u-1", "email": "a@x.com", "role": "superintendent"}`))
	}), nil)

	_, err := client.Verify(context.Background(), "a@x.com")
	// A bad role in the document must not destroy the local session.
	assert.Equal(t, apperrors.ErrCodeServerError, apperrors.GetCode(err))
}

func TestClient_Verify_EmptyIdentifier(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}), nil)

	_, err := client.Verify(context.Background(), "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestClient_Authenticate_Success(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/sessions", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"identifier": "a@x.com"}`))
	}), nil)

	identifier, err := client.Authenticate(context.Background(), "a@x.com", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", identifier)
}

func TestClient_Authenticate_BadPassword(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}), nil)

	_, err := client.Authenticate(context.Background(), "a@x.com", "wrong")
	assert.True(t, apperrors.IsValidation(err))
}

func TestClient_Authenticate_MissingFields(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	}), nil)

	_, err := client.Authenticate(context.Background(), "", "")
	assert.True(t, apperrors.IsValidation(err))
}
