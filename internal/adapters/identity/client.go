package identity

// Package identity is the HTTP client for the school accounts API. The portal
// treats this endpoint as the sole source of truth for identity and role; it
// never infers either from local state.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jmespath "github.com/jmespath-community/go-jmespath"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
	"github.com/edusuite/portal/internal/ports"
)

const defaultTimeout = 15 * time.Second

// Client calls the school accounts API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client

	// flagExprs maps feature flag names to compiled JMESPath expressions
	// evaluated against the raw account document. Account documents differ in
	// shape across districts; the expressions let a deployment pick its flags
	// out without code changes.
	flagExprs map[string]jmespath.JMESPath
}

// Config holds configuration for the accounts API client.
type Config struct {
	// BaseURL is the root of the school accounts API, e.g. "https://api.district.example".
	BaseURL string
	// APIKey authenticates the portal to the accounts API (sent as a bearer token).
	APIKey string
	// FlagExprs maps feature flag names to JMESPath expressions over the
	// account document, e.g. {"payments": "billing.enabled"}.
	FlagExprs map[string]string
	// HTTPClient is optional; a 15s-timeout client is used when nil.
	HTTPClient *http.Client
}

// NewClient creates an accounts API client. Flag expressions are compiled up
// front so a bad expression fails at startup, not per request.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity client: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}

	flagExprs := make(map[string]jmespath.JMESPath, len(cfg.FlagExprs))
	for name, expr := range cfg.FlagExprs {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("identity client: compile flag expression %q: %w", name, err)
		}
		flagExprs[name] = compiled
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		flagExprs:  flagExprs,
	}, nil
}

// accountDocument is the wire shape of the accounts API response. The real
// document is a superset; unknown fields land in raw for flag extraction.
type accountDocument struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	FirstName string            `json:"first_name"`
	LastName  string            `json:"last_name"`
	Role      string            `json:"role"`
	Profile   map[string]string `json:"profile"`
}

// Verify fetches the authoritative account record for an identifier.
// Failures map onto the session error taxonomy: 404 → not_found, 5xx →
// server_error, transport errors → network_unavailable.
func (c *Client) Verify(ctx context.Context, identifier string) (domainauth.VerifiedUser, error) {
	if identifier == "" {
		return domainauth.VerifiedUser{}, apperrors.Validation("identifier is required")
	}

	endpoint := c.baseURL + "/api/v1/accounts/" + url.PathEscape(identifier)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return domainauth.VerifiedUser{}, err
	}

	var doc accountDocument
	if decodeErr := json.Unmarshal(body, &doc); decodeErr != nil {
		// A malformed document is the server's fault; treat it as transient so
		// an otherwise valid local session survives a bad API deploy.
		return domainauth.VerifiedUser{}, apperrors.ServerError(
			"The school directory returned an unexpected response.", decodeErr)
	}

	role, roleErr := domainauth.ParseRoleCategory(doc.Role)
	if roleErr != nil {
		return domainauth.VerifiedUser{}, apperrors.ServerError(
			"The school directory returned an unexpected response.", roleErr)
	}

	user := domainauth.VerifiedUser{
		ID:         doc.ID,
		Identifier: doc.Email,
		FirstName:  doc.FirstName,
		LastName:   doc.LastName,
		Role:       role,
		Profile:    doc.Profile,
	}
	if user.Identifier == "" {
		user.Identifier = identifier
	}
	user.Flags = c.extractFlags(body)

	return user, nil
}

// Authenticate checks sign-in credentials against the accounts API and
// returns the account identifier on success.
func (c *Client) Authenticate(ctx context.Context, email, password string) (string, error) {
	if email == "" || password == "" {
		return "", apperrors.ValidationField("email", "Email and password are required.")
	}

	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", fmt.Errorf("marshal sign-in payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/sessions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build sign-in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperrors.NetworkUnavailable("The school directory is unreachable.", err)
	}
	defer closeBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", apperrors.Validation("Invalid email or password.")
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", apperrors.ServerError("The school directory failed. Please try again.",
			fmt.Errorf("accounts api status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated:
		return "", apperrors.ServerError("The school directory returned an unexpected response.",
			fmt.Errorf("accounts api status %d", resp.StatusCode))
	}

	var out struct {
		Identifier string `json:"identifier"`
		Email      string `json:"email"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&out); decodeErr != nil {
		return "", apperrors.ServerError("The school directory returned an unexpected response.", decodeErr)
	}
	if out.Identifier != "" {
		return out.Identifier, nil
	}
	if out.Email != "" {
		return out.Email, nil
	}
	return email, nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apperrors.NetworkUnavailable("The school directory is unreachable.", err)
	}
	defer closeBody(resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, apperrors.NotFound("No account exists for this identifier.")
	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, apperrors.ServerError("The school directory failed. Please try again.",
			fmt.Errorf("accounts api status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, apperrors.ServerError("The school directory returned an unexpected response.",
			fmt.Errorf("accounts api status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NetworkUnavailable("The school directory is unreachable.", err)
	}
	return body, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// extractFlags evaluates the configured flag expressions against the raw
// account document. Missing paths and evaluation failures mean "flag off".
func (c *Client) extractFlags(body []byte) map[string]bool {
	if len(c.flagExprs) == 0 {
		return nil
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil
	}

	flags := make(map[string]bool, len(c.flagExprs))
	for name, expr := range c.flagExprs {
		result, err := expr.Search(raw)
		if err != nil {
			continue
		}
		flags[name] = truthy(result)
	}
	return flags
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && !strings.EqualFold(val, "false")
	case float64:
		return val != 0
	default:
		return false
	}
}

func closeBody(body io.ReadCloser) {
	// Drain so the connection can be reused.
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}

var (
	_ ports.IdentityVerifier         = (*Client)(nil)
	_ ports.CredentialsAuthenticator = (*Client)(nil)
)
