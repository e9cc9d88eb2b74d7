package httpx

import (
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	apperrors "github.com/edusuite/portal/internal/errors"
	"github.com/edusuite/portal/internal/ports"
	"github.com/edusuite/portal/internal/service"
)

// SessionHandlers provides HTTP handlers for the account boundary: sign-in
// (password and SSO), sign-up hand-off, sign-out, and the session status API.
type SessionHandlers struct {
	Sessions      *service.SessionManager
	Authenticator ports.CredentialsAuthenticator
	SSO           ports.SSOProvider // nil unless SSO sign-in is configured
	SignUpURL     string            // external registrar URL, optional
	CookieDomain  string
	Logger        *slog.Logger
}

func (h *SessionHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// SignInPage renders the sign-in form.
// GET /accounts/signin?redirect=<optional_path>.
func (h *SessionHandlers) SignInPage(w http.ResponseWriter, r *http.Request) {
	// Already signed in: go straight to the destination.
	if IsAuthenticated(r.Context()) {
		http.Redirect(w, r, safeRedirectPath(r.URL.Query().Get("redirect")), http.StatusSeeOther)
		return
	}

	data := signInPageData{
		Redirect: safeRedirectPath(r.URL.Query().Get("redirect")),
		Notice:   takeFlashNotice(w, r),
		Mode:     string(h.Sessions.Mode()),
		SSO:      h.SSO != nil,
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := signInTemplate.Execute(w, data); err != nil {
		h.logger().ErrorContext(r.Context(), "sign-in page render failed", "error", err)
	}
}

// SignIn handles a password sign-in.
// POST /accounts/signin with form fields email, password, redirect.
func (h *SessionHandlers) SignIn(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return
	}

	email := r.PostFormValue("email")
	password := r.PostFormValue("password")
	redirect := safeRedirectPath(r.PostFormValue("redirect"))
	if email == "" || password == "" {
		h.signInFailure(w, r, redirect, apperrors.Validation("Email and password are required."))
		return
	}

	identifier, err := h.Authenticator.Authenticate(r.Context(), email, password)
	if err != nil {
		h.signInFailure(w, r, redirect, err)
		return
	}

	key := EnsureCredentialKey(w, r, h.CookieDomain)
	user, err := h.Sessions.SignIn(r.Context(), key, identifier)
	if err != nil {
		h.signInFailure(w, r, redirect, err)
		return
	}

	if isAPIRequest(r) {
		WriteJSON(w, http.StatusOK, sessionStatusBody(domainauth.PhaseAuthenticated, &user))
		return
	}
	http.Redirect(w, r, redirect, http.StatusSeeOther)
}

// signInFailure reports a failed sign-in: JSON for API callers, a flash
// notice and a bounce back to the form for browsers. Mismatch and not_found
// carry their own user messages; transient failures get a retry hint.
func (h *SessionHandlers) signInFailure(w http.ResponseWriter, r *http.Request, redirect string, err error) {
	h.logger().WarnContext(r.Context(), "sign-in failed",
		"code", string(apperrors.GetCode(err)), "error", err)

	if isAPIRequest(r) {
		WriteAppError(w, err)
		return
	}

	if apperrors.IsNotFound(err) {
		setFlashNotice(w, apperrors.UserMessage(err))
		http.Redirect(w, r, redirectURLFor(h.Sessions.SignUpPath(), redirect), http.StatusSeeOther)
		return
	}
	setFlashNotice(w, apperrors.UserMessage(err))
	http.Redirect(w, r, redirectURLFor(h.Sessions.SignInPath(), redirect), http.StatusSeeOther)
}

// SignUpPage renders the sign-up hand-off page. Account creation lives with
// the district registrar, not the portal; this page explains that and links
// out when a registrar URL is configured.
// GET /accounts/signup?redirect=<optional_path>.
func (h *SessionHandlers) SignUpPage(w http.ResponseWriter, r *http.Request) {
	data := signUpPageData{
		Notice:       takeFlashNotice(w, r),
		RegistrarURL: h.SignUpURL,
		SignInURL:    redirectURLFor(h.Sessions.SignInPath(), safeRedirectPath(r.URL.Query().Get("redirect"))),
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := signUpTemplate.Execute(w, data); err != nil {
		h.logger().ErrorContext(r.Context(), "sign-up page render failed", "error", err)
	}
}

// SignOut destroys the session and returns to the sign-in page.
// POST /accounts/signout.
func (h *SessionHandlers) SignOut(w http.ResponseWriter, r *http.Request) {
	key := CredentialKeyFromRequest(r)
	if key != "" {
		if err := h.Sessions.SignOut(r.Context(), key); err != nil {
			h.logger().WarnContext(r.Context(), "sign-out failed", "error", err)
		}
	}

	if isAPIRequest(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "signed_out"})
		return
	}
	http.Redirect(w, r, h.Sessions.SignInPath(), http.StatusSeeOther)
}

// Status reports the current session state without redirecting.
// GET /api/session.
func (h *SessionHandlers) Status(w http.ResponseWriter, r *http.Request) {
	res := h.Sessions.Resolve(r.Context(), CredentialKeyFromRequest(r), r.URL.Path)
	WriteJSON(w, http.StatusOK, sessionStatusBody(res.Phase, res.User))
}

func sessionStatusBody(phase domainauth.Phase, user *domainauth.VerifiedUser) map[string]any {
	body := map[string]any{
		"state":         string(phase),
		"authenticated": phase == domainauth.PhaseAuthenticated,
	}
	if user != nil {
		body["user"] = map[string]any{
			"id":         user.ID,
			"identifier": user.Identifier,
			"first_name": user.FirstName,
			"last_name":  user.LastName,
			"role":       string(user.Role),
			"flags":      user.Flags,
		}
	}
	return body
}

// SSOStart initiates the SSO sign-in flow.
// GET /accounts/sso?redirect=<optional_path>.
func (h *SessionHandlers) SSOStart(w http.ResponseWriter, r *http.Request) {
	if h.SSO == nil {
		http.NotFound(w, r)
		return
	}
	redirect := safeRedirectPath(r.URL.Query().Get("redirect"))

	authURL, state, nonce, err := h.SSO.Begin(r.Context(), ports.BeginInput{RedirectURL: redirect})
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "sso_begin_failed", Err: err})
		return
	}

	h.setSSOCookies(w, r, ssoCookieParams{State: state, Nonce: nonce, Redirect: redirect})
	http.Redirect(w, r, authURL, http.StatusFound)
}

// SSOCallback completes the SSO flow and establishes the session.
// GET /accounts/sso/callback?code=<code>&state=<state>.
func (h *SessionHandlers) SSOCallback(w http.ResponseWriter, r *http.Request) {
	if h.SSO == nil {
		http.NotFound(w, r)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_parameters",
			Err:     errors.New("code and state parameters are required"),
		})
		return
	}

	stateCookie, err := r.Cookie("sso_state")
	if err != nil || stateCookie.Value != state {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "invalid_state",
			Err:     errors.New("invalid or missing state parameter"),
		})
		return
	}
	nonceCookie, err := r.Cookie("sso_nonce")
	if err != nil {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "missing_nonce",
			Err:     errors.New("missing nonce parameter"),
		})
		return
	}

	identity, err := h.SSO.Exchange(r.Context(), ports.ExchangeInput{
		Code:  code,
		State: state,
		Nonce: nonceCookie.Value,
	})
	if err != nil {
		WriteError(w, ErrorParams{Code: http.StatusInternalServerError, ErrCode: "sso_exchange_failed", Err: err})
		return
	}

	key := EnsureCredentialKey(w, r, h.CookieDomain)
	if _, signInErr := h.Sessions.SignIn(r.Context(), key, identity.Identifier); signInErr != nil {
		h.clearSSOCookies(w, r)
		h.signInFailure(w, r, "/", signInErr)
		return
	}
	h.clearSSOCookies(w, r)

	redirect := "/"
	if c, cookieErr := r.Cookie("sso_redirect"); cookieErr == nil {
		redirect = safeRedirectPath(c.Value)
	}
	http.Redirect(w, r, redirect, http.StatusFound)
}

// ssoCookieParams groups values needed to set SSO cookies.
type ssoCookieParams struct {
	State    string
	Nonce    string
	Redirect string
}

// setSSOCookies stores SSO state, nonce, and the post-sign-in redirect in
// short-lived secure cookies.
func (h *SessionHandlers) setSSOCookies(w http.ResponseWriter, r *http.Request, p ssoCookieParams) {
	isSecure := isSecureRequest(r)
	const ssoCookieTTL = 10 * time.Minute

	for name, value := range map[string]string{
		"sso_state":    p.State,
		"sso_nonce":    p.Nonce,
		"sso_redirect": p.Redirect,
	} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    value,
			Path:     "/",
			Domain:   h.CookieDomain,
			HttpOnly: true,
			Secure:   isSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(ssoCookieTTL.Seconds()),
		})
	}
}

func (h *SessionHandlers) clearSSOCookies(w http.ResponseWriter, r *http.Request) {
	clearCookie(w, r, "sso_state", h.CookieDomain)
	clearCookie(w, r, "sso_nonce", h.CookieDomain)
	clearCookie(w, r, "sso_redirect", h.CookieDomain)
}

func redirectURLFor(target, redirect string) string {
	if redirect == "" || redirect == "/" {
		return target
	}
	return target + "?redirect=" + template.URLQueryEscaper(redirect)
}

type signInPageData struct {
	Redirect string
	Notice   string
	Mode     string
	SSO      bool
}

type signUpPageData struct {
	Notice       string
	RegistrarURL string
	SignInURL    string
}

var signInTemplate = template.Must(template.New("signin").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Sign in</title>
</head>
<body>
<h1>Sign in to the {{.Mode}} portal</h1>
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
<form method="post" action="/accounts/signin">
<input type="hidden" name="redirect" value="{{.Redirect}}">
<label>Email <input type="email" name="email" required></label>
<label>Password <input type="password" name="password" required></label>
<button type="submit">Sign in</button>
</form>
{{if .SSO}}<p><a href="/accounts/sso?redirect={{.Redirect}}">Sign in with your district account</a></p>{{end}}
</body>
</html>
`))

var signUpTemplate = template.Must(template.New("signup").Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Create an account</title>
</head>
<body>
<h1>Create an account</h1>
{{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
{{if .RegistrarURL}}
<p>Accounts are created by the district registrar. <a href="{{.RegistrarURL}}">Request an account</a>.</p>
{{else}}
<p>Accounts are created by the district registrar. Contact your school office to request one.</p>
{{end}}
<p>Already have an account? <a href="{{.SignInURL}}">Sign in</a>.</p>
</body>
</html>
`))
