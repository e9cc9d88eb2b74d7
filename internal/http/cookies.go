package httpx

import (
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// credentialCookie carries the opaque per-browser credential key. The key
	// is random and meaningless on its own; identity and expiry live on the
	// server side against it.
	credentialCookie = "portal_credential"

	// noticeCookie carries a one-shot message shown on the next sign-in page
	// render (session expired, wrong portal, account removed).
	noticeCookie = "portal_notice"

	// credentialCookieMaxAge matches the store's housekeeping retention, not
	// the session TTL. A key outliving its credential simply resolves to
	// "no credential".
	credentialCookieMaxAge = 30 * 24 * time.Hour
)

// CredentialKeyFromRequest returns the browser's credential key, or "" when
// the cookie is absent.
func CredentialKeyFromRequest(r *http.Request) string {
	c, err := r.Cookie(credentialCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// EnsureCredentialKey returns the browser's credential key, minting and
// setting a fresh one when the cookie is absent.
func EnsureCredentialKey(w http.ResponseWriter, r *http.Request, cookieDomain string) string {
	if key := CredentialKeyFromRequest(r); key != "" {
		return key
	}
	key := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     credentialCookie,
		Value:    key,
		Path:     "/",
		Domain:   cookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(credentialCookieMaxAge.Seconds()),
	})
	return key
}

func setFlashNotice(w http.ResponseWriter, notice string) {
	http.SetCookie(w, &http.Cookie{
		Name:     noticeCookie,
		Value:    url.QueryEscape(notice),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300,
	})
}

// takeFlashNotice reads and clears the one-shot notice cookie.
func takeFlashNotice(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(noticeCookie)
	if err != nil {
		return ""
	}
	clearCookie(w, r, noticeCookie, "")
	notice, err := url.QueryUnescape(c.Value)
	if err != nil {
		return ""
	}
	return notice
}

// clearCookie clears a cookie by setting it to expire immediately.
// It mirrors key attributes (Secure, Path, Domain, SameSite) used when
// setting cookies to maximize compatibility across browsers during deletion.
func clearCookie(w http.ResponseWriter, r *http.Request, name, cookieDomain string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   cookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteLaxMode,
	})
}

func isSecureRequest(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// safeRedirectPath ensures the provided redirect is a same-origin relative
// path starting with "/" and not an absolute URL. Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if candidate == "" {
		return "/"
	}
	u, err := url.Parse(candidate)
	if err != nil || u.IsAbs() || u.Host != "" || !strings.HasPrefix(u.Path, "/") {
		return "/"
	}
	return candidate
}
