package httpx

import (
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	domainauth "github.com/edusuite/portal/internal/domain/auth"
	"github.com/edusuite/portal/internal/service"
)

// Logging returns a middleware that logs HTTP requests and responses.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			const defaultHTTPStatus = 200
			ww := &respWriter{ResponseWriter: w, status: defaultHTTPStatus}
			next.ServeHTTP(ww, r)
			logger.Info("http",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.status),
				slog.Duration("duration", time.Since(start)),
			)
		})
	}
}

type respWriter struct {
	http.ResponseWriter
	status int
}

func (w *respWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Recover returns a middleware that recovers from panics and logs them.
func Recover(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					logger.Error("panic",
						slog.Any("error", err),
						slog.String("path", r.URL.Path),
						slog.String("method", r.Method),
						slog.String("stack", string(debug.Stack())))
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SessionGate runs the session resolution on every request and enforces the
// redirect policy. Authenticated requests continue with the verified user in
// the request context. Unauthenticated requests to gated routes are sent to
// the sign-in page with the original path preserved. While verification is
// still in flight or retrying, browser requests get a holding page and API
// requests get a 503 with Retry-After, never a redirect, so a transient
// outage cannot destroy an otherwise valid session.
func SessionGate(manager *service.SessionManager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := manager.Resolve(r.Context(), CredentialKeyFromRequest(r), r.URL.RequestURI())

			switch {
			case res.User != nil:
				ctx := SetUserInContext(r.Context(), res.User)
				next.ServeHTTP(w, r.WithContext(ctx))

			case res.RedirectTo != "":
				if isAPIRequest(r) {
					WriteError(w, ErrorParams{
						Code:    http.StatusUnauthorized,
						ErrCode: "authentication_required",
						Err:     errAuthRequired,
					})
					return
				}
				if res.Notice != "" {
					setFlashNotice(w, res.Notice)
				}
				http.Redirect(w, r, res.RedirectTo, http.StatusSeeOther)

			case res.Phase == domainauth.PhaseLoading:
				logger.WarnContext(r.Context(), "session resolution pending", "path", r.URL.Path)
				if isAPIRequest(r) {
					w.Header().Set("Retry-After", "2")
					WriteError(w, ErrorParams{
						Code:    http.StatusServiceUnavailable,
						ErrCode: "verification_pending",
						Err:     errVerificationPending,
					})
					return
				}
				writeHoldingPage(w, res.Notice)

			default:
				// Unauthenticated on a public route: continue without a user.
				next.ServeHTTP(w, r)
			}
		})
	}
}

type gateError string

func (e gateError) Error() string { return string(e) }

const (
	errAuthRequired        = gateError("authentication required")
	errVerificationPending = gateError("session verification in progress")
)

// isAPIRequest reports whether the request expects a JSON answer rather than
// a browser navigation.
func isAPIRequest(r *http.Request) bool {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return true
	}
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") && !strings.Contains(accept, "text/html") {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest")
}

// writeHoldingPage renders a minimal self-refreshing page shown while the
// identity directory is unreachable. The refresh re-runs the resolution.
func writeHoldingPage(w http.ResponseWriter, notice string) {
	if notice == "" {
		notice = "Checking your session. This page will retry automatically."
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Retry-After", "2")
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="2">
<title>One moment</title>
</head>
<body>
<p>` + htmlEscape(notice) + `</p>
</body>
</html>
`))
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&#34;",
	"'", "&#39;",
)

func htmlEscape(s string) string { return htmlEscaper.Replace(s) }
