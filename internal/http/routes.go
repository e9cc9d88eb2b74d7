package httpx

import (
	"log/slog"
	"net/http"

	"github.com/edusuite/portal/internal/ports"
	"github.com/edusuite/portal/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Sessions      *service.SessionManager
	Authenticator ports.CredentialsAuthenticator
	SSO           ports.SSOProvider // nil disables the SSO routes
	SignUpURL     string
	CookieDomain  string
	Logger        *slog.Logger
}

// NewRouter creates and configures the HTTP router. Every route outside the
// account boundary and the health check runs behind the session gate.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sessionHandlers := &SessionHandlers{
		Sessions:      services.Sessions,
		Authenticator: services.Authenticator,
		SSO:           services.SSO,
		SignUpURL:     services.SignUpURL,
		CookieDomain:  services.CookieDomain,
		Logger:        logger,
	}

	mux := http.NewServeMux()
	registerAccountRoutes(mux, sessionHandlers)
	mux.Handle("GET /healthz", healthHandler(services.Sessions.Mode()))
	mux.Handle("HEAD /healthz", healthHandler(services.Sessions.Mode()))

	homeHandlers := &HomeHandlers{Sessions: services.Sessions, Logger: logger}
	mux.Handle("GET /{$}", http.HandlerFunc(homeHandlers.Home))
	mux.Handle("GET /", http.HandlerFunc(homeHandlers.Page))

	return SessionGate(services.Sessions, logger)(mux)
}

func registerAccountRoutes(mux *http.ServeMux, h *SessionHandlers) {
	mux.Handle("GET /accounts/signin", http.HandlerFunc(h.SignInPage))
	mux.Handle("POST /accounts/signin", http.HandlerFunc(h.SignIn))
	mux.Handle("GET /accounts/signup", http.HandlerFunc(h.SignUpPage))
	mux.Handle("POST /accounts/signout", http.HandlerFunc(h.SignOut))
	mux.Handle("GET /api/session", http.HandlerFunc(h.Status))
	if h.SSO != nil {
		mux.Handle("GET /accounts/sso", http.HandlerFunc(h.SSOStart))
		mux.Handle("GET /accounts/sso/callback", http.HandlerFunc(h.SSOCallback))
	}
}
