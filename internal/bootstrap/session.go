package bootstrap

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/edusuite/portal/config"
	"github.com/edusuite/portal/internal/adapters/devauth"
	"github.com/edusuite/portal/internal/adapters/identity"
	"github.com/edusuite/portal/internal/adapters/oidc"
	redisadapter "github.com/edusuite/portal/internal/adapters/redis"
	"github.com/edusuite/portal/internal/data"
	domainauth "github.com/edusuite/portal/internal/domain/auth"
	"github.com/edusuite/portal/internal/ports"
	"github.com/edusuite/portal/internal/service"
)

// SessionConfig contains dependencies for building the session manager.
type SessionConfig struct {
	Config      *config.AppConfig
	RedisClient redis.UniversalClient
	DB          *sql.DB
	Logger      *slog.Logger
}

// SessionContainer holds the session manager together with the identity
// client it wraps. The client doubles as the password authenticator for the
// sign-in form.
type SessionContainer struct {
	Manager       *service.SessionManager
	Identity      *identity.Client
	Authenticator ports.CredentialsAuthenticator
	Auditor       *data.SessionEventRepo
}

// BuildSessionManager wires the credential store, the identity verifier and
// the audit repository into a session manager.
func BuildSessionManager(cfg SessionConfig) (*SessionContainer, error) {
	if cfg.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.RedisClient == nil {
		return nil, fmt.Errorf("redis client is required")
	}

	idClient, err := identity.NewClient(identity.Config{
		BaseURL:   cfg.Config.Identity.BaseURL,
		APIKey:    cfg.Config.Identity.APIKey,
		FlagExprs: cfg.Config.Identity.FlagExprs,
		HTTPClient: &http.Client{
			Timeout: cfg.Config.Identity.Timeout,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("build identity client: %w", err)
	}

	store := redisadapter.NewCredentialStoreWithPrefix(cfg.RedisClient, "credential:")

	var auditor *data.SessionEventRepo
	if cfg.DB != nil {
		auditor = data.NewSessionEventRepo(cfg.DB)
	}

	manager, err := service.NewSessionManager(service.SessionManagerOptions{
		Store:           store,
		Verifier:        idClient,
		Auditor:         auditorOrNil(auditor),
		Mode:            domainauth.Mode(cfg.Config.Auth.PortalMode),
		CredentialTTL:   cfg.Config.Session.CredentialTTL,
		RefreshInterval: cfg.Config.Session.RefreshInterval,
		PublicRoutes:    cfg.Config.Session.PublicRoutes,
		RetryAttempts:   cfg.Config.Session.RetryAttempts,
		RetryBaseDelay:  cfg.Config.Session.RetryBaseDelay,
		Logger:          cfg.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build session manager: %w", err)
	}

	return &SessionContainer{
		Manager:       manager,
		Identity:      idClient,
		Authenticator: idClient,
		Auditor:       auditor,
	}, nil
}

// auditorOrNil avoids storing a typed nil behind the interface.
func auditorOrNil(repo *data.SessionEventRepo) ports.SessionAuditor {
	if repo == nil {
		return nil
	}
	return repo
}

// BuildSSOProvider creates an SSO provider based on the configured sign-in
// mode. Returns nil (SSO routes disabled) for password mode or when the
// OAuth configuration is incomplete.
//
//nolint:ireturn // the provider is consumed through its port.
func BuildSSOProvider(cfg *config.AppConfig, logger *slog.Logger) ports.SSOProvider {
	if cfg == nil {
		return nil
	}

	switch cfg.Auth.SignInMode {
	case config.SignInModeDev:
		prov, err := devauth.NewProvider(devauth.Config{
			Identifier: cfg.Auth.DevAuth.Identifier,
			FirstName:  cfg.Auth.DevAuth.FirstName,
			LastName:   cfg.Auth.DevAuth.LastName,
		})
		if err != nil {
			if logger != nil {
				logger.Warn("failed to create dev sso provider, sso disabled", "error", err)
			}
			return nil
		}
		return prov

	case config.SignInModeSSO:
		prov, err := oidc.NewProvider(oidc.ProviderConfig{
			ClientID:     cfg.Auth.OAuth.ClientID,
			ClientSecret: cfg.Auth.OAuth.ClientSecret,
			RedirectURL:  cfg.Auth.OAuth.RedirectURL,
			Scope:        cfg.Auth.OAuth.Scope,
			DiscoveryURL: cfg.Auth.OAuth.DiscoveryURL,
		})
		if err != nil {
			if logger != nil {
				logger.Warn("failed to create oidc provider, sso disabled", "error", err)
			}
			return nil
		}
		return prov

	default:
		return nil
	}
}
