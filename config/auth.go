package config

import (
	"fmt"
	"strings"
)

// PortalMode selects which audience a deployment serves. Each portal binary
// runs as exactly one of the two.
type PortalMode string

const (
	// PortalModeStudent serves student accounts.
	PortalModeStudent PortalMode = "student"
	// PortalModeStaff serves staff accounts.
	PortalModeStaff PortalMode = "staff"
)

// UnmarshalText implements encoding.TextUnmarshaler for PortalMode.
func (p *PortalMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "student", "staff":
		*p = PortalMode(v)
		return nil
	default:
		return fmt.Errorf("invalid PortalMode: %q (valid options: student, staff)", v)
	}
}

// SignInMode represents how users sign in to the portal.
type SignInMode string

const (
	// SignInModePassword authenticates against the school accounts API.
	SignInModePassword SignInMode = "password"
	// SignInModeSSO adds district IdP sign-in alongside passwords.
	SignInModeSSO SignInMode = "sso"
	// SignInModeDev uses a fixed dev identity (for development only).
	SignInModeDev SignInMode = "dev"
)

// UnmarshalText implements encoding.TextUnmarshaler for SignInMode.
func (s *SignInMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "password", "sso", "dev":
		*s = SignInMode(v)
		return nil
	default:
		return fmt.Errorf("invalid SignInMode: %q (valid options: password, sso, dev)", v)
	}
}

// OAuthConfig contains OAuth/OIDC configuration for district SSO.
type OAuthConfig struct {
	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	RedirectURL  string `env:"REDIRECT_URL"  envDefault:"http://localhost:8080/accounts/sso/callback"`
	Scope        string `env:"SCOPE"         envDefault:"openid email profile"`
	DiscoveryURL string `env:"DISCOVERY_URL"`
}

// DevAuthConfig controls the dev sign-in identity.
// Used when SIGNIN_MODE=dev for development and testing.
type DevAuthConfig struct {
	Identifier string `env:"IDENTIFIER" envDefault:"dev@school.test"`
	FirstName  string `env:"FIRST_NAME" envDefault:"Dev"`
	LastName   string `env:"LAST_NAME"  envDefault:"User"`
}

// AuthConfig groups all sign-in related configuration.
type AuthConfig struct {
	// PortalMode determines which audience this deployment serves.
	PortalMode PortalMode `env:"PORTAL_MODE" envDefault:"student"`

	// SignInMode determines which sign-in flows are offered.
	SignInMode SignInMode `env:"SIGNIN_MODE" envDefault:"password"`

	// OAuth configuration (used when SignInMode=sso).
	OAuth OAuthConfig `envPrefix:"OAUTH_"`

	// DevAuth configuration (used when SignInMode=dev).
	DevAuth DevAuthConfig `envPrefix:"DEV_AUTH_"`
}
