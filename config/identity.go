package config

import "time"

// IdentityConfig contains the account directory client configuration.
type IdentityConfig struct {
	// BaseURL is the school accounts API base URL.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:9000"`

	// APIKey authenticates the portal to the accounts API.
	APIKey string `env:"API_KEY" envDefault:""`

	// Timeout bounds a single directory request.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"10s"`

	// FlagExprs maps feature flag names to JMESPath expressions evaluated
	// against the account document, e.g.
	// "messaging:settings.messaging.enabled;library:features[?name=='library'] | [0].on".
	FlagExprs map[string]string `env:"FLAG_EXPRS" envDefault:"" envSeparator:";" envKeyValSeparator:":"`
}
