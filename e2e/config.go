package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	AppKey        string `envconfig:"APP_KEY" default:"e2e-app-key"`
	AppSecret     string `envconfig:"APP_SECRET" default:"e2e-app-secret"`
	SessionSecret string `envconfig:"SESSION_SECRET" default:"e2e-session-secret"`
	// E2E_ADMIN_CREDENTIAL is the plaintext credential the suite hashes
	// and hands to the admin gate before booting the gateway
	AdminCredential string `envconfig:"E2E_ADMIN_CREDENTIAL" default:"e2e-admin-credential"`
	// E2E_DEBUG_JSON allows dumping full HTTP request/response bodies
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
