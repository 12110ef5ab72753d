package internal

import (
	"fmt"
	"time"
)

// Config is the gateway's whole environment surface, validated once at
// startup. Missing required options fail the process immediately rather
// than surfacing at first use.
type Config struct {
	AppID     string `env:"APP_ID,required=true"`
	AppKey    string `env:"APP_KEY,required=true"`
	AppSecret string `env:"APP_SECRET,required=true"`
	Cluster   string `env:"CLUSTER"`
	UseTLS    bool   `env:"USE_TLS"`

	Host string `env:"HOST"`
	Port int    `env:"PORT,required=true"`

	LogLevel string `env:"LOG_LEVEL,required=true"`

	SessionSecret       string        `env:"SESSION_SECRET,required=true"`
	AuthTokenDuration   time.Duration `env:"AUTH_TOKEN_DURATION,required=true"`
	AdminCredentialHash string        `env:"ADMIN_CREDENTIAL_HASH"`

	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`

	// Optional: without a redis endpoint the gateway runs single-node.
	RedisURL *string `env:"REDIS_URL"`

	SendBufferSize  int           `env:"SEND_BUFFER_SIZE,required=true"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,required=true"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,required=true"`

	TLSCertFile string `env:"TLS_CERT_FILE"`
	TLSKeyFile  string `env:"TLS_KEY_FILE"`
}

// Validate checks the cross-field constraints go-env tags cannot express.
func (c Config) Validate() error {
	if c.SendBufferSize <= 0 {
		return fmt.Errorf("SEND_BUFFER_SIZE must be positive, got %d", c.SendBufferSize)
	}
	if c.MetricInterval <= 0 {
		return fmt.Errorf("METRIC_INTERVAL must be positive, got %s", c.MetricInterval)
	}
	if c.RedisURL != nil && c.Cluster == "" {
		return fmt.Errorf("CLUSTER is required when REDIS_URL is set")
	}
	if c.UseTLS && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("TLS_CERT_FILE and TLS_KEY_FILE are required when USE_TLS is set")
	}
	return nil
}

// Addr is the listen address of the HTTP surface.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
