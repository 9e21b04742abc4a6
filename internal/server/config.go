// Package server provides the runtime configuration for the relay, loaded
// from the environment with sensible defaults.
package server

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the server settings. Everything is optional except Addr and
// MaxMessageSize, which have defaults anyway; an empty AllowedOrigins list
// disables origin checking the way the original deployment ran.
type Config struct {
	// Addr is the listen address. 8230 is the historical relay port.
	Addr string `envconfig:"PARLEY_ADDR" default:":8230" validate:"required"`

	// AllowedOrigins restricts websocket upgrades by Origin header.
	// "*" or an empty list allows any origin.
	AllowedOrigins []string `envconfig:"PARLEY_ALLOWED_ORIGINS"`

	// MaxMessageSize caps inbound frames in bytes.
	MaxMessageSize int64 `envconfig:"PARLEY_MAX_MESSAGE_SIZE" default:"4096" validate:"gt=0"`

	// DataDir is where the credential store lives. Empty keeps credentials
	// in memory only.
	DataDir string `envconfig:"PARLEY_DATA_DIR" default:"./data"`

	// CertFile and KeyFile enable TLS when both are set. The original
	// deployment used one combined PEM for both, which still works: point
	// both keys at the same file.
	CertFile string `envconfig:"PARLEY_CERT_FILE"`
	KeyFile  string `envconfig:"PARLEY_KEY_FILE"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and hub.
	ShutdownTimeout time.Duration `envconfig:"PARLEY_SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
}

// LoadConfig reads a .env file if one is present, then the process
// environment, and validates the result.
func LoadConfig() (Config, error) {
	// Missing .env is the normal case, not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// NewConfig returns the default configuration, primarily for tests.
func NewConfig() Config {
	return Config{
		Addr:            ":8230",
		MaxMessageSize:  4096,
		ShutdownTimeout: 10 * time.Second,
	}
}
