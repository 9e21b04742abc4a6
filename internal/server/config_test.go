package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)

	req.Equal(":8230", cfg.Addr)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal("./data", cfg.DataDir)
	req.Equal(10*time.Second, cfg.ShutdownTimeout)
	req.Empty(cfg.AllowedOrigins)
	req.Empty(cfg.CertFile)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	req := require.New(t)

	t.Setenv("PARLEY_ADDR", ":9000")
	t.Setenv("PARLEY_ALLOWED_ORIGINS", "https://chat.example.com,https://example.com")
	t.Setenv("PARLEY_MAX_MESSAGE_SIZE", "1024")
	t.Setenv("PARLEY_DATA_DIR", "/var/lib/parley")
	t.Setenv("PARLEY_SHUTDOWN_TIMEOUT", "3s")

	cfg, err := LoadConfig()
	req.NoError(err)

	req.Equal(":9000", cfg.Addr)
	req.Equal([]string{"https://chat.example.com", "https://example.com"}, cfg.AllowedOrigins)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal("/var/lib/parley", cfg.DataDir)
	req.Equal(3*time.Second, cfg.ShutdownTimeout)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	t.Setenv("PARLEY_MAX_MESSAGE_SIZE", "-1")

	_, err := LoadConfig()
	require.Error(t, err)
}
