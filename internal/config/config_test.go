package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHATKIT_HOME_DIR", home)
	t.Setenv("CHATKIT_SERVER_URL", "")
	t.Setenv("CHATKIT_BROKER_URL", "")
	t.Setenv("CHATKIT_DEBUG", "")
	t.Setenv("DEBUG", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://api.marrychat.app", cfg.ServerURL)
	require.Equal(t, "wss://api.marrychat.app/ws-stomp", cfg.BrokerURL)
	require.Equal(t, home, cfg.ChatkitHome)
	require.Equal(t, filepath.Join(home, "access.token"), cfg.AccessToken)
	require.False(t, cfg.Debug)
}

func TestLoadDerivesBrokerURL(t *testing.T) {
	t.Setenv("CHATKIT_HOME_DIR", t.TempDir())
	t.Setenv("CHATKIT_SERVER_URL", "http://localhost:8080")
	t.Setenv("CHATKIT_BROKER_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws-stomp", cfg.BrokerURL)
}

func TestLoadExplicitBrokerURL(t *testing.T) {
	t.Setenv("CHATKIT_HOME_DIR", t.TempDir())
	t.Setenv("CHATKIT_BROKER_URL", "wss://broker.internal/ws-stomp")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "wss://broker.internal/ws-stomp", cfg.BrokerURL)
}

func TestLoadFallbackEnvNames(t *testing.T) {
	t.Setenv("CHATKIT_HOME_DIR", "")
	t.Setenv("MARRYCHAT_HOME_DIR", t.TempDir())
	t.Setenv("CHATKIT_SERVER_URL", "")
	t.Setenv("MARRYCHAT_SERVER_URL", "https://staging.marrychat.app")
	t.Setenv("CHATKIT_BROKER_URL", "")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://staging.marrychat.app", cfg.ServerURL)
	require.Equal(t, "wss://staging.marrychat.app/ws-stomp", cfg.BrokerURL)
}

func TestTokenFromEnvAndFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("CHATKIT_HOME_DIR", home)
	t.Setenv("CHATKIT_TOKEN", "env-token")

	cfg, err := Load()
	require.NoError(t, err)

	token, err := cfg.Token()
	require.NoError(t, err)
	require.Equal(t, "env-token", token)

	t.Setenv("CHATKIT_TOKEN", "")
	t.Setenv("MARRYCHAT_TOKEN", "")
	require.NoError(t, os.WriteFile(cfg.AccessToken, []byte("file-token\n"), 0600))

	token, err = cfg.Token()
	require.NoError(t, err)
	require.Equal(t, "file-token", token)
}

func TestTokenMissing(t *testing.T) {
	t.Setenv("CHATKIT_HOME_DIR", t.TempDir())
	t.Setenv("CHATKIT_TOKEN", "")
	t.Setenv("MARRYCHAT_TOKEN", "")

	cfg, err := Load()
	require.NoError(t, err)

	_, err = cfg.Token()
	require.Error(t, err)
}
