package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
)

type Config struct {
	// ServerURL is the base URL of the marketplace REST API.
	ServerURL string
	// BrokerURL is the websocket URL of the chat broker endpoint.
	BrokerURL string

	// ChatkitHome is the directory where local state (access token) is stored.
	ChatkitHome string
	// AccessToken is the path to the access token file.
	AccessToken string

	// Debug enables verbose logging.
	Debug bool
}

// Load loads configuration from environment and defaults
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	chatkitHome := getenvFirst("CHATKIT_HOME_DIR", "MARRYCHAT_HOME_DIR")
	if chatkitHome == "" {
		chatkitHome = filepath.Join(homeDir, ".chatkit")
	}

	// Ensure chatkit home exists
	if err := os.MkdirAll(chatkitHome, 0700); err != nil {
		return nil, fmt.Errorf("failed to create chatkit home: %w", err)
	}

	serverURL := getenvFirst("CHATKIT_SERVER_URL", "MARRYCHAT_SERVER_URL")
	if serverURL == "" {
		serverURL = "https://api.marrychat.app" // Default to official server
	}

	brokerURL := getenvFirst("CHATKIT_BROKER_URL", "MARRYCHAT_BROKER_URL")
	if brokerURL == "" {
		brokerURL, err = brokerURLFrom(serverURL)
		if err != nil {
			return nil, err
		}
	}

	debug := os.Getenv("DEBUG") == "true" || os.Getenv("DEBUG") == "1"
	if !debug {
		debug = getenvFirst("CHATKIT_DEBUG", "MARRYCHAT_DEBUG") == "true" ||
			getenvFirst("CHATKIT_DEBUG", "MARRYCHAT_DEBUG") == "1"
	}

	return &Config{
		ServerURL:   serverURL,
		BrokerURL:   brokerURL,
		ChatkitHome: chatkitHome,
		AccessToken: filepath.Join(chatkitHome, "access.token"),
		Debug:       debug,
	}, nil
}

// Token returns the access token from the environment or the token file.
func (c *Config) Token() (string, error) {
	if tok := getenvFirst("CHATKIT_TOKEN", "MARRYCHAT_TOKEN"); tok != "" {
		return tok, nil
	}
	data, err := os.ReadFile(c.AccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Save saves configuration to disk (currently just creates directories)
func (c *Config) Save() error {
	return os.MkdirAll(c.ChatkitHome, 0700)
}

// brokerURLFrom derives the broker websocket URL from the REST base URL by
// swapping the scheme and appending the well-known endpoint path.
func brokerURLFrom(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server URL %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("invalid server URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws-stomp"
	return u.String(), nil
}

func getenvFirst(primary, fallback string) string {
	if val := os.Getenv(primary); val != "" {
		return val
	}
	return os.Getenv(fallback)
}
