// Package config loads client settings from the environment, with optional
// .env support for development setups.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds everything the client needs to reach one backend.
type Config struct {
	// ServerURL is the backend origin, e.g. https://tutorhub.example.
	ServerURL string
	// Token is the bearer access token.
	Token string
	// Debug enables debug-level logging.
	Debug bool

	// HeartbeatInterval overrides the ping cadence when positive.
	HeartbeatInterval time.Duration
	// ReconnectBaseDelay overrides the backoff seed when positive.
	ReconnectBaseDelay time.Duration
	// ReconnectMaxDelay overrides the backoff cap when positive.
	ReconnectMaxDelay time.Duration
}

// Load reads configuration from the environment. A .env file in the working
// directory is folded in first when present; real environment variables win
// over it.
func Load() (Config, error) {
	// Ignore a missing .env, it is a dev convenience only.
	_ = godotenv.Load()

	cfg := Config{
		ServerURL: strings.TrimRight(os.Getenv("TUTORHUB_SERVER_URL"), "/"),
		Token:     os.Getenv("TUTORHUB_TOKEN"),
		Debug:     boolEnv("TUTORHUB_DEBUG"),
	}

	if cfg.Token == "" {
		if path := os.Getenv("TUTORHUB_TOKEN_FILE"); path != "" {
			data, err := os.ReadFile(path)
			if err != nil {
				return Config{}, fmt.Errorf("config: read token file: %w", err)
			}
			cfg.Token = strings.TrimSpace(string(data))
		}
	}

	var err error
	if cfg.HeartbeatInterval, err = durationEnv("TUTORHUB_HEARTBEAT_INTERVAL"); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectBaseDelay, err = durationEnv("TUTORHUB_RECONNECT_BASE_DELAY"); err != nil {
		return Config{}, err
	}
	if cfg.ReconnectMaxDelay, err = durationEnv("TUTORHUB_RECONNECT_MAX_DELAY"); err != nil {
		return Config{}, err
	}

	if cfg.ServerURL == "" {
		return Config{}, fmt.Errorf("config: TUTORHUB_SERVER_URL is required")
	}
	if cfg.Token == "" {
		return Config{}, fmt.Errorf("config: TUTORHUB_TOKEN or TUTORHUB_TOKEN_FILE is required")
	}
	return cfg, nil
}

// SocketURL returns the WebSocket endpoint for one conversation.
func (c Config) SocketURL(conversationID int64) string {
	ws := c.ServerURL
	switch {
	case strings.HasPrefix(ws, "https://"):
		ws = "wss://" + strings.TrimPrefix(ws, "https://")
	case strings.HasPrefix(ws, "http://"):
		ws = "ws://" + strings.TrimPrefix(ws, "http://")
	}
	return fmt.Sprintf("%s/ws/chat/%d/", ws, conversationID)
}

func boolEnv(key string) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func durationEnv(key string) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
