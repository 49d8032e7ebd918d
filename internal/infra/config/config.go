package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates client configuration loaded from environment variables.
type Config struct {
	Env                  string
	APIBaseURL           string
	Token                string
	RefreshToken         string
	LogLevel             string
	HTTPTimeout          time.Duration
	MessageInterval      time.Duration
	ConversationInterval time.Duration
	CacheTTL             time.Duration
	FetchMinInterval     time.Duration
	RetryMaxElapsed      time.Duration
	DevAddr              string
}

// Load parses configuration from the current environment. A .env file in the
// working directory is applied first when present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:          getEnv("APP_ENV", "dev"),
		APIBaseURL:   strings.TrimRight(getEnv("NESTCHAT_API_URL", "http://localhost:8080"), "/"),
		Token:        os.Getenv("NESTCHAT_TOKEN"),
		RefreshToken: os.Getenv("NESTCHAT_REFRESH_TOKEN"),
		LogLevel:     getEnv("NESTCHAT_LOG_LEVEL", "info"),
		DevAddr:      getEnv("NESTCHAT_DEV_ADDR", ":8080"),
	}

	var err error
	if cfg.HTTPTimeout, err = parseDurationEnv("NESTCHAT_HTTP_TIMEOUT", 15*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.MessageInterval, err = parseDurationEnv("NESTCHAT_MESSAGE_INTERVAL", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.ConversationInterval, err = parseDurationEnv("NESTCHAT_CONVERSATION_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTL, err = parseDurationEnv("NESTCHAT_CACHE_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.FetchMinInterval, err = parseDurationEnv("NESTCHAT_FETCH_MIN_INTERVAL", time.Second); err != nil {
		return Config{}, err
	}
	if cfg.RetryMaxElapsed, err = parseDurationEnv("NESTCHAT_RETRY_MAX_ELAPSED", 10*time.Second); err != nil {
		return Config{}, err
	}

	if cfg.APIBaseURL == "" {
		return Config{}, fmt.Errorf("NESTCHAT_API_URL is required")
	}
	if cfg.MessageInterval <= 0 || cfg.ConversationInterval <= 0 {
		return Config{}, fmt.Errorf("polling intervals must be positive")
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}
