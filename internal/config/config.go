package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envRefreshInterval = "RS_REFRESH_INTERVAL"
	envRequestTimeout  = "RS_REQUEST_TIMEOUT"
	envStatePath       = "RS_STATE_PATH"
	envSourcesFile     = "RS_SOURCES_FILE"
	envHTTPPort        = "RS_HTTP_PORT"
	envSlackWebhookURL = "RS_SLACK_WEBHOOK_URL"
	envWebhookURL      = "RS_WEBHOOK_URL"
	envLogLevel        = "RS_LOG_LEVEL"
)

const (
	defaultRefreshInterval = 15 * time.Minute
	defaultRequestTimeout  = 8 * time.Second
	defaultStatePath       = "data/state.json"
	defaultHTTPPort        = 8080
)

// Config describes runtime configuration loaded from the environment.
type Config struct {
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	StatePath       string
	SourcesFile     string
	HTTPPort        int
	SlackWebhookURL string
	WebhookURL      string
	LogLevel        string
}

// Load reads configuration from environment variables and a local .env file
// if present. Existing environment variables take precedence over values in
// .env.
func Load() (Config, error) {
	if err := loadDotEnvIfPresent(".env"); err != nil {
		return Config{}, err
	}

	cfg := Config{
		RefreshInterval: defaultRefreshInterval,
		RequestTimeout:  defaultRequestTimeout,
		StatePath:       defaultStatePath,
		HTTPPort:        defaultHTTPPort,
	}

	if value, ok := lookupTrimmed(envRefreshInterval); ok {
		interval, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envRefreshInterval, err)
		}
		if interval <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envRefreshInterval)
		}
		cfg.RefreshInterval = interval
	}

	if value, ok := lookupTrimmed(envRequestTimeout); ok {
		timeout, err := time.ParseDuration(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envRequestTimeout, err)
		}
		if timeout <= 0 {
			return Config{}, fmt.Errorf("%s must be greater than zero", envRequestTimeout)
		}
		cfg.RequestTimeout = timeout
	}

	if value, ok := lookupTrimmed(envStatePath); ok {
		cfg.StatePath = value
	}

	if value, ok := lookupTrimmed(envSourcesFile); ok {
		cfg.SourcesFile = value
	}

	if value, ok := lookupTrimmed(envHTTPPort); ok {
		port, err := strconv.Atoi(value)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", envHTTPPort, err)
		}
		if port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("%s must be a valid port", envHTTPPort)
		}
		cfg.HTTPPort = port
	}

	if value, ok := lookupTrimmed(envSlackWebhookURL); ok {
		cfg.SlackWebhookURL = value
	}

	if value, ok := lookupTrimmed(envWebhookURL); ok {
		cfg.WebhookURL = value
	}

	if value, ok := lookupTrimmed(envLogLevel); ok {
		cfg.LogLevel = value
	}

	if cfg.StatePath == "" {
		return Config{}, errors.New("RS_STATE_PATH must not be empty")
	}

	if cfg.SlackWebhookURL != "" {
		if err := validateURL(cfg.SlackWebhookURL, envSlackWebhookURL); err != nil {
			return Config{}, err
		}
	}
	if cfg.WebhookURL != "" {
		if err := validateURL(cfg.WebhookURL, envWebhookURL); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func lookupTrimmed(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(value), true
}

func loadDotEnvIfPresent(path string) error {
	err := godotenv.Load(path)
	if err == nil {
		return nil
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) && errors.Is(pathErr.Err, os.ErrNotExist) {
		return nil
	}

	return err
}

func validateURL(value, name string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("invalid %s: must include scheme and host", name)
	}
	return nil
}
