package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDBPath            = "data/bridge.db"
	DefaultHTTPAddr          = ":8080"
	DefaultSourceAddress     = "ws://localhost"
	DefaultSourcePort        = "21213"
	DefaultSourcePath        = "/"
	DefaultRelayURL          = "wss://irc-ws.chat.twitch.tv:443"
	DefaultTwitchClientID    = "gp762nuuoqcoxypju8c569th9wz7q5"
	DefaultHelixBaseURL      = "https://api.twitch.tv/helix"
	DefaultReconnectDelay    = 2 * time.Second
	DefaultSplitDelay        = time.Second
	DefaultValidationTimeout = 15 * time.Second
	DefaultDialTimeout       = 10 * time.Second
)

type Config struct {
	DBPath   string
	HTTPAddr string

	SourceAddress        string
	SourcePort           string
	SourcePath           string
	SourceReconnectDelay time.Duration

	RelayURL           string
	RelayAutoConnect   bool
	RelayAutoReconnect bool
	RelaySplitDelay    time.Duration

	TwitchClientID    string
	HelixBaseURL      string
	ValidationTimeout time.Duration
	DialTimeout       time.Duration

	LogLevel     string
	LogFormat    string
	OTLPEndpoint string
}

// Load lee .env (si existe) y luego el entorno. Falla solo con valores que no se pueden interpretar.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv arma la configuración sin tocar .env.
func FromEnv() (*Config, error) {
	cfg := &Config{
		DBPath:         envOr("BRIDGE_DB_PATH", DefaultDBPath),
		HTTPAddr:       envOr("BRIDGE_HTTP_ADDR", DefaultHTTPAddr),
		SourceAddress:  envOr("SOURCE_ADDRESS", DefaultSourceAddress),
		SourcePort:     envOr("SOURCE_PORT", DefaultSourcePort),
		SourcePath:     envOr("SOURCE_PATH", DefaultSourcePath),
		RelayURL:       envOr("RELAY_URL", DefaultRelayURL),
		TwitchClientID: envOr("TWITCH_CLIENT_ID", DefaultTwitchClientID),
		HelixBaseURL:   envOr("HELIX_BASE_URL", DefaultHelixBaseURL),
		LogLevel:       strings.ToLower(envOr("LOG_LEVEL", "info")),
		LogFormat:      strings.ToLower(envOr("LOG_FORMAT", "text")),
		OTLPEndpoint:   strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	var err error
	if cfg.SourceReconnectDelay, err = durationEnv("SOURCE_RECONNECT_DELAY", DefaultReconnectDelay); err != nil {
		return nil, err
	}
	if cfg.RelaySplitDelay, err = durationEnv("RELAY_SPLIT_DELAY", DefaultSplitDelay); err != nil {
		return nil, err
	}
	if cfg.ValidationTimeout, err = durationEnv("VALIDATION_TIMEOUT", DefaultValidationTimeout); err != nil {
		return nil, err
	}
	if cfg.DialTimeout, err = durationEnv("DIAL_TIMEOUT", DefaultDialTimeout); err != nil {
		return nil, err
	}
	if cfg.RelayAutoConnect, err = boolEnv("RELAY_AUTO_CONNECT", true); err != nil {
		return nil, err
	}
	if cfg.RelayAutoReconnect, err = boolEnv("RELAY_AUTO_RECONNECT", true); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("config: %s: invalid duration %q", key, v)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: invalid boolean %q", key, v)
	}
	return b, nil
}
