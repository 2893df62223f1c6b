package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the runtime configuration of the wizard server and CLI.
type Config struct {
	Addr              string
	NominatimURL      string
	UserAgent         string
	GeocodeTimeout    time.Duration
	GeocodeRPS        float64
	RefDataPath       string
	SessionTTL        time.Duration
	LogLevel          string
	Offline           bool
	MaxAttachmentSize int
}

// Defaults used when a variable is unset.
const (
	DefaultAddr              = ":8181"
	DefaultNominatimURL      = "https://nominatim.openstreetmap.org"
	DefaultUserAgent         = "task-wizard/1.0"
	DefaultGeocodeTimeout    = 10 * time.Second
	DefaultGeocodeRPS        = 1.0
	DefaultSessionTTL        = 2 * time.Hour
	DefaultLogLevel          = "info"
	DefaultMaxAttachmentSize = 10 << 20
)

// Load reads the configuration from TASKWIZ_* environment variables.
func Load() (Config, error) {
	return load(os.Getenv)
}

func load(getenv func(string) string) (Config, error) {
	cfg := Config{
		Addr:              getString(getenv, "TASKWIZ_ADDR", DefaultAddr),
		NominatimURL:      strings.TrimRight(getString(getenv, "TASKWIZ_NOMINATIM_URL", DefaultNominatimURL), "/"),
		UserAgent:         getString(getenv, "TASKWIZ_USER_AGENT", DefaultUserAgent),
		RefDataPath:       getenv("TASKWIZ_REFDATA"),
		LogLevel:          getString(getenv, "TASKWIZ_LOG_LEVEL", DefaultLogLevel),
		GeocodeTimeout:    DefaultGeocodeTimeout,
		GeocodeRPS:        DefaultGeocodeRPS,
		SessionTTL:        DefaultSessionTTL,
		MaxAttachmentSize: DefaultMaxAttachmentSize,
	}

	var err error
	if cfg.GeocodeTimeout, err = getDuration(getenv, "TASKWIZ_GEOCODE_TIMEOUT", DefaultGeocodeTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = getDuration(getenv, "TASKWIZ_SESSION_TTL", DefaultSessionTTL); err != nil {
		return Config{}, err
	}
	if v := getenv("TASKWIZ_GEOCODE_RPS"); v != "" {
		if cfg.GeocodeRPS, err = strconv.ParseFloat(v, 64); err != nil || cfg.GeocodeRPS < 0 {
			return Config{}, fmt.Errorf("TASKWIZ_GEOCODE_RPS: invalid rate %q", v)
		}
	}
	if v := getenv("TASKWIZ_MAX_ATTACHMENT"); v != "" {
		if cfg.MaxAttachmentSize, err = strconv.Atoi(v); err != nil || cfg.MaxAttachmentSize <= 0 {
			return Config{}, fmt.Errorf("TASKWIZ_MAX_ATTACHMENT: invalid size %q", v)
		}
	}
	if v := getenv("TASKWIZ_OFFLINE"); v != "" {
		if cfg.Offline, err = strconv.ParseBool(v); err != nil {
			return Config{}, fmt.Errorf("TASKWIZ_OFFLINE: %w", err)
		}
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getString(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(getenv func(string) string, key string, def time.Duration) (time.Duration, error) {
	v := getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive", key)
	}
	return d, nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return l, nil
}

// NewLogger returns a text logger writing to w at the configured level.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
