// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/xonecas/moji/internal/constants"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Chat     ChatConfig     `toml:"chat"`
	Realtime RealtimeConfig `toml:"realtime"`
	HTTP     HTTPConfig     `toml:"http"`
}

// ServerConfig holds the remote endpoints.
type ServerConfig struct {
	APIURL    string `toml:"api_url"`
	SocketURL string `toml:"socket_url"`
}

// ChatConfig holds conversation view settings.
type ChatConfig struct {
	PageSize        int `toml:"page_size"`
	ScrollThreshold int `toml:"scroll_threshold"`
}

// RealtimeConfig holds websocket connection settings.
type RealtimeConfig struct {
	ReconnectAttempts int      `toml:"reconnect_attempts"`
	ReconnectDelay    Duration `toml:"reconnect_delay"`
	ReconnectMaxDelay Duration `toml:"reconnect_max_delay"`
	PingInterval      Duration `toml:"ping_interval"`
	WriteTimeout      Duration `toml:"write_timeout"`
}

// HTTPConfig holds REST client settings.
type HTTPConfig struct {
	Timeout   Duration `toml:"timeout"`
	RateLimit float64  `toml:"rate_limit"`
	RateBurst int      `toml:"rate_burst"`
}

// Duration is a time.Duration that decodes from TOML strings like "5s".
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			APIURL:    "http://localhost:8000/api",
			SocketURL: "ws://localhost:8000/ws",
		},
		Chat: ChatConfig{
			PageSize:        constants.DefaultPageSize,
			ScrollThreshold: constants.ScrollLoadThreshold,
		},
		Realtime: RealtimeConfig{
			ReconnectAttempts: constants.DefaultReconnectAttempts,
			ReconnectDelay:    Duration{constants.DefaultReconnectDelay},
			ReconnectMaxDelay: Duration{constants.DefaultReconnectMaxDelay},
			PingInterval:      Duration{constants.DefaultPingInterval},
			WriteTimeout:      Duration{constants.DefaultWriteTimeout},
		},
		HTTP: HTTPConfig{
			Timeout:   Duration{constants.DefaultHTTPTimeout},
			RateLimit: 10.0,
			RateBurst: 5,
		},
	}
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Load from file if it exists
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	cfg.normalize()

	return cfg, nil
}

// normalize replaces values that would break the engine with defaults.
func (c *Config) normalize() {
	def := DefaultConfig()
	if c.Chat.PageSize <= 0 {
		c.Chat.PageSize = def.Chat.PageSize
	}
	if c.Chat.ScrollThreshold < 0 {
		c.Chat.ScrollThreshold = def.Chat.ScrollThreshold
	}
	if c.Realtime.ReconnectAttempts < 0 {
		c.Realtime.ReconnectAttempts = 0
	}
	if c.Realtime.ReconnectDelay.Duration <= 0 {
		c.Realtime.ReconnectDelay = def.Realtime.ReconnectDelay
	}
	if c.Realtime.ReconnectMaxDelay.Duration < c.Realtime.ReconnectDelay.Duration {
		c.Realtime.ReconnectMaxDelay = c.Realtime.ReconnectDelay
	}
	if c.HTTP.RateBurst <= 0 {
		c.HTTP.RateBurst = 1
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MOJI_API_URL"); v != "" {
		cfg.Server.APIURL = v
	}

	if v := os.Getenv("MOJI_SOCKET_URL"); v != "" {
		cfg.Server.SocketURL = v
	}

	if v := os.Getenv("MOJI_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.PageSize = n
		}
	}

	if v := os.Getenv("MOJI_SCROLL_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.ScrollThreshold = n
		}
	}

	if v := os.Getenv("MOJI_RECONNECT_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Realtime.ReconnectAttempts = n
		}
	}

	if v := os.Getenv("MOJI_RECONNECT_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Realtime.ReconnectDelay = Duration{d}
		}
	}

	if v := os.Getenv("MOJI_HTTP_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Timeout = Duration{d}
		}
	}

	if v := os.Getenv("MOJI_HTTP_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.HTTP.RateLimit = f
		}
	}

	if v := os.Getenv("MOJI_HTTP_RATE_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateBurst = n
		}
	}
}

// DataDir returns the path to the moji data directory (~/.moji).
// MOJI_HOME overrides the location.
func DataDir() (string, error) {
	if v := os.Getenv("MOJI_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".moji"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
