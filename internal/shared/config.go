package shared

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

// Environment variables that override values loaded from the config file.
const (
	EnvBaseURL       = "POSTER_API_BASE_URL"
	EnvToken         = "POSTER_API_TOKEN"
	EnvTimeout       = "POSTER_API_TIMEOUT"
	EnvRetryAttempts = "POSTER_RETRY_ATTEMPTS"
	EnvRetryDelay    = "POSTER_RETRY_DELAY"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	LogLevel string         `toml:"log_level"`
	API      APIConfig      `toml:"api"`
	Tracking TrackingConfig `toml:"tracking"`
	Database DatabaseConfig `toml:"database"`
	Poster   PosterDefaults `toml:"poster"`
}

// APIConfig contains connection settings for the poster API.
type APIConfig struct {
	BaseURL           string  `toml:"base_url"`
	Token             string  `toml:"token"`
	TimeoutMS         int     `toml:"timeout_ms"`
	RetryAttempts     int     `toml:"retry_attempts"`
	RetryDelayMS      int     `toml:"retry_delay_ms"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// TrackingConfig controls how job progress is followed (event stream, polling, or both).
type TrackingConfig struct {
	PreferStream         bool `toml:"prefer_stream"`
	FallbackTimeoutMS    int  `toml:"fallback_timeout_ms"`
	PollIntervalMS       int  `toml:"poll_interval_ms"`
	MaxReconnectAttempts int  `toml:"max_reconnect_attempts"`
	ReconnectDelayMS     int  `toml:"reconnect_delay_ms"`
}

// DatabaseConfig contains settings for the local job history cache.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// PosterDefaults holds the default poster settings applied when no flag or settings file overrides them.
type PosterDefaults struct {
	Language        string `toml:"language"`
	Orientation     string `toml:"orientation"`
	Size            string `toml:"size"`
	ProductPosition string `toml:"product_position"`
	BackgroundColor string `toml:"background_color"`
	MinimalPadding  bool   `toml:"minimal_padding"`
	UseCase         string `toml:"use_case"`
}

func (c APIConfig) Timeout() time.Duration    { return ms(c.TimeoutMS) }
func (c APIConfig) RetryDelay() time.Duration { return ms(c.RetryDelayMS) }

func (c TrackingConfig) FallbackTimeout() time.Duration { return ms(c.FallbackTimeoutMS) }
func (c TrackingConfig) PollInterval() time.Duration    { return ms(c.PollIntervalMS) }
func (c TrackingConfig) ReconnectDelay() time.Duration  { return ms(c.ReconnectDelayMS) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults, and unknown keys are rejected.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	meta, err := toml.Decode(string(data), config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownSetting, strings.Join(keys, ", "))
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate rejects values the client cannot run with.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.API.BaseURL) == "":
		return fmt.Errorf("%w: api.base_url is empty", ErrInvalidConfig)
	case c.API.TimeoutMS < 0:
		return fmt.Errorf("%w: api.timeout_ms must be >= 0", ErrInvalidConfig)
	case c.API.RetryAttempts < 0:
		return fmt.Errorf("%w: api.retry_attempts must be >= 0", ErrInvalidConfig)
	case c.Tracking.PollIntervalMS <= 0:
		return fmt.Errorf("%w: tracking.poll_interval_ms must be > 0", ErrInvalidConfig)
	case c.Tracking.FallbackTimeoutMS <= 0:
		return fmt.Errorf("%w: tracking.fallback_timeout_ms must be > 0", ErrInvalidConfig)
	case c.Tracking.MaxReconnectAttempts < 0:
		return fmt.Errorf("%w: tracking.max_reconnect_attempts must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv overrides API settings from the POSTER_* environment variables.
//
// lookup is usually [os.LookupEnv]; invalid numeric values are reported rather than ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvBaseURL); ok && v != "" {
		c.API.BaseURL = strings.TrimRight(v, "/")
	}
	if v, ok := lookup(EnvToken); ok && v != "" {
		c.API.Token = v
	}

	ints := []struct {
		key    string
		target *int
	}{
		{EnvTimeout, &c.API.TimeoutMS},
		{EnvRetryAttempts, &c.API.RetryAttempts},
		{EnvRetryDelay, &c.API.RetryDelayMS},
	}
	for _, in := range ints {
		v, ok := lookup(in.key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, in.key, v)
		}
		*in.target = n
	}

	return c.Validate()
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
