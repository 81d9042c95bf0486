package libtzmeet

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/njt/tzmeet/internal/logutil"
)

// DefaultListenAddr is where `tzmeet serve` listens unless configured
const DefaultListenAddr = "127.0.0.1:8080"

// Config represents the application configuration
type Config struct {
	Endpoint          string  `toml:"endpoint,omitempty"`
	TimeoutMS         int     `toml:"timeout_ms,omitempty"`
	DSTAmbiguity      string  `toml:"dst_ambiguity,omitempty"`
	RequestsPerSecond float64 `toml:"requests_per_second,omitempty"`
	OriginZone        string  `toml:"origin_zone,omitempty"` // IANA name for the origin readable time
	ListenAddr        string  `toml:"listen_addr,omitempty"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	return &Config{
		Endpoint:   DefaultBaseURL,
		TimeoutMS:  int(DefaultTimeout / time.Millisecond),
		OriginZone: "UTC",
		ListenAddr: DefaultListenAddr,
	}
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	d := DefaultConfig()
	if c.Endpoint == "" {
		c.Endpoint = d.Endpoint
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = d.TimeoutMS
	}
	if c.OriginZone == "" {
		c.OriginZone = d.OriginZone
	}
	if c.ListenAddr == "" {
		c.ListenAddr = d.ListenAddr
	}
}

// Timeout returns the per-call timeout
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// OriginLocation loads the configured origin zone
func (c *Config) OriginLocation() (*time.Location, error) {
	if c.OriginZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.OriginZone)
	if err != nil {
		return nil, fmt.Errorf("invalid origin_zone %q: %w", c.OriginZone, err)
	}
	return loc, nil
}

// ClientOptions builds conversion client options from the configuration
func (c *Config) ClientOptions(logger *slog.Logger) ClientOptions {
	return ClientOptions{
		BaseURL:           c.Endpoint,
		Timeout:           c.Timeout(),
		DSTAmbiguity:      c.DSTAmbiguity,
		RequestsPerSecond: c.RequestsPerSecond,
		Logger:            logger,
	}
}

// ConfigManager handles configuration persistence
type ConfigManager struct {
	configPath string
	logger     *slog.Logger
}

// NewConfigManager creates a configuration manager rooted at ~/.tzmeet
func NewConfigManager(logger *slog.Logger) (*ConfigManager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".tzmeet")
	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	return NewConfigManagerAt(filepath.Join(configDir, "config.toml"), logger), nil
}

// NewConfigManagerAt creates a configuration manager for an explicit file
func NewConfigManagerAt(path string, logger *slog.Logger) *ConfigManager {
	return &ConfigManager{
		configPath: path,
		logger:     logutil.NoopIfNil(logger),
	}
}

// Path returns the configuration file path
func (cm *ConfigManager) Path() string {
	return cm.configPath
}

// Save saves the configuration to disk
func (cm *ConfigManager) Save(config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(cm.configPath, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// Load loads the configuration from disk, returning defaults if it is missing
func (cm *ConfigManager) Load() (*Config, error) {
	data, err := os.ReadFile(cm.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	md, err := toml.Decode(string(data), &config)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		cm.logger.Warn("config file contains undecoded keys", "path", cm.configPath, "keys", strings.Join(keys, ","))
	}

	config.applyDefaults()
	return &config, nil
}
