package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// APIConfig points at the marketplace REST API.
type APIConfig struct {
	// BaseURL is the API root; endpoints are resolved below it.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"required,url"`

	// TimeoutSec bounds every HTTP round trip.
	TimeoutSec int `mapstructure:"timeout_sec" yaml:"timeout_sec" validate:"gte=1"`

	// RefreshSec is the background refresh interval; 0 disables it.
	RefreshSec int `mapstructure:"refresh_sec" yaml:"refresh_sec" validate:"gte=0"`
}

// WalletConfig identifies the connected wallet. An empty address means
// no wallet is connected.
type WalletConfig struct {
	Address string `mapstructure:"address" yaml:"address"`
}

// PushConfig holds the push-service settings.
type PushConfig struct {
	// VAPIDPublicKey is the server-provided application key, base64url.
	VAPIDPublicKey string `mapstructure:"vapid_public_key" yaml:"vapid_public_key"`

	// ServiceURL is the push service that issues endpoints. Push is
	// unsupported when empty.
	ServiceURL string `mapstructure:"service_url" yaml:"service_url" validate:"omitempty,url"`
}

// FeedConfig selects where incoming notification events come from.
type FeedConfig struct {
	// Mode is "simulated", "websocket" or "off".
	Mode string `mapstructure:"mode" yaml:"mode" validate:"oneof=simulated websocket off"`

	// URL is the WebSocket endpoint used in websocket mode.
	URL string `mapstructure:"url" yaml:"url" validate:"omitempty,url"`

	// IntervalSec is the tick of the simulated source and the reconnect
	// delay of the WebSocket source.
	IntervalSec int `mapstructure:"interval_sec" yaml:"interval_sec" validate:"gte=1"`

	// Probability is the chance of the simulated source emitting per tick.
	Probability float64 `mapstructure:"probability" yaml:"probability" validate:"gte=0,lte=1"`

	// Seed makes the simulated source deterministic when non-zero.
	Seed int64 `mapstructure:"seed" yaml:"seed"`
}

// SoundConfig configures the audible delivery channel.
type SoundConfig struct {
	// File is an MP3 played on admission. Sound is silent when empty.
	File   string  `mapstructure:"file" yaml:"file"`
	Volume float64 `mapstructure:"volume" yaml:"volume" validate:"gte=0,lte=1"`
}

// StorageConfig locates the local state database.
type StorageConfig struct {
	Path string `mapstructure:"path" yaml:"path" validate:"required"`
}

// NotificationsConfig bounds the in-memory store.
type NotificationsConfig struct {
	MaxEntries int `mapstructure:"max_entries" yaml:"max_entries" validate:"gte=1"`
}

// LogConfig controls logrus output.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	File  string `mapstructure:"file" yaml:"file"`
}

// MetricsConfig exposes Prometheus metrics when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	API           APIConfig           `mapstructure:"api" yaml:"api"`
	Wallet        WalletConfig        `mapstructure:"wallet" yaml:"wallet"`
	Push          PushConfig          `mapstructure:"push" yaml:"push"`
	Feed          FeedConfig          `mapstructure:"feed" yaml:"feed"`
	Sound         SoundConfig         `mapstructure:"sound" yaml:"sound"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Notifications NotificationsConfig `mapstructure:"notifications" yaml:"notifications"`
	Log           LogConfig           `mapstructure:"log" yaml:"log"`
	Metrics       MetricsConfig       `mapstructure:"metrics" yaml:"metrics"`
}

// ConfigDir returns ~/.config/cfish-notify, or the working directory when
// the home directory cannot be resolved.
func ConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "cfish-notify")
}

// DefaultConfigPath returns the default path for the configuration file.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// SetConfigDefaults registers the default value of every key on v.
func SetConfigDefaults(v *viper.Viper) {
	dir := ConfigDir()
	v.SetDefault("api.base_url", "https://api.example.com")
	v.SetDefault("api.timeout_sec", 30)
	v.SetDefault("api.refresh_sec", 60)
	v.SetDefault("feed.mode", "simulated")
	v.SetDefault("feed.interval_sec", 10)
	v.SetDefault("feed.probability", 0.3)
	v.SetDefault("sound.volume", 0.3)
	v.SetDefault("storage.path", filepath.Join(dir, "state.db"))
	v.SetDefault("notifications.max_entries", 50)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", filepath.Join(dir, "notify.log"))
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	v := viper.New()
	SetConfigDefaults(v)
	cfg := &AppConfig{}
	// Unmarshalling plain defaults cannot fail.
	_ = v.Unmarshal(cfg)
	return cfg
}

// LoadConfig reads configuration from the given YAML file path using v,
// which may already carry bound command-line flags. A missing file yields
// the defaults (plus any flag overrides).
func LoadConfig(v *viper.Viper, path string) (*AppConfig, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	SetConfigDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field constraints and cross-field rules.
func (c *AppConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Feed.Mode == "websocket" && c.Feed.URL == "" {
		return fmt.Errorf("feed.url is required in websocket mode")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("api", cfg.API)
	v.Set("wallet", cfg.Wallet)
	v.Set("push", cfg.Push)
	v.Set("feed", cfg.Feed)
	v.Set("sound", cfg.Sound)
	v.Set("storage", cfg.Storage)
	v.Set("notifications", cfg.Notifications)
	v.Set("log", cfg.Log)
	v.Set("metrics", cfg.Metrics)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
