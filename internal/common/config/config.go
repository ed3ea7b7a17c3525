// internal/common/config/config.go
package config

import "time"

// Config is the main application configuration struct.
type Config struct {
	App     AppConfig     `mapstructure:"app"`
	Backend BackendConfig `mapstructure:"backend"`
	Push    PushConfig    `mapstructure:"push"`
	Bridge  BridgeConfig  `mapstructure:"bridge"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// --- Core App Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	Platform    string `mapstructure:"platform"`     // "android" or "ios"
	DeviceLabel string `mapstructure:"device_label"` // informational, sent on registration
}

// BackendConfig holds settings for the CRM REST backend.
type BackendConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"` // milliseconds
}

// GetTimeout returns the backend request timeout as a duration.
func (b BackendConfig) GetTimeout() time.Duration {
	return time.Duration(b.Timeout) * time.Millisecond
}

// PushConfig holds feed and presentation settings.
type PushConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	FeedLimit     int  `mapstructure:"feed_limit"`
	ToastsEnabled bool `mapstructure:"toasts_enabled"`
}

// BridgeConfig holds the Redis bridge the native shell publishes
// provider events on.
type BridgeConfig struct {
	Address        string `mapstructure:"address"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	MessageChannel string `mapstructure:"message_channel"`
	OpenedChannel  string `mapstructure:"opened_channel"`
	TokenChannel   string `mapstructure:"token_channel"`
}

// CacheConfig holds the device-local key-value cache settings.
type CacheConfig struct {
	Address   string `mapstructure:"address"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"`
}
