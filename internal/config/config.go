package config

import "time"

// Config holds all application configuration.
// Settings are grouped by the component that consumes them.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Queue     QueueConfig     `mapstructure:"queue"     validate:"required"`
	Transport TransportConfig `mapstructure:"transport" validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// ServerConfig contains the control API and logging settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// QueueConfig contains upload queue settings.
type QueueConfig struct {
	// AbortPolicy is either "wait_settle" or "release_slot"
	AbortPolicy string `mapstructure:"abort_policy" validate:"required,oneof=wait_settle release_slot"`
}

// TransportConfig contains settings for the HTTP upload transport.
type TransportConfig struct {
	Endpoint  string `mapstructure:"endpoint"   validate:"required,url"`
	FieldName string `mapstructure:"field_name" validate:"required"`
	// ProgressRate caps progress updates per second
	ProgressRate float64       `mapstructure:"progress_rate" validate:"gt=0"`
	Timeout      time.Duration `mapstructure:"timeout"       validate:"gte=0"`
}

// AuthConfig contains settings for the upload tokens minted before each upload.
type AuthConfig struct {
	TokenSecret          string `mapstructure:"token_secret"           validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"required,gt=0"`
	Issuer               string `mapstructure:"issuer"                 validate:"required"`
}

// DatabaseConfig enables the upload history store when URL is set.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// BrokerConfig enables AMQP notifications when URL is set.
type BrokerConfig struct {
	URL      string `mapstructure:"url"      validate:"omitempty,url"`
	Exchange string `mapstructure:"exchange" validate:"required_with=URL"`
}

// WatchConfig enables the directory watcher when Dir is set.
type WatchConfig struct {
	Dir string `mapstructure:"dir"`
	// Debounce is how long a file must stay unchanged before it is enqueued
	Debounce time.Duration `mapstructure:"debounce" validate:"gte=0"`
}
