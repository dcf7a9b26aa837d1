package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "UPLOADQ"

// defaults lists every configuration key. Registering all keys lets viper
// resolve them from the environment during Unmarshal.
var defaults = map[string]any{
	"server.port":                 8080,
	"server.log_level":            "info",
	"queue.abort_policy":          "wait_settle",
	"transport.endpoint":          "",
	"transport.field_name":        "file",
	"transport.progress_rate":     4.0,
	"transport.timeout":           "0s",
	"auth.token_secret":           "",
	"auth.token_lifetime_minutes": 15,
	"auth.issuer":                 "uploadq",
	"database.url":                "",
	"broker.url":                  "",
	"broker.exchange":             "",
	"watch.dir":                   "",
	"watch.debounce":              "500ms",
}

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config.yaml; a
// .env file in the working directory is loaded into the environment first.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}
