// Package config loads configuration for the hub and the agents from an
// optional YAML file plus SECURENEST_-prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Tracker TrackerConfig `mapstructure:"tracker"`
	Watcher WatcherConfig `mapstructure:"watcher"`
}

// ServerConfig configures the hub binary.
type ServerConfig struct {
	Addr             string        `mapstructure:"addr"`
	DBPath           string        `mapstructure:"db_path"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	VAPIDPublicKey   string        `mapstructure:"vapid_public_key"`
	VAPIDPrivateKey  string        `mapstructure:"vapid_private_key"`
	HistoryRetention time.Duration `mapstructure:"history_retention"`
	PresenceTimeout  time.Duration `mapstructure:"presence_timeout"`
}

// TrackerConfig configures the child-side agent.
type TrackerConfig struct {
	ServerURL  string `mapstructure:"server_url"`
	RelayURL   string `mapstructure:"relay_url"`
	StatePath  string `mapstructure:"state_path"`
	APIToken   string `mapstructure:"api_token"`
	FamilyCode string `mapstructure:"family_code"`
	LogLevel   string `mapstructure:"log_level"`
}

// WatcherConfig configures the parent-side agent.
type WatcherConfig struct {
	ServerURL string `mapstructure:"server_url"`
	RelayURL  string `mapstructure:"relay_url"`
	StatePath string `mapstructure:"state_path"`
	APIToken  string `mapstructure:"api_token"`
	ClerkID   string `mapstructure:"clerk_id"`
	LogLevel  string `mapstructure:"log_level"`
}

// Load reads configuration. path selects an explicit config file; when empty
// the default search paths are used and a missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("securenest")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/securenest")
	if path != "" {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("SECURENEST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":3000")
	v.SetDefault("server.db_path", "securenest.db")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "text")
	v.SetDefault("server.history_retention", 30*24*time.Hour)
	v.SetDefault("server.presence_timeout", 90*time.Second)

	v.SetDefault("tracker.server_url", "http://localhost:3000")
	v.SetDefault("tracker.relay_url", "ws://localhost:3000/ws")
	v.SetDefault("tracker.state_path", "tracker-state.db")
	v.SetDefault("tracker.log_level", "info")

	v.SetDefault("watcher.server_url", "http://localhost:3000")
	v.SetDefault("watcher.relay_url", "ws://localhost:3000/ws")
	v.SetDefault("watcher.state_path", "watcher-state.db")
	v.SetDefault("watcher.log_level", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
