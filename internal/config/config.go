// Package config provides configuration management for PrepMate
package config

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/prepmate/prepmate/internal/api"
	"github.com/prepmate/prepmate/internal/avatar"
	"github.com/prepmate/prepmate/internal/session"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig   `mapstructure:"server"`
	Backend   api.Config     `mapstructure:"backend"`
	Interview session.Config `mapstructure:"interview"`
	Avatar    avatar.Config  `mapstructure:"avatar"`
	Store     StoreConfig    `mapstructure:"store"`
	Log       LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the browser-facing listener
type ServerConfig struct {
	Addr          string `mapstructure:"addr"`
	AllowedOrigin string `mapstructure:"allowed_origin"`
}

// StoreConfig configures the local database
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// LogConfig configures logging output
type LogConfig struct {
	Level   string `mapstructure:"level"`
	Dir     string `mapstructure:"dir"`
	Console bool   `mapstructure:"console"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Server: ServerConfig{
			Addr:          ":8765",
			AllowedOrigin: "",
		},
		Backend:   api.DefaultConfig(),
		Interview: session.DefaultConfig(),
		Avatar:    avatar.DefaultConfig(),
		Store: StoreConfig{
			Path: filepath.Join(home, ".prepmate", "prepmate.db"),
		},
		Log: LogConfig{
			Level:   "info",
			Dir:     filepath.Join(home, ".prepmate", "logs"),
			Console: true,
		},
	}
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	cfg := DefaultConfig()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return cfg, err
	}

	configDir := filepath.Join(homeDir, ".prepmate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return cfg, err
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")

	// Environment variable overrides
	viper.SetEnvPrefix("PREPMATE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, err
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// Watch reloads the config file on change and invokes the callback with the
// fresh configuration
func Watch(onChange func(*Config)) {
	viper.OnConfigChange(func(fsnotify.Event) {
		cfg := DefaultConfig()
		if err := viper.Unmarshal(cfg); err != nil {
			return
		}
		onChange(cfg)
	})
	viper.WatchConfig()
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".prepmate"), nil
}
