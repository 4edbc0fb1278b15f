// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads application configuration from config.toml with
// environment-variable overrides, and owns logger setup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/memexd/memex/internal/database"
)

const envPrefix = "MEMEX__"

// Config is the application configuration as read from config.toml.
type Config struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	BaseURL     string `mapstructure:"baseUrl"`
	Environment string `mapstructure:"environment"`

	DataDir string `mapstructure:"dataDir"`

	LogLevel      string `mapstructure:"logLevel"`
	LogPath       string `mapstructure:"logPath"`
	LogMaxSize    int    `mapstructure:"logMaxSize"`
	LogMaxBackups int    `mapstructure:"logMaxBackups"`

	MetricsEnabled        bool   `mapstructure:"metricsEnabled"`
	MetricsHost           string `mapstructure:"metricsHost"`
	MetricsPort           int    `mapstructure:"metricsPort"`
	MetricsBasicAuthUsers string `mapstructure:"metricsBasicAuthUsers"`

	// Optional pool overrides; zero values defer to the environment preset.
	PoolMaxConnections    int `mapstructure:"poolMaxConnections"`
	PoolMinConnections    int `mapstructure:"poolMinConnections"`
	PoolConnectionTimeout int `mapstructure:"poolConnectionTimeout"` // seconds
}

// AppConfig couples the parsed Config with the viper instance that produced
// it so the config file can be watched and re-read.
type AppConfig struct {
	Config *Config
	viper  *viper.Viper
}

// New loads configuration from configDir, generating a commented default
// config.toml on first run.
func New(configDir string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	if err := c.load(configDir); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(&c.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "127.0.0.1")
	c.viper.SetDefault("port", 7337)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("environment", "development")
	c.viper.SetDefault("dataDir", "")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9074)
	c.viper.SetDefault("metricsBasicAuthUsers", "")
	c.viper.SetDefault("poolMaxConnections", 0)
	c.viper.SetDefault("poolMinConnections", 0)
	c.viper.SetDefault("poolConnectionTimeout", 0)
}

func (c *AppConfig) load(configDir string) error {
	c.viper.SetConfigType("toml")

	if configDir == "" {
		configDir = GetDefaultConfigDir()
	}

	configPath := filepath.Join(configDir, "config.toml")
	c.viper.SetConfigFile(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if writeErr := WriteDefaultConfig(configPath); writeErr != nil {
			return writeErr
		}
	}

	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", configPath, err)
	}

	c.bindEnv()

	return nil
}

// bindEnv maps MEMEX__* environment variables onto config keys so container
// deployments can override the file.
func (c *AppConfig) bindEnv() {
	for _, key := range c.viper.AllKeys() {
		envKey := envPrefix + strings.ToUpper(key)
		if value, ok := os.LookupEnv(envKey); ok {
			c.viper.Set(key, value)
		}
	}
}

// Watch re-reads the config file on change and applies the values that are
// safe to change at runtime (currently the log level).
func (c *AppConfig) Watch() {
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Debug().Msgf("Config file changed: %s", e.Name)

		if err := c.viper.Unmarshal(&c.Config); err != nil {
			log.Error().Err(err).Msg("Failed to reload config file")
			return
		}

		SetLogLevel(c.Config.LogLevel)
	})
	c.viper.WatchConfig()
}

// DatabasePath returns the location of the SQLite file, rooted in DataDir
// (or the config directory when DataDir is empty).
func (c *AppConfig) DatabasePath() string {
	dataDir := c.Config.DataDir
	if dataDir == "" {
		dataDir = filepath.Dir(c.viper.ConfigFileUsed())
	}
	return filepath.Join(dataDir, "memex.db")
}

// PoolConfig resolves the environment preset and applies any explicit
// overrides from config.toml.
func (c *AppConfig) PoolConfig() database.PoolConfig {
	cfg := database.PoolConfigForEnvironment(c.Config.Environment)

	if c.Config.PoolMaxConnections > 0 {
		cfg.MaxConnections = c.Config.PoolMaxConnections
	}
	if c.Config.PoolMinConnections > 0 {
		cfg.MinConnections = c.Config.PoolMinConnections
	}
	if c.Config.PoolConnectionTimeout > 0 {
		cfg.ConnectionTimeout = time.Duration(c.Config.PoolConnectionTimeout) * time.Second
	}

	return cfg
}

// GetDefaultConfigDir resolves the platform config directory, honoring
// XDG_CONFIG_HOME and the /config Docker convention.
func GetDefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		if xdg == "/config" {
			return xdg
		}
		return filepath.Join(xdg, "memex")
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "memex")
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "memex")
}
