// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package config loads the application configuration from a TOML file with
// PROTOVAULT__-prefixed environment overrides.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/protovault/protovault/internal/domain"
)

const envPrefix = "PROTOVAULT"

// AppConfig wraps the loaded configuration and the location it came from.
type AppConfig struct {
	Config     *domain.Config
	viper      *viper.Viper
	configPath string
}

// New loads configuration from configPath. An empty path uses the default
// location (~/.config/protovault/config.toml), creating a default config file
// on first run.
func New(configPath, version string) (*AppConfig, error) {
	c := &AppConfig{
		viper: viper.New(),
		Config: &domain.Config{
			Version: version,
		},
	}

	c.defaults()

	if err := c.load(configPath); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	c.Config.Version = version

	if c.Config.DataDir == "" {
		c.Config.DataDir = filepath.Join(filepath.Dir(c.configPath), "data")
	}

	return c, nil
}

func (c *AppConfig) defaults() {
	c.viper.SetDefault("host", "127.0.0.1")
	c.viper.SetDefault("port", 7575)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9575)
	c.viper.SetDefault("supportedSchemaVersions", []string{"7", "8"})
	c.viper.SetDefault("importConcurrency", 2)
	c.viper.SetDefault("assetUploadUrl", "")
}

func (c *AppConfig) load(configPath string) error {
	c.viper.SetConfigType("toml")
	c.viper.SetEnvPrefix(envPrefix)
	c.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	c.viper.AutomaticEnv()

	if configPath == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("resolve config dir: %w", err)
		}
		configPath = filepath.Join(dir, "protovault", "config.toml")
	}

	if info, err := os.Stat(configPath); err == nil && info.IsDir() {
		configPath = filepath.Join(configPath, "config.toml")
	}
	c.configPath = configPath

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := c.writeDefaultConfig(configPath); err != nil {
			return err
		}
	}

	c.viper.SetConfigFile(configPath)
	if err := c.viper.ReadInConfig(); err != nil {
		return fmt.Errorf("read config %s: %w", configPath, err)
	}

	return nil
}

// ConfigPath returns the resolved path of the loaded config file.
func (c *AppConfig) ConfigPath() string {
	return c.configPath
}

// DatabasePath returns the SQLite database location: next to the config file
// unless overridden by databasePath.
func (c *AppConfig) DatabasePath() string {
	if p := c.viper.GetString("databasePath"); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(c.configPath), "protovault.db")
}

func (c *AppConfig) writeDefaultConfig(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	secret, err := generateSecret()
	if err != nil {
		return err
	}

	content := fmt.Sprintf(`# protovault configuration

# Hostname / IP
host = "127.0.0.1"

# Port
port = 7575

# Base URL for reverse proxy subfolder setups
baseUrl = "/"

# Session secret (auto-generated)
sessionSecret = "%s"

# Log level: ERROR, DEBUG, INFO, WARN, TRACE
logLevel = "INFO"

# Protocol schema versions this instance accepts
supportedSchemaVersions = ["7", "8"]

# Concurrent import jobs
importConcurrency = 2
`, secret)

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	log.Info().Str("path", path).Msg("Created default config file")
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
