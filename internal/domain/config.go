// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Config represents the application configuration
type Config struct {
	Version       string
	Host          string `toml:"host" mapstructure:"host"`
	Port          int    `toml:"port" mapstructure:"port"`
	BaseURL       string `toml:"baseUrl" mapstructure:"baseUrl"`
	SessionSecret string `toml:"sessionSecret" mapstructure:"sessionSecret"`
	LogLevel      string `toml:"logLevel" mapstructure:"logLevel"`
	LogPath       string `toml:"logPath" mapstructure:"logPath"`
	LogMaxSize    int    `toml:"logMaxSize" mapstructure:"logMaxSize"`
	LogMaxBackups int    `toml:"logMaxBackups" mapstructure:"logMaxBackups"`
	DataDir       string `toml:"dataDir" mapstructure:"dataDir"`

	MetricsEnabled bool   `toml:"metricsEnabled" mapstructure:"metricsEnabled"`
	MetricsHost    string `toml:"metricsHost" mapstructure:"metricsHost"`
	MetricsPort    int    `toml:"metricsPort" mapstructure:"metricsPort"`

	// SupportedSchemaVersions is the set of protocol schema versions this
	// instance accepts. Read once at startup; manifests declaring any other
	// version are rejected before validation.
	SupportedSchemaVersions []string `toml:"supportedSchemaVersions" mapstructure:"supportedSchemaVersions"`

	// ImportConcurrency bounds how many import jobs run at once. Kept low on
	// purpose: extraction and validation are cheap, but asset upload and
	// record writes are bandwidth- and database-sensitive.
	ImportConcurrency int `toml:"importConcurrency" mapstructure:"importConcurrency"`

	// AssetUploadURL overrides the endpoint the import pipeline uploads
	// extracted assets to. Empty means the instance's own upload endpoint.
	AssetUploadURL string `toml:"assetUploadUrl" mapstructure:"assetUploadUrl"`
}

// SupportsSchemaVersion reports whether version is in the configured set.
func (c *Config) SupportsSchemaVersion(version string) bool {
	for _, v := range c.SupportedSchemaVersions {
		if strings.TrimSpace(v) == strings.TrimSpace(version) {
			return true
		}
	}
	return false
}

// Validate checks the settings a running server cannot do without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SessionSecret) == "" {
		return errors.New("sessionSecret is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if len(c.SupportedSchemaVersions) == 0 {
		return errors.New("supportedSchemaVersions must not be empty")
	}
	if c.ImportConcurrency < 1 {
		return errors.New("importConcurrency must be at least 1")
	}
	return nil
}
