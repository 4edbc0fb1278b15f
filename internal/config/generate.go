// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# config.toml - memex

# Hostname / IP
#
# Default: "127.0.0.1"
#
host = "127.0.0.1"

# Port
#
# Default: 7337
#
port = 7337

# Environment preset: "production", "development", or "testing".
# Selects connection pool sizing and health monitoring defaults.
#
# Default: "development"
#
environment = "development"

# Data directory for the SQLite database.
# Empty means the config directory is used.
#
#dataDir = ""

# Log level
#
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
#
logLevel = "INFO"

# Log path. Empty logs to stderr only.
#
#logPath = "log/memex.log"

# Maximum log file size in MB before rotation.
#
#logMaxSize = 50

# Rotated log files to keep.
#
#logMaxBackups = 3

# Prometheus metrics server.
#
#metricsEnabled = false
#metricsHost = "127.0.0.1"
#metricsPort = 9074

# Optional basic auth for the metrics endpoint, "user:pass" comma separated.
#
#metricsBasicAuthUsers = ""

# Connection pool overrides. Zero defers to the environment preset.
#
#poolMaxConnections = 0
#poolMinConnections = 0
#poolConnectionTimeout = 0
`

// WriteDefaultConfig creates a commented config.toml at the given path,
// creating parent directories as needed.
func WriteDefaultConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config directory %s: %w", dir, err)
	}

	if err := os.WriteFile(configPath, []byte(configTemplate), 0o644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}

	return nil
}
