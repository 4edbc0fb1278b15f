// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/memexd/memex/internal/config"
)

func RunGenerateConfigCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "generate-config",
		Short: "Generate a default config.toml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configDir == "" {
				configDir = config.GetDefaultConfigDir()
			}

			configPath := filepath.Join(configDir, "config.toml")

			if _, err := os.Stat(configPath); err == nil {
				cmd.Printf("Config file already exists at %s. Skipping generation.\n", configPath)
				return nil
			}

			if err := config.WriteDefaultConfig(configPath); err != nil {
				return err
			}

			cmd.Printf("Config file generated at %s\n", configPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory to write config.toml to (default: OS config dir)")

	return cmd
}
