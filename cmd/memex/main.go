// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memexd/memex/internal/buildinfo"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "memex",
		Short: "Personal data aggregation service",
		Long: `memex collects personal data from multiple sources into a single
SQLite database and serves it over HTTP, with a connection pool and
per-operation performance instrumentation.`,
	}

	rootCmd.AddCommand(RunServeCommand())
	rootCmd.AddCommand(RunVersionCommand())
	rootCmd.AddCommand(RunGenerateConfigCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func RunVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Print(buildinfo.String())
		},
	}
}
