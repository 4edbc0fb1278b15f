// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/memexd/memex/internal/api"
	"github.com/memexd/memex/internal/buildinfo"
	"github.com/memexd/memex/internal/config"
	"github.com/memexd/memex/internal/database"
	"github.com/memexd/memex/internal/metrics"
)

func RunServeCommand() *cobra.Command {
	var configDir string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the memex server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configDir)
		},
	}

	cmd.Flags().StringVar(&configDir, "config-dir", "", "Directory containing config.toml (default: OS config dir)")

	return cmd
}

func runServe(configDir string) error {
	if configDir == "" {
		configDir = config.GetDefaultConfigDir()
	}

	cfg, err := config.New(configDir)
	if err != nil {
		return err
	}

	if err := cfg.SetupLogging(); err != nil {
		return err
	}
	cfg.Watch()

	log.Info().
		Str("version", buildinfo.Version).
		Str("commit", buildinfo.Commit).
		Str("environment", cfg.Config.Environment).
		Msg("Starting memex")

	service, err := database.NewService(cfg.DatabasePath(), cfg.PoolConfig())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := api.NewServer(cfg, service)

	var metricsSrv *metrics.Server
	if cfg.Config.MetricsEnabled {
		manager := metrics.NewMetricsManager(service)
		metricsSrv = metrics.NewMetricsServer(manager, cfg.Config.MetricsHost, cfg.Config.MetricsPort, cfg.Config.MetricsBasicAuthUsers)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if metricsSrv != nil {
		g.Go(func() error {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("API server shutdown failed")
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Metrics server shutdown failed")
			}
		}
		return nil
	})

	err = g.Wait()

	// Close the pool only after the HTTP servers stop handing out leases.
	if closeErr := service.Close(); closeErr != nil {
		log.Error().Err(closeErr).Msg("Database service close failed")
	}

	log.Info().Msg("Shutdown complete")

	return err
}
