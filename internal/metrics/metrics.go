// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/memexd/memex/internal/database"
)

type MetricsManager struct {
	registry *prometheus.Registry
}

func NewMetricsManager(service *database.Service) *MetricsManager {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(database.NewMetricsCollector(service))

	log.Info().Msg("Metrics manager initialized with collectors")

	return &MetricsManager{
		registry: registry,
	}
}

func (m *MetricsManager) GetRegistry() *prometheus.Registry {
	return m.registry
}
