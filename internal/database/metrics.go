// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector exposes pool and service statistics to Prometheus on
// scrape, without the service pushing samples itself.
type MetricsCollector struct {
	service *Service

	poolTotalDesc      *prometheus.Desc
	poolAvailableDesc  *prometheus.Desc
	poolActiveDesc     *prometheus.Desc
	poolCreatedDesc    *prometheus.Desc
	poolClosedDesc     *prometheus.Desc
	healthFailuresDesc *prometheus.Desc
	operationsDesc     *prometheus.Desc
	operationsByOpDesc *prometheus.Desc
	operationsTimeDesc *prometheus.Desc
}

func NewMetricsCollector(service *Service) *MetricsCollector {
	return &MetricsCollector{
		service: service,
		poolTotalDesc: prometheus.NewDesc(
			"memex_db_pool_connections_total",
			"Current number of physical connections owned by the pool",
			nil, nil,
		),
		poolAvailableDesc: prometheus.NewDesc(
			"memex_db_pool_connections_available",
			"Connections currently idle on the free list",
			nil, nil,
		),
		poolActiveDesc: prometheus.NewDesc(
			"memex_db_pool_connections_active",
			"Connections currently leased to callers",
			nil, nil,
		),
		poolCreatedDesc: prometheus.NewDesc(
			"memex_db_pool_connections_created_total",
			"Lifetime count of connections created",
			nil, nil,
		),
		poolClosedDesc: prometheus.NewDesc(
			"memex_db_pool_connections_closed_total",
			"Lifetime count of connections closed",
			nil, nil,
		),
		healthFailuresDesc: prometheus.NewDesc(
			"memex_db_pool_health_check_failures_total",
			"Lifetime count of failed connection health probes",
			nil, nil,
		),
		operationsDesc: prometheus.NewDesc(
			"memex_db_operations_total",
			"Total instrumented database operations",
			nil, nil,
		),
		operationsByOpDesc: prometheus.NewDesc(
			"memex_db_operations_by_type_total",
			"Instrumented database operations by operation label",
			[]string{"operation"}, nil,
		),
		operationsTimeDesc: prometheus.NewDesc(
			"memex_db_operation_seconds_total",
			"Cumulative wall-clock time spent in instrumented operations",
			nil, nil,
		),
	}
}

func (c *MetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.poolTotalDesc
	ch <- c.poolAvailableDesc
	ch <- c.poolActiveDesc
	ch <- c.poolCreatedDesc
	ch <- c.poolClosedDesc
	ch <- c.healthFailuresDesc
	ch <- c.operationsDesc
	ch <- c.operationsByOpDesc
	ch <- c.operationsTimeDesc
}

func (c *MetricsCollector) Collect(ch chan<- prometheus.Metric) {
	metrics := c.service.GetPerformanceMetrics()

	ch <- prometheus.MustNewConstMetric(c.poolTotalDesc, prometheus.GaugeValue, float64(metrics.Pool.TotalConnections))
	ch <- prometheus.MustNewConstMetric(c.poolAvailableDesc, prometheus.GaugeValue, float64(metrics.Pool.AvailableConnections))
	ch <- prometheus.MustNewConstMetric(c.poolActiveDesc, prometheus.GaugeValue, float64(metrics.Pool.ActiveConnections))
	ch <- prometheus.MustNewConstMetric(c.poolCreatedDesc, prometheus.CounterValue, float64(metrics.Pool.TotalConnectionsCreated))
	ch <- prometheus.MustNewConstMetric(c.poolClosedDesc, prometheus.CounterValue, float64(metrics.Pool.TotalConnectionsClosed))
	ch <- prometheus.MustNewConstMetric(c.healthFailuresDesc, prometheus.CounterValue, float64(metrics.Pool.HealthCheckFailures))
	ch <- prometheus.MustNewConstMetric(c.operationsDesc, prometheus.CounterValue, float64(metrics.Performance.TotalOperations))
	ch <- prometheus.MustNewConstMetric(c.operationsTimeDesc, prometheus.CounterValue, metrics.Performance.TotalDuration.Seconds())

	for operation, count := range metrics.Performance.OperationsByType {
		ch <- prometheus.MustNewConstMetric(c.operationsByOpDesc, prometheus.CounterValue, float64(count), operation)
	}
}
