// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"sync"
	"time"
)

// PerformanceMetrics accumulates per-operation latency data for the service.
// Every instrumented call records its duration here, success or failure.
type PerformanceMetrics struct {
	mu               sync.Mutex
	totalOperations  int64
	totalDuration    time.Duration
	fastestOperation time.Duration
	slowestOperation time.Duration
	operationsByType map[string]int64
}

// PerformanceSnapshot is a point-in-time copy of the accumulated metrics.
type PerformanceSnapshot struct {
	TotalOperations  int64            `json:"totalOperations"`
	TotalDuration    time.Duration    `json:"totalDuration"`
	AverageDuration  time.Duration    `json:"averageDuration"`
	FastestOperation time.Duration    `json:"fastestOperation"`
	SlowestOperation time.Duration    `json:"slowestOperation"`
	OperationsByType map[string]int64 `json:"operationsByType"`
}

func NewPerformanceMetrics() *PerformanceMetrics {
	return &PerformanceMetrics{
		operationsByType: make(map[string]int64),
	}
}

// Record adds one observation under the given operation label.
func (m *PerformanceMetrics) Record(operation string, duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalOperations++
	m.totalDuration += duration
	m.operationsByType[operation]++

	if m.totalOperations == 1 || duration < m.fastestOperation {
		m.fastestOperation = duration
	}
	if duration > m.slowestOperation {
		m.slowestOperation = duration
	}
}

// Snapshot returns a copy of the current state. The contained map is owned
// by the caller.
func (m *PerformanceMetrics) Snapshot() PerformanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	byType := make(map[string]int64, len(m.operationsByType))
	for op, count := range m.operationsByType {
		byType[op] = count
	}

	snap := PerformanceSnapshot{
		TotalOperations:  m.totalOperations,
		TotalDuration:    m.totalDuration,
		FastestOperation: m.fastestOperation,
		SlowestOperation: m.slowestOperation,
		OperationsByType: byType,
	}
	if m.totalOperations > 0 {
		snap.AverageDuration = m.totalDuration / time.Duration(m.totalOperations)
	}
	return snap
}
