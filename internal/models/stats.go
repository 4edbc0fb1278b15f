// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

// DatabaseStats aggregates item counts for the operational API.
type DatabaseStats struct {
	TotalItems        int64            `json:"totalItems"`
	ItemsByNamespace  map[string]int64 `json:"itemsByNamespace"`
	PendingEmbeddings int64            `json:"pendingEmbeddings"`
	ChatMessages      int64            `json:"chatMessages"`
	DataSources       int64            `json:"dataSources"`
}

// MigrationStatus reports which schema migrations have been applied.
type MigrationStatus struct {
	Applied []string `json:"applied"`
	Pending []string `json:"pending"`
	Current string   `json:"current,omitempty"`
}
