// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/memexd/memex/internal/dbinterface"
)

var ErrDataSourceNotFound = errors.New("data source not found")

// DataSource is a registered ingestion namespace ("twitter", "news", ...).
type DataSource struct {
	Namespace      string     `json:"namespace"`
	DisplayName    string     `json:"displayName"`
	Active         bool       `json:"active"`
	ItemCount      int64      `json:"itemCount"`
	LastIngestedAt *time.Time `json:"lastIngestedAt,omitempty"`
}

type DataSourceStore struct {
	db dbinterface.Querier
}

func NewDataSourceStore(db dbinterface.Querier) *DataSourceStore {
	return &DataSourceStore{db: db}
}

// Register creates or updates a source entry for the namespace. The item
// count is preserved on update.
func (s *DataSourceStore) Register(ctx context.Context, namespace, displayName string, active bool) error {
	if namespace == "" {
		return errors.New("namespace is required")
	}
	if displayName == "" {
		displayName = namespace
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO data_sources (namespace, display_name, active)
		VALUES (?, ?, ?)
		ON CONFLICT(namespace) DO UPDATE SET
			display_name = excluded.display_name,
			active = excluded.active
	`, namespace, displayName, BoolToSQLite(active))
	if err != nil {
		return fmt.Errorf("register data source %s: %w", namespace, err)
	}
	return nil
}

// ActiveNamespaces lists namespaces currently enabled for ingestion.
func (s *DataSourceStore) ActiveNamespaces(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace FROM data_sources
		WHERE active = 1
		ORDER BY namespace
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	namespaces := make([]string, 0)
	for rows.Next() {
		var ns string
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		namespaces = append(namespaces, ns)
	}
	return namespaces, rows.Err()
}

// All returns every registered source, active or not.
func (s *DataSourceStore) All(ctx context.Context) ([]*DataSource, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT namespace, display_name, active, item_count, last_ingested_at
		FROM data_sources
		ORDER BY namespace
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := make([]*DataSource, 0)
	for rows.Next() {
		var src DataSource
		var active int
		var lastIngested sql.NullTime

		if err := rows.Scan(&src.Namespace, &src.DisplayName, &active, &src.ItemCount, &lastIngested); err != nil {
			return nil, err
		}

		src.Active = active != 0
		if lastIngested.Valid {
			src.LastIngestedAt = &lastIngested.Time
		}
		sources = append(sources, &src)
	}
	return sources, rows.Err()
}

// UpdateItemCount records the item total for a namespace and stamps the
// last ingestion time.
func (s *DataSourceStore) UpdateItemCount(ctx context.Context, namespace string, count int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE data_sources
		SET item_count = ?, last_ingested_at = CURRENT_TIMESTAMP
		WHERE namespace = ?
	`, count, namespace)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDataSourceNotFound
	}
	return nil
}
