// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/memexd/memex/internal/dbinterface"
)

// mockQuerier wraps sql.DB to implement dbinterface.Querier for tests
type mockQuerier struct {
	*sql.DB
}

// mockTx wraps sql.Tx to implement dbinterface.TxQuerier for tests
type mockTx struct {
	*sql.Tx
}

func (m *mockTx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return m.Tx.ExecContext(ctx, query, args...)
}

func (m *mockTx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return m.Tx.QueryContext(ctx, query, args...)
}

func (m *mockTx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return m.Tx.QueryRowContext(ctx, query, args...)
}

func (m *mockTx) Commit() error {
	return m.Tx.Commit()
}

func (m *mockTx) Rollback() error {
	return m.Tx.Rollback()
}

func newMockQuerier(db *sql.DB) *mockQuerier {
	return &mockQuerier{
		DB: db,
	}
}

func (m *mockQuerier) BeginTx(ctx context.Context, opts *sql.TxOptions) (dbinterface.TxQuerier, error) {
	tx, err := m.DB.BeginTx(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &mockTx{Tx: tx}, nil
}

// setupTestDB opens an in-memory SQLite database with the full application
// schema applied.
func setupTestDB(t *testing.T) *mockQuerier {
	t.Helper()

	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	_, err = sqlDB.Exec(`
		PRAGMA foreign_keys = ON;
		CREATE TABLE data_items (
			id TEXT PRIMARY KEY,
			namespace TEXT NOT NULL,
			content TEXT NOT NULL,
			content_type TEXT NOT NULL DEFAULT 'text',
			metadata TEXT,
			item_date TEXT,
			ingestion_status TEXT NOT NULL DEFAULT 'completed',
			embedding_status TEXT NOT NULL DEFAULT 'pending',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_data_items_namespace ON data_items(namespace);
		CREATE INDEX idx_data_items_item_date ON data_items(item_date);
		CREATE INDEX idx_data_items_embedding_status ON data_items(embedding_status);
		CREATE TABLE data_sources (
			namespace TEXT PRIMARY KEY,
			display_name TEXT NOT NULL,
			active INTEGER NOT NULL DEFAULT 1,
			item_count INTEGER NOT NULL DEFAULT 0,
			last_ingested_at TIMESTAMP
		);
		CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE TABLE chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL DEFAULT 'default',
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			metadata TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX idx_chat_messages_session ON chat_messages(session_id, created_at);
	`)
	require.NoError(t, err)

	return newMockQuerier(sqlDB)
}
