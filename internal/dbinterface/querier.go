// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package dbinterface provides database interfaces to avoid import cycles.
// This package has no dependencies and can be imported by both database
// implementations and models.
package dbinterface

import (
	"context"
	"database/sql"
)

// Querier is the centralized interface for database operations. It is
// implemented by a pooled connection lease, by *sql.DB, and by *sql.Tx,
// so row-scanning helpers and stores work against any of them.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxQuerier extends Querier with transaction control. It is implemented
// by *sql.Tx.
type TxQuerier interface {
	Querier
	Commit() error
	Rollback() error
}

// TxBeginner is implemented by connection handles that can open a
// transaction, such as a pooled connection lease.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
