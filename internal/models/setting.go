// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/memexd/memex/internal/dbinterface"
)

// SettingStore persists application settings as JSON values so nested
// structures round-trip without a schema change.
type SettingStore struct {
	db dbinterface.Querier
}

func NewSettingStore(db dbinterface.Querier) *SettingStore {
	return &SettingStore{db: db}
}

// Set stores value under key, replacing any previous value.
func (s *SettingStore) Set(ctx context.Context, key string, value any) error {
	if key == "" {
		return errors.New("setting key is required")
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode setting %s: %w", key, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`, key, string(payload))
	if err != nil {
		return fmt.Errorf("set setting %s: %w", key, err)
	}
	return nil
}

// Get unmarshals the stored value for key into out. Returns false and leaves
// out untouched when the key does not exist, so callers keep their default.
func (s *SettingStore) Get(ctx context.Context, key string, out any) (bool, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("decode setting %s: %w", key, err)
	}
	return true, nil
}
