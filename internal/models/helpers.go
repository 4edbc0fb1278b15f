// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
)

// BoolToSQLite converts a bool to SQLite integer representation (0 or 1).
func BoolToSQLite(v bool) int {
	if v {
		return 1
	}
	return 0
}

// EncodeMetadataJSON marshals item metadata for storage. Nil or empty maps
// are stored as NULL so absent metadata round-trips as nil.
func EncodeMetadataJSON(metadata map[string]any) (sql.NullString, error) {
	if len(metadata) == 0 {
		return sql.NullString{}, nil
	}
	payload, err := json.Marshal(metadata)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode metadata: %w", err)
	}
	return sql.NullString{String: string(payload), Valid: true}, nil
}

// DecodeMetadataJSON unmarshals stored metadata. NULL and empty database
// values decode to nil.
func DecodeMetadataJSON(raw sql.NullString) (map[string]any, error) {
	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal([]byte(raw.String), &metadata); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return metadata, nil
}

// inPlaceholders returns "?, ?, ?" for n values.
func inPlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// toAnySlice converts string arguments for variadic query parameters.
func toAnySlice(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	return args
}
