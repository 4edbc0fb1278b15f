// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewSettingStore(setupTestDB(t))

	require.NoError(t, store.Set(ctx, "theme", "dark"))

	var theme string
	found, err := store.Get(ctx, "theme", &theme)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "dark", theme)
}

func TestSettingStoreNestedValue(t *testing.T) {
	ctx := context.Background()
	store := NewSettingStore(setupTestDB(t))

	type sync struct {
		Enabled  bool     `json:"enabled"`
		Interval int      `json:"interval"`
		Sources  []string `json:"sources"`
	}

	in := sync{Enabled: true, Interval: 30, Sources: []string{"twitter", "news"}}
	require.NoError(t, store.Set(ctx, "sync", in))

	var out sync
	found, err := store.Get(ctx, "sync", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, in, out)
}

func TestSettingStoreMissingKeyKeepsDefault(t *testing.T) {
	ctx := context.Background()
	store := NewSettingStore(setupTestDB(t))

	value := "fallback"
	found, err := store.Get(ctx, "does-not-exist", &value)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "fallback", value)
}

func TestSettingStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewSettingStore(setupTestDB(t))

	require.NoError(t, store.Set(ctx, "limit", 10))
	require.NoError(t, store.Set(ctx, "limit", 25))

	var limit int
	found, err := store.Get(ctx, "limit", &limit)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 25, limit)
}
