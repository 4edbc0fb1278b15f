// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatMessageStoreInsert(t *testing.T) {
	ctx := context.Background()
	store := NewChatMessageStore(setupTestDB(t))

	msg, err := store.Insert(ctx, "", "user", "what happened today?", map[string]any{"model": "local"})
	require.NoError(t, err)
	assert.NotZero(t, msg.ID)
	assert.Equal(t, DefaultChatSession, msg.SessionID)
	assert.False(t, msg.CreatedAt.IsZero())

	_, err = store.Insert(ctx, "", "", "missing role", nil)
	assert.Error(t, err)
}

func TestChatMessageStoreHistoryChronological(t *testing.T) {
	ctx := context.Background()
	store := NewChatMessageStore(setupTestDB(t))

	for i := 0; i < 5; i++ {
		_, err := store.Insert(ctx, "s1", "user", fmt.Sprintf("message %d", i), nil)
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, "s2", "user", "other session", nil)
	require.NoError(t, err)

	// Limit keeps the newest messages but returns them oldest first.
	history, err := store.History(ctx, "s1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, "message 2", history[0].Content)
	assert.Equal(t, "message 4", history[2].Content)
}

func TestChatMessageStoreHistoryMetadata(t *testing.T) {
	ctx := context.Background()
	store := NewChatMessageStore(setupTestDB(t))

	_, err := store.Insert(ctx, "s1", "assistant", "answer", map[string]any{"tokens": float64(120)})
	require.NoError(t, err)
	_, err = store.Insert(ctx, "s1", "user", "question", nil)
	require.NoError(t, err)

	history, err := store.History(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, map[string]any{"tokens": float64(120)}, history[0].Metadata)
	assert.Nil(t, history[1].Metadata)
}
