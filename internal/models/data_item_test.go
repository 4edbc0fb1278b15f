// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataItemStoreUpsert(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	item := &DataItem{
		ID:        "twitter:1",
		Namespace: "twitter",
		Content:   "hello world",
		ItemDate:  "2025-08-01",
		Metadata:  map[string]any{"likes": float64(3)},
	}
	require.NoError(t, store.Upsert(ctx, item))

	got, err := store.GetByIDs(ctx, []string{"twitter:1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "twitter", got[0].Namespace)
	assert.Equal(t, "hello world", got[0].Content)
	assert.Equal(t, "text", got[0].ContentType)
	assert.Equal(t, IngestionCompleted, got[0].IngestionStatus)
	assert.Equal(t, EmbeddingPending, got[0].EmbeddingStatus)
	assert.Equal(t, map[string]any{"likes": float64(3)}, got[0].Metadata)

	// Same ID again replaces the content instead of erroring.
	item.Content = "updated content"
	require.NoError(t, store.Upsert(ctx, item))

	got, err = store.GetByIDs(ctx, []string{"twitter:1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "updated content", got[0].Content)
}

func TestDataItemStoreUpsertValidation(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	err := store.Upsert(ctx, &DataItem{Namespace: "twitter", Content: "x"})
	assert.Error(t, err)

	err = store.Upsert(ctx, &DataItem{ID: "twitter:1", Content: "x"})
	assert.Error(t, err)
}

func TestDataItemStoreGetByIDsPreservesMissing(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	require.NoError(t, store.Upsert(ctx, &DataItem{ID: "a", Namespace: "ns", Content: "x"}))

	got, err := store.GetByIDs(ctx, []string{"a", "does-not-exist"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestDataItemStoreGetByNamespacePagination(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Upsert(ctx, &DataItem{
			ID:        fmt.Sprintf("news:%d", i),
			Namespace: "news",
			Content:   fmt.Sprintf("article %d", i),
		}))
	}

	page, err := store.GetByNamespace(ctx, "news", 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.GetByNamespace(ctx, "news", 10, 2)
	require.NoError(t, err)
	assert.Len(t, rest, 3)

	other, err := store.GetByNamespace(ctx, "weather", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestDataItemStoreGetByDateAndRange(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	dates := []string{"2025-08-01", "2025-08-02", "2025-08-05"}
	for i, d := range dates {
		require.NoError(t, store.Upsert(ctx, &DataItem{
			ID:        fmt.Sprintf("item:%d", i),
			Namespace: "news",
			Content:   "x",
			ItemDate:  d,
		}))
	}

	byDate, err := store.GetByDate(ctx, "2025-08-02")
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "item:1", byDate[0].ID)

	inRange, err := store.GetByDateRange(ctx, "2025-08-01", "2025-08-02")
	require.NoError(t, err)
	assert.Len(t, inRange, 2)
}

func TestDataItemStoreStatusUpdates(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	require.NoError(t, store.Upsert(ctx, &DataItem{ID: "a", Namespace: "ns", Content: "x"}))

	require.NoError(t, store.UpdateEmbeddingStatus(ctx, "a", EmbeddingCompleted))
	require.NoError(t, store.UpdateIngestionStatus(ctx, "a", IngestionFailed))

	got, err := store.GetByIDs(ctx, []string{"a"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, EmbeddingCompleted, got[0].EmbeddingStatus)
	assert.Equal(t, IngestionFailed, got[0].IngestionStatus)

	err = store.UpdateEmbeddingStatus(ctx, "missing", EmbeddingCompleted)
	assert.True(t, errors.Is(err, ErrDataItemNotFound))
}

func TestDataItemStoreGetPendingEmbeddings(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Upsert(ctx, &DataItem{
			ID:        fmt.Sprintf("p:%d", i),
			Namespace: "ns",
			Content:   "x",
		}))
	}
	require.NoError(t, store.UpdateEmbeddingStatus(ctx, "p:1", EmbeddingCompleted))

	pending, err := store.GetPendingEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	limited, err := store.GetPendingEmbeddings(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestDataItemStoreAvailableDates(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	for i, d := range []string{"2025-08-02", "2025-08-01", "2025-08-02"} {
		require.NoError(t, store.Upsert(ctx, &DataItem{
			ID:        fmt.Sprintf("d:%d", i),
			Namespace: "ns",
			Content:   "x",
			ItemDate:  d,
		}))
	}

	dates, err := store.AvailableDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-02", "2025-08-01"}, dates)
}

func TestDataItemStoreDaysWithData(t *testing.T) {
	ctx := context.Background()
	store := NewDataItemStore(setupTestDB(t))

	dates := []string{"2025-08-01", "2025-08-01", "2025-08-15", "2025-09-01"}
	for i, d := range dates {
		require.NoError(t, store.Upsert(ctx, &DataItem{
			ID:        fmt.Sprintf("c:%d", i),
			Namespace: "ns",
			Content:   "x",
			ItemDate:  d,
		}))
	}

	days, err := store.DaysWithData(ctx, 2025, 8)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 15: 1}, days)
}
