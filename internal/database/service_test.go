// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memexd/memex/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	service, err := NewService(filepath.Join(t.TempDir(), "memex.db"), TestingPoolConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	return service
}

func TestNewServiceRunsMigrations(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	status, err := service.GetMigrationStatus(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, status.Applied)
	assert.Empty(t, status.Pending)
	assert.Equal(t, status.Applied[len(status.Applied)-1], status.Current)
}

func TestNewServiceIsIdempotentOnExistingDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "memex.db")

	service, err := NewService(path, TestingPoolConfig())
	require.NoError(t, err)
	require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{ID: "a", Namespace: "ns", Content: "x"}))
	require.NoError(t, service.Close())

	// Reopening against the same file must not re-apply migrations or lose
	// data.
	service, err = NewService(path, TestingPoolConfig())
	require.NoError(t, err)
	defer service.Close()

	items, err := service.GetDataItemsByIDs(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestServiceStoreAndFetchDataItem(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	item := &models.DataItem{
		ID:        "twitter:1",
		Namespace: "twitter",
		Content:   "hello",
		ItemDate:  "2025-08-01",
		Metadata:  map[string]any{"likes": float64(3)},
	}
	require.NoError(t, service.StoreDataItem(ctx, item))

	got, err := service.GetDataItemsByIDs(ctx, []string{"twitter:1"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Content)
	assert.Equal(t, map[string]any{"likes": float64(3)}, got[0].Metadata)

	byNamespace, err := service.GetDataItemsByNamespace(ctx, "twitter", 10, 0)
	require.NoError(t, err)
	assert.Len(t, byNamespace, 1)

	byDate, err := service.GetDataItemsByDate(ctx, "2025-08-01")
	require.NoError(t, err)
	assert.Len(t, byDate, 1)
}

func TestServiceGetDataItemsByIDsEmptyInput(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	items, err := service.GetDataItemsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)

	// The empty fast path still counts as an operation.
	metrics := service.GetPerformanceMetrics()
	assert.Equal(t, int64(1), metrics.Performance.OperationsByType["get_data_items_by_ids"])
}

func TestServiceSettingsRoundTrip(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	type prefs struct {
		Theme    string `json:"theme"`
		PageSize int    `json:"pageSize"`
	}

	require.NoError(t, service.SetSetting(ctx, "prefs", prefs{Theme: "dark", PageSize: 50}))

	var out prefs
	found, err := service.GetSetting(ctx, "prefs", &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, prefs{Theme: "dark", PageSize: 50}, out)

	missing := prefs{Theme: "light"}
	found, err = service.GetSetting(ctx, "absent", &missing)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "light", missing.Theme)
}

func TestServiceDataSourceLifecycle(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	require.NoError(t, service.RegisterDataSource(ctx, "twitter", "Twitter", true))
	require.NoError(t, service.RegisterDataSource(ctx, "news", "News", false))
	require.NoError(t, service.UpdateSourceItemCount(ctx, "twitter", 12))

	active, err := service.GetActiveNamespaces(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"twitter"}, active)

	all, err := service.GetAllNamespaces(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	for _, src := range all {
		if src.Namespace == "twitter" {
			assert.Equal(t, int64(12), src.ItemCount)
		}
	}
}

func TestServiceEmbeddingWorkflow(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{
			ID:        fmt.Sprintf("e:%d", i),
			Namespace: "ns",
			Content:   "x",
		}))
	}

	pending, err := service.GetPendingEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	require.NoError(t, service.UpdateEmbeddingStatus(ctx, "e:0", models.EmbeddingCompleted))
	require.NoError(t, service.UpdateIngestionStatus(ctx, "e:1", models.IngestionFailed))

	pending, err = service.GetPendingEmbeddings(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestServiceChatMessages(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	msg, err := service.StoreChatMessage(ctx, "", "user", "hello", nil)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultChatSession, msg.SessionID)

	_, err = service.StoreChatMessage(ctx, "", "assistant", "hi there", map[string]any{"tokens": float64(5)})
	require.NoError(t, err)

	history, err := service.GetChatHistory(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello", history[0].Content)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestServiceDatabaseStats(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	require.NoError(t, service.RegisterDataSource(ctx, "twitter", "Twitter", true))
	for i := 0; i < 3; i++ {
		require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{
			ID:        fmt.Sprintf("t:%d", i),
			Namespace: "twitter",
			Content:   "x",
		}))
	}
	require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{ID: "n:0", Namespace: "news", Content: "y"}))
	_, err := service.StoreChatMessage(ctx, "", "user", "q", nil)
	require.NoError(t, err)

	stats, err := service.GetDatabaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalItems)
	assert.Equal(t, map[string]int64{"twitter": 3, "news": 1}, stats.ItemsByNamespace)
	assert.Equal(t, int64(4), stats.PendingEmbeddings)
	assert.Equal(t, int64(1), stats.ChatMessages)
	assert.Equal(t, int64(1), stats.DataSources)
}

func TestServiceCalendarQueries(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	dates := []string{"2025-08-01", "2025-08-01", "2025-08-15"}
	for i, d := range dates {
		require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{
			ID:        fmt.Sprintf("c:%d", i),
			Namespace: "ns",
			Content:   "x",
			ItemDate:  d,
		}))
	}

	available, err := service.GetAvailableDates(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-08-15", "2025-08-01"}, available)

	days, err := service.GetDaysWithData(ctx, 2025, 8)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 2, 15: 1}, days)
}

func TestServiceMarkdownByDate(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{
		ID: "t:1", Namespace: "twitter", Content: "a tweet", ItemDate: "2025-08-01",
	}))
	require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{
		ID: "n:1", Namespace: "news", Content: "a headline", ItemDate: "2025-08-01",
	}))

	markdown, err := service.GetMarkdownByDate(ctx, "2025-08-01")
	require.NoError(t, err)
	assert.Contains(t, markdown, "# 2025-08-01")
	assert.Contains(t, markdown, "## twitter")
	assert.Contains(t, markdown, "## news")
	assert.Contains(t, markdown, "a tweet")
	assert.Contains(t, markdown, "a headline")
}

func TestServiceRecordsPerformanceMetrics(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	const calls = 5
	for i := 0; i < calls; i++ {
		require.NoError(t, service.StoreDataItem(ctx, &models.DataItem{
			ID:        fmt.Sprintf("m:%d", i),
			Namespace: "ns",
			Content:   "x",
		}))
	}
	_, err := service.GetAvailableDates(ctx)
	require.NoError(t, err)

	metrics := service.GetPerformanceMetrics()
	assert.Equal(t, int64(calls), metrics.Performance.OperationsByType["store_data_item"])
	assert.Equal(t, int64(1), metrics.Performance.OperationsByType["get_available_dates"])
	assert.Equal(t, int64(calls+1), metrics.Performance.TotalOperations)
	assert.GreaterOrEqual(t, metrics.Performance.SlowestOperation, metrics.Performance.FastestOperation)
	assert.LessOrEqual(t, metrics.Performance.FastestOperation, metrics.Performance.AverageDuration)
}

func TestServiceFailedOperationsAreStillRecorded(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	err := service.UpdateEmbeddingStatus(ctx, "missing", models.EmbeddingCompleted)
	require.Error(t, err)

	metrics := service.GetPerformanceMetrics()
	assert.Equal(t, int64(1), metrics.Performance.OperationsByType["update_embedding_status"])
}

func TestServiceConcurrentOperations(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			err := service.StoreDataItem(ctx, &models.DataItem{
				ID:        fmt.Sprintf("w:%d", n),
				Namespace: "ns",
				Content:   "x",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stats, err := service.GetDatabaseStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(20), stats.TotalItems)

	poolStats := service.Pool().Stats()
	assert.Equal(t, 0, poolStats.ActiveConnections)
	assert.Equal(t, poolStats.TotalConnections, poolStats.AvailableConnections)
}

func TestServicePing(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	require.NoError(t, service.Ping(ctx))
}

func TestServiceOperationsAfterCloseFail(t *testing.T) {
	ctx := context.Background()
	service := newTestService(t)

	require.NoError(t, service.Close())

	err := service.StoreDataItem(ctx, &models.DataItem{ID: "a", Namespace: "ns", Content: "x"})
	assert.ErrorIs(t, err, ErrPoolClosed)

	_, err = service.GetAvailableDates(ctx)
	assert.ErrorIs(t, err, ErrPoolClosed)

	require.NoError(t, service.Close())
}
