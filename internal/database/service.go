// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/memexd/memex/internal/models"
)

// Operation labels for performance instrumentation.
const (
	opStoreDataItem           = "store_data_item"
	opGetDataItemsByIDs       = "get_data_items_by_ids"
	opGetDataItemsByNamespace = "get_data_items_by_namespace"
	opGetDataItemsByDate      = "get_data_items_by_date"
	opGetDataItemsByDateRange = "get_data_items_by_date_range"
	opUpdateEmbeddingStatus   = "update_embedding_status"
	opUpdateIngestionStatus   = "update_ingestion_status"
	opGetPendingEmbeddings    = "get_pending_embeddings"
	opGetSetting              = "get_setting"
	opSetSetting              = "set_setting"
	opRegisterDataSource      = "register_data_source"
	opGetActiveNamespaces     = "get_active_namespaces"
	opGetAllNamespaces        = "get_all_namespaces"
	opUpdateSourceItemCount   = "update_source_item_count"
	opGetDatabaseStats        = "get_database_stats"
	opStoreChatMessage        = "store_chat_message"
	opGetChatHistory          = "get_chat_history"
	opGetAvailableDates       = "get_available_dates"
	opGetDaysWithData         = "get_days_with_data"
	opGetMarkdownByDate       = "get_markdown_by_date"
	opGetMigrationStatus      = "get_migration_status"
)

// Service exposes the domain API over the connection pool. Every operation
// acquires exactly one pooled connection for its duration and records its
// wall-clock time, success or failure.
type Service struct {
	pool *Pool
	perf *PerformanceMetrics
	path string
}

// NewService opens the pool against databasePath and runs schema migrations.
// The parent directory is created if needed.
func NewService(databasePath string, cfg PoolConfig) (*Service, error) {
	log.Info().Msgf("Initializing database at: %s", databasePath)

	dir := filepath.Dir(databasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %s: %w", dir, err)
	}

	pool, err := NewPool(databasePath, cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancel()

	if err := pool.WithConn(ctx, func(conn *Conn) error {
		return migrate(ctx, conn)
	}); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Service{
		pool: pool,
		perf: NewPerformanceMetrics(),
		path: databasePath,
	}, nil
}

// Pool exposes the underlying connection pool for raw SQL access with the
// scoped-acquisition guarantee.
func (s *Service) Pool() *Pool {
	return s.pool
}

// instrument returns a deferred-call hook that records the elapsed time of
// the enclosing operation. Runs on every exit path, including panics and
// error returns.
func (s *Service) instrument(operation string) func() {
	start := time.Now()
	return func() {
		s.perf.Record(operation, time.Since(start))
	}
}

// StoreDataItem upserts a single item into the unified store.
func (s *Service) StoreDataItem(ctx context.Context, item *models.DataItem) error {
	defer s.instrument(opStoreDataItem)()

	return s.pool.WithConn(ctx, func(conn *Conn) error {
		return models.NewDataItemStore(conn).Upsert(ctx, item)
	})
}

// GetDataItemsByIDs fetches items by id. An empty id list returns an empty
// result without touching the pool.
func (s *Service) GetDataItemsByIDs(ctx context.Context, ids []string) ([]*models.DataItem, error) {
	defer s.instrument(opGetDataItemsByIDs)()

	if len(ids) == 0 {
		return []*models.DataItem{}, nil
	}

	var items []*models.DataItem
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		items, storeErr = models.NewDataItemStore(conn).GetByIDs(ctx, ids)
		return storeErr
	})
	return items, err
}

func (s *Service) GetDataItemsByNamespace(ctx context.Context, namespace string, limit, offset int) ([]*models.DataItem, error) {
	defer s.instrument(opGetDataItemsByNamespace)()

	var items []*models.DataItem
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		items, storeErr = models.NewDataItemStore(conn).GetByNamespace(ctx, namespace, limit, offset)
		return storeErr
	})
	return items, err
}

func (s *Service) GetDataItemsByDate(ctx context.Context, date string) ([]*models.DataItem, error) {
	defer s.instrument(opGetDataItemsByDate)()

	var items []*models.DataItem
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		items, storeErr = models.NewDataItemStore(conn).GetByDate(ctx, date)
		return storeErr
	})
	return items, err
}

func (s *Service) GetDataItemsByDateRange(ctx context.Context, startDate, endDate string) ([]*models.DataItem, error) {
	defer s.instrument(opGetDataItemsByDateRange)()

	var items []*models.DataItem
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		items, storeErr = models.NewDataItemStore(conn).GetByDateRange(ctx, startDate, endDate)
		return storeErr
	})
	return items, err
}

func (s *Service) UpdateEmbeddingStatus(ctx context.Context, id, status string) error {
	defer s.instrument(opUpdateEmbeddingStatus)()

	return s.pool.WithConn(ctx, func(conn *Conn) error {
		return models.NewDataItemStore(conn).UpdateEmbeddingStatus(ctx, id, status)
	})
}

func (s *Service) UpdateIngestionStatus(ctx context.Context, id, status string) error {
	defer s.instrument(opUpdateIngestionStatus)()

	return s.pool.WithConn(ctx, func(conn *Conn) error {
		return models.NewDataItemStore(conn).UpdateIngestionStatus(ctx, id, status)
	})
}

func (s *Service) GetPendingEmbeddings(ctx context.Context, limit int) ([]*models.DataItem, error) {
	defer s.instrument(opGetPendingEmbeddings)()

	var items []*models.DataItem
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		items, storeErr = models.NewDataItemStore(conn).GetPendingEmbeddings(ctx, limit)
		return storeErr
	})
	return items, err
}

// GetSetting unmarshals the stored value for key into out, reporting whether
// the key existed. Out is untouched for a missing key so callers keep their
// supplied default.
func (s *Service) GetSetting(ctx context.Context, key string, out any) (bool, error) {
	defer s.instrument(opGetSetting)()

	var found bool
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		found, storeErr = models.NewSettingStore(conn).Get(ctx, key, out)
		return storeErr
	})
	return found, err
}

func (s *Service) SetSetting(ctx context.Context, key string, value any) error {
	defer s.instrument(opSetSetting)()

	return s.pool.WithConn(ctx, func(conn *Conn) error {
		return models.NewSettingStore(conn).Set(ctx, key, value)
	})
}

func (s *Service) RegisterDataSource(ctx context.Context, namespace, displayName string, active bool) error {
	defer s.instrument(opRegisterDataSource)()

	return s.pool.WithConn(ctx, func(conn *Conn) error {
		return models.NewDataSourceStore(conn).Register(ctx, namespace, displayName, active)
	})
}

func (s *Service) GetActiveNamespaces(ctx context.Context) ([]string, error) {
	defer s.instrument(opGetActiveNamespaces)()

	var namespaces []string
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		namespaces, storeErr = models.NewDataSourceStore(conn).ActiveNamespaces(ctx)
		return storeErr
	})
	return namespaces, err
}

// GetAllNamespaces returns every registered source, active or not.
func (s *Service) GetAllNamespaces(ctx context.Context) ([]*models.DataSource, error) {
	defer s.instrument(opGetAllNamespaces)()

	var sources []*models.DataSource
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		sources, storeErr = models.NewDataSourceStore(conn).All(ctx)
		return storeErr
	})
	return sources, err
}

func (s *Service) UpdateSourceItemCount(ctx context.Context, namespace string, count int64) error {
	defer s.instrument(opUpdateSourceItemCount)()

	return s.pool.WithConn(ctx, func(conn *Conn) error {
		return models.NewDataSourceStore(conn).UpdateItemCount(ctx, namespace, count)
	})
}

// GetDatabaseStats aggregates item, embedding, chat, and source counts in a
// single pool acquisition.
func (s *Service) GetDatabaseStats(ctx context.Context) (*models.DatabaseStats, error) {
	defer s.instrument(opGetDatabaseStats)()

	stats := &models.DatabaseStats{
		ItemsByNamespace: make(map[string]int64),
	}

	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, `
			SELECT namespace, COUNT(*) FROM data_items GROUP BY namespace
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var namespace string
			var count int64
			if err := rows.Scan(&namespace, &count); err != nil {
				return err
			}
			stats.ItemsByNamespace[namespace] = count
			stats.TotalItems += count
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if err := conn.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM data_items WHERE embedding_status = ?
		`, models.EmbeddingPending).Scan(&stats.PendingEmbeddings); err != nil {
			return err
		}

		if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM chat_messages").Scan(&stats.ChatMessages); err != nil {
			return err
		}

		return conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM data_sources").Scan(&stats.DataSources)
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Service) StoreChatMessage(ctx context.Context, sessionID, role, content string, metadata map[string]any) (*models.ChatMessage, error) {
	defer s.instrument(opStoreChatMessage)()

	var msg *models.ChatMessage
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		msg, storeErr = models.NewChatMessageStore(conn).Insert(ctx, sessionID, role, content, metadata)
		return storeErr
	})
	return msg, err
}

func (s *Service) GetChatHistory(ctx context.Context, sessionID string, limit int) ([]*models.ChatMessage, error) {
	defer s.instrument(opGetChatHistory)()

	var messages []*models.ChatMessage
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		messages, storeErr = models.NewChatMessageStore(conn).History(ctx, sessionID, limit)
		return storeErr
	})
	return messages, err
}

func (s *Service) GetAvailableDates(ctx context.Context) ([]string, error) {
	defer s.instrument(opGetAvailableDates)()

	var dates []string
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		dates, storeErr = models.NewDataItemStore(conn).AvailableDates(ctx)
		return storeErr
	})
	return dates, err
}

func (s *Service) GetDaysWithData(ctx context.Context, year, month int) (map[int]int, error) {
	defer s.instrument(opGetDaysWithData)()

	var days map[int]int
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		days, storeErr = models.NewDataItemStore(conn).DaysWithData(ctx, year, month)
		return storeErr
	})
	return days, err
}

// GetMarkdownByDate renders every item for a calendar day as a markdown
// document grouped by namespace.
func (s *Service) GetMarkdownByDate(ctx context.Context, date string) (string, error) {
	defer s.instrument(opGetMarkdownByDate)()

	var items []*models.DataItem
	err := s.pool.WithConn(ctx, func(conn *Conn) error {
		var storeErr error
		items, storeErr = models.NewDataItemStore(conn).GetByDate(ctx, date)
		return storeErr
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(date)
	sb.WriteString("\n")

	currentNamespace := ""
	for _, item := range items {
		if item.Namespace != currentNamespace {
			currentNamespace = item.Namespace
			sb.WriteString("\n## ")
			sb.WriteString(currentNamespace)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
		sb.WriteString(item.Content)
		sb.WriteString("\n")
	}

	return sb.String(), nil
}

// GetMigrationStatus reports applied and pending schema migrations.
func (s *Service) GetMigrationStatus(ctx context.Context) (*models.MigrationStatus, error) {
	defer s.instrument(opGetMigrationStatus)()

	all, err := listMigrations()
	if err != nil {
		return nil, err
	}

	status := &models.MigrationStatus{
		Applied: make([]string, 0, len(all)),
		Pending: make([]string, 0),
	}

	err = s.pool.WithConn(ctx, func(conn *Conn) error {
		rows, err := conn.QueryContext(ctx, "SELECT filename FROM migrations ORDER BY filename")
		if err != nil {
			return err
		}
		defer rows.Close()

		applied := make(map[string]struct{})
		for rows.Next() {
			var filename string
			if err := rows.Scan(&filename); err != nil {
				return err
			}
			applied[filename] = struct{}{}
			status.Applied = append(status.Applied, filename)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, filename := range all {
			if _, ok := applied[filename]; !ok {
				status.Pending = append(status.Pending, filename)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if n := len(status.Applied); n > 0 {
		status.Current = status.Applied[n-1]
	}
	return status, nil
}

// ServiceMetrics composes the latency accumulator with a pool snapshot for
// operational visibility.
type ServiceMetrics struct {
	Performance PerformanceSnapshot `json:"performance"`
	Pool        ConnectionStats     `json:"pool"`
}

func (s *Service) GetPerformanceMetrics() ServiceMetrics {
	return ServiceMetrics{
		Performance: s.perf.Snapshot(),
		Pool:        s.pool.Stats(),
	}
}

// Ping verifies a pooled connection end to end, used by the readiness probe.
func (s *Service) Ping(ctx context.Context) error {
	return s.pool.WithConn(ctx, func(conn *Conn) error {
		var one int
		return conn.QueryRowContext(ctx, "SELECT 1").Scan(&one)
	})
}

// Close tears down the pool. Idempotent; operations invoked after Close fail
// with ErrPoolClosed.
func (s *Service) Close() error {
	return s.pool.Close()
}
