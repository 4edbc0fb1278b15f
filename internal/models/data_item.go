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

var ErrDataItemNotFound = errors.New("data item not found")

// Ingestion and embedding lifecycle states for a stored item.
const (
	IngestionPending   = "pending"
	IngestionCompleted = "completed"
	IngestionFailed    = "failed"

	EmbeddingPending   = "pending"
	EmbeddingCompleted = "completed"
	EmbeddingFailed    = "failed"
	EmbeddingSkipped   = "skipped"
)

// DataItem is one ingested record in the unified store. Namespace identifies
// the source system ("twitter", "news", ...), ItemDate the calendar day the
// item belongs to in YYYY-MM-DD form.
type DataItem struct {
	ID              string         `json:"id"`
	Namespace       string         `json:"namespace"`
	Content         string         `json:"content"`
	ContentType     string         `json:"contentType"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	ItemDate        string         `json:"itemDate,omitempty"`
	IngestionStatus string         `json:"ingestionStatus"`
	EmbeddingStatus string         `json:"embeddingStatus"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`
}

type DataItemStore struct {
	db dbinterface.Querier
}

func NewDataItemStore(db dbinterface.Querier) *DataItemStore {
	return &DataItemStore{db: db}
}

const dataItemColumns = `id, namespace, content, content_type, metadata, item_date, ingestion_status, embedding_status, created_at, updated_at`

// Upsert stores an item, replacing content, metadata, and statuses when the
// id already exists. Defaults are applied for empty optional fields.
func (s *DataItemStore) Upsert(ctx context.Context, item *DataItem) error {
	if item.ID == "" {
		return errors.New("data item id is required")
	}
	if item.Namespace == "" {
		return errors.New("data item namespace is required")
	}

	contentType := item.ContentType
	if contentType == "" {
		contentType = "text"
	}
	ingestionStatus := item.IngestionStatus
	if ingestionStatus == "" {
		ingestionStatus = IngestionCompleted
	}
	embeddingStatus := item.EmbeddingStatus
	if embeddingStatus == "" {
		embeddingStatus = EmbeddingPending
	}

	metadata, err := EncodeMetadataJSON(item.Metadata)
	if err != nil {
		return err
	}

	itemDate := sql.NullString{String: item.ItemDate, Valid: item.ItemDate != ""}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO data_items (id, namespace, content, content_type, metadata, item_date, ingestion_status, embedding_status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			namespace = excluded.namespace,
			content = excluded.content,
			content_type = excluded.content_type,
			metadata = excluded.metadata,
			item_date = excluded.item_date,
			ingestion_status = excluded.ingestion_status,
			embedding_status = excluded.embedding_status,
			updated_at = CURRENT_TIMESTAMP
	`, item.ID, item.Namespace, item.Content, contentType, metadata, itemDate, ingestionStatus, embeddingStatus)
	if err != nil {
		return fmt.Errorf("upsert data item %s: %w", item.ID, err)
	}

	return nil
}

// GetByIDs fetches items for the given ids, in the stored order. Missing ids
// are simply absent from the result.
func (s *DataItemStore) GetByIDs(ctx context.Context, ids []string) ([]*DataItem, error) {
	if len(ids) == 0 {
		return []*DataItem{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM data_items WHERE id IN (%s) ORDER BY created_at`, dataItemColumns, inPlaceholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, toAnySlice(ids)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDataItems(rows)
}

func (s *DataItemStore) GetByNamespace(ctx context.Context, namespace string, limit, offset int) ([]*DataItem, error) {
	if limit <= 0 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`
		SELECT %s FROM data_items
		WHERE namespace = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?
	`, dataItemColumns)

	rows, err := s.db.QueryContext(ctx, query, namespace, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDataItems(rows)
}

func (s *DataItemStore) GetByDate(ctx context.Context, date string) ([]*DataItem, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM data_items
		WHERE item_date = ?
		ORDER BY namespace, created_at
	`, dataItemColumns)

	rows, err := s.db.QueryContext(ctx, query, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDataItems(rows)
}

func (s *DataItemStore) GetByDateRange(ctx context.Context, startDate, endDate string) ([]*DataItem, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM data_items
		WHERE item_date >= ? AND item_date <= ?
		ORDER BY item_date, namespace, created_at
	`, dataItemColumns)

	rows, err := s.db.QueryContext(ctx, query, startDate, endDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDataItems(rows)
}

// UpdateEmbeddingStatus marks the embedding lifecycle state for an item.
func (s *DataItemStore) UpdateEmbeddingStatus(ctx context.Context, id, status string) error {
	return s.updateStatus(ctx, id, "embedding_status", status)
}

// UpdateIngestionStatus marks the ingestion lifecycle state for an item.
func (s *DataItemStore) UpdateIngestionStatus(ctx context.Context, id, status string) error {
	return s.updateStatus(ctx, id, "ingestion_status", status)
}

func (s *DataItemStore) updateStatus(ctx context.Context, id, column, status string) error {
	query := fmt.Sprintf("UPDATE data_items SET %s = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", column)

	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrDataItemNotFound
	}
	return nil
}

// GetPendingEmbeddings returns items still waiting for vector embedding,
// oldest first.
func (s *DataItemStore) GetPendingEmbeddings(ctx context.Context, limit int) ([]*DataItem, error) {
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(`
		SELECT %s FROM data_items
		WHERE embedding_status = ?
		ORDER BY created_at
		LIMIT ?
	`, dataItemColumns)

	rows, err := s.db.QueryContext(ctx, query, EmbeddingPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanDataItems(rows)
}

// AvailableDates lists every distinct item date with data, newest first.
func (s *DataItemStore) AvailableDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT item_date FROM data_items
		WHERE item_date IS NOT NULL
		ORDER BY item_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	dates := make([]string, 0)
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

// DaysWithData returns a day-of-month to item-count mapping for the given
// calendar month.
func (s *DataItemStore) DaysWithData(ctx context.Context, year, month int) (map[int]int, error) {
	prefix := fmt.Sprintf("%04d-%02d-%%", year, month)

	rows, err := s.db.QueryContext(ctx, `
		SELECT CAST(substr(item_date, 9, 2) AS INTEGER) AS day, COUNT(*)
		FROM data_items
		WHERE item_date LIKE ?
		GROUP BY item_date
		ORDER BY item_date
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	days := make(map[int]int)
	for rows.Next() {
		var day, count int
		if err := rows.Scan(&day, &count); err != nil {
			return nil, err
		}
		days[day] += count
	}
	return days, rows.Err()
}

func scanDataItems(rows *sql.Rows) ([]*DataItem, error) {
	items := make([]*DataItem, 0)
	for rows.Next() {
		item, err := scanDataItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanDataItem(rows *sql.Rows) (*DataItem, error) {
	var item DataItem
	var metadata, itemDate sql.NullString
	var createdAt, updatedAt sql.NullTime

	if err := rows.Scan(
		&item.ID,
		&item.Namespace,
		&item.Content,
		&item.ContentType,
		&metadata,
		&itemDate,
		&item.IngestionStatus,
		&item.EmbeddingStatus,
		&createdAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	parsed, err := DecodeMetadataJSON(metadata)
	if err != nil {
		return nil, fmt.Errorf("data item %s: %w", item.ID, err)
	}
	item.Metadata = parsed

	if itemDate.Valid {
		item.ItemDate = itemDate.String
	}
	item.CreatedAt = createdAt.Time
	item.UpdatedAt = updatedAt.Time

	return &item, nil
}
