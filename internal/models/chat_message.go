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

// DefaultChatSession groups messages when the caller does not manage
// sessions explicitly.
const DefaultChatSession = "default"

// ChatMessage is one turn of the chat interface, role "user" or "assistant".
type ChatMessage struct {
	ID        int64          `json:"id"`
	SessionID string         `json:"sessionId"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

type ChatMessageStore struct {
	db dbinterface.Querier
}

func NewChatMessageStore(db dbinterface.Querier) *ChatMessageStore {
	return &ChatMessageStore{db: db}
}

// Insert stores a message and returns it with the assigned id and timestamp.
func (s *ChatMessageStore) Insert(ctx context.Context, sessionID, role, content string, metadata map[string]any) (*ChatMessage, error) {
	if role == "" {
		return nil, errors.New("chat message role is required")
	}
	if sessionID == "" {
		sessionID = DefaultChatSession
	}

	encoded, err := EncodeMetadataJSON(metadata)
	if err != nil {
		return nil, err
	}

	msg := &ChatMessage{
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Metadata:  metadata,
	}

	var createdAt sql.NullTime
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO chat_messages (session_id, role, content, metadata)
		VALUES (?, ?, ?, ?)
		RETURNING id, created_at
	`, sessionID, role, content, encoded).Scan(&msg.ID, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert chat message: %w", err)
	}

	msg.CreatedAt = createdAt.Time
	return msg, nil
}

// History returns the most recent messages of a session in chronological
// order.
func (s *ChatMessageStore) History(ctx context.Context, sessionID string, limit int) ([]*ChatMessage, error) {
	if sessionID == "" {
		sessionID = DefaultChatSession
	}
	if limit <= 0 {
		limit = 50
	}

	// Newest N rows, then flipped so the caller sees chronological order.
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, metadata, created_at FROM (
			SELECT id, session_id, role, content, metadata, created_at
			FROM chat_messages
			WHERE session_id = ?
			ORDER BY id DESC
			LIMIT ?
		) ORDER BY id
	`, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]*ChatMessage, 0)
	for rows.Next() {
		var msg ChatMessage
		var metadata sql.NullString
		var createdAt sql.NullTime

		if err := rows.Scan(&msg.ID, &msg.SessionID, &msg.Role, &msg.Content, &metadata, &createdAt); err != nil {
			return nil, err
		}

		parsed, err := DecodeMetadataJSON(metadata)
		if err != nil {
			return nil, fmt.Errorf("chat message %d: %w", msg.ID, err)
		}
		msg.Metadata = parsed
		msg.CreatedAt = createdAt.Time

		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}
