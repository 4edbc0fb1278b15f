// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memexd/memex/internal/database"
	"github.com/memexd/memex/internal/models"
)

type ChatHandler struct {
	service *database.Service
}

func NewChatHandler(service *database.Service) *ChatHandler {
	return &ChatHandler{service: service}
}

func (h *ChatHandler) Routes(r chi.Router) {
	r.Post("/messages", h.HandleStore)
	r.Get("/history", h.HandleHistory)
}

func (h *ChatHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SessionID string         `json:"sessionId"`
		Role      string         `json:"role"`
		Content   string         `json:"content"`
		Metadata  map[string]any `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Role == "" || req.Content == "" {
		RespondError(w, http.StatusBadRequest, "Role and content are required")
		return
	}

	msg, err := h.service.StoreChatMessage(r.Context(), req.SessionID, req.Role, req.Content, req.Metadata)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusCreated, msg)
}

func (h *ChatHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session")
	if sessionID == "" {
		sessionID = models.DefaultChatSession
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	messages, err := h.service.GetChatHistory(r.Context(), sessionID, limit)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, messages)
}
