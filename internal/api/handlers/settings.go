// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memexd/memex/internal/database"
)

type SettingsHandler struct {
	service *database.Service
}

func NewSettingsHandler(service *database.Service) *SettingsHandler {
	return &SettingsHandler{service: service}
}

func (h *SettingsHandler) Routes(r chi.Router) {
	r.Get("/{key}", h.HandleGet)
	r.Put("/{key}", h.HandleSet)
}

func (h *SettingsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value json.RawMessage
	found, err := h.service.GetSetting(r.Context(), key, &value)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !found {
		RespondError(w, http.StatusNotFound, "Setting not found")
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"key":   key,
		"value": value,
	})
}

func (h *SettingsHandler) HandleSet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var value json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&value); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid JSON value")
		return
	}

	if err := h.service.SetSetting(r.Context(), key, value); err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}
