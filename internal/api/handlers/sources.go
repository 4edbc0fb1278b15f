// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/memexd/memex/internal/database"
)

type SourcesHandler struct {
	service *database.Service
}

func NewSourcesHandler(service *database.Service) *SourcesHandler {
	return &SourcesHandler{service: service}
}

func (h *SourcesHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Post("/", h.HandleRegister)
	r.Get("/namespaces", h.HandleActiveNamespaces)
	r.Put("/{namespace}/item-count", h.HandleUpdateItemCount)
}

func (h *SourcesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	sources, err := h.service.GetAllNamespaces(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, sources)
}

func (h *SourcesHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Namespace   string `json:"namespace"`
		DisplayName string `json:"displayName"`
		Active      bool   `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Namespace == "" {
		RespondError(w, http.StatusBadRequest, "Namespace is required")
		return
	}

	if err := h.service.RegisterDataSource(r.Context(), req.Namespace, req.DisplayName, req.Active); err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusCreated, nil)
}

func (h *SourcesHandler) HandleActiveNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := h.service.GetActiveNamespaces(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, namespaces)
}

func (h *SourcesHandler) HandleUpdateItemCount(w http.ResponseWriter, r *http.Request) {
	namespace := chi.URLParam(r, "namespace")

	var req struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.UpdateSourceItemCount(r.Context(), namespace, req.Count); err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}
