// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memexd/memex/internal/database"
	"github.com/memexd/memex/internal/models"
)

// ItemsHandler is a thin HTTP surface over the typed data item API. All
// parsing and ingestion intelligence lives in the source connectors, not
// here.
type ItemsHandler struct {
	service *database.Service
}

func NewItemsHandler(service *database.Service) *ItemsHandler {
	return &ItemsHandler{service: service}
}

func (h *ItemsHandler) Routes(r chi.Router) {
	r.Post("/", h.HandleStore)
	r.Get("/", h.HandleList)
	r.Get("/pending-embeddings", h.HandlePendingEmbeddings)
	r.Get("/markdown/{date}", h.HandleMarkdown)
	r.Get("/{id}", h.HandleGet)
	r.Put("/{id}/embedding-status", h.HandleUpdateEmbeddingStatus)
	r.Put("/{id}/ingestion-status", h.HandleUpdateIngestionStatus)
}

func (h *ItemsHandler) HandleStore(w http.ResponseWriter, r *http.Request) {
	var item models.DataItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		RespondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := h.service.StoreDataItem(r.Context(), &item); err != nil {
		if errors.Is(err, database.ErrAcquireTimeout) {
			RespondError(w, http.StatusServiceUnavailable, "Database busy, try again")
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusCreated, item)
}

func (h *ItemsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	items, err := h.service.GetDataItemsByIDs(r.Context(), []string{id})
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(items) == 0 {
		RespondError(w, http.StatusNotFound, "Item not found")
		return
	}

	RespondJSON(w, http.StatusOK, items[0])
}

// HandleList serves /?namespace= or /?date= or /?start=&end= queries.
func (h *ItemsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	switch {
	case query.Get("date") != "":
		items, err := h.service.GetDataItemsByDate(r.Context(), query.Get("date"))
		if err != nil {
			RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		RespondJSON(w, http.StatusOK, items)

	case query.Get("start") != "" && query.Get("end") != "":
		items, err := h.service.GetDataItemsByDateRange(r.Context(), query.Get("start"), query.Get("end"))
		if err != nil {
			RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		RespondJSON(w, http.StatusOK, items)

	case query.Get("namespace") != "":
		limit, _ := strconv.Atoi(query.Get("limit"))
		offset, _ := strconv.Atoi(query.Get("offset"))

		items, err := h.service.GetDataItemsByNamespace(r.Context(), query.Get("namespace"), limit, offset)
		if err != nil {
			RespondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		RespondJSON(w, http.StatusOK, items)

	default:
		RespondError(w, http.StatusBadRequest, "One of namespace, date, or start/end is required")
	}
}

func (h *ItemsHandler) HandlePendingEmbeddings(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	items, err := h.service.GetPendingEmbeddings(r.Context(), limit)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, items)
}

// HandleMarkdown renders all items for a day as a markdown digest grouped
// by namespace.
func (h *ItemsHandler) HandleMarkdown(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")

	markdown, err := h.service.GetMarkdownByDate(r.Context(), date)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(markdown))
}

func (h *ItemsHandler) HandleUpdateEmbeddingStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		RespondError(w, http.StatusBadRequest, "Status is required")
		return
	}

	if err := h.service.UpdateEmbeddingStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, models.ErrDataItemNotFound) {
			RespondError(w, http.StatusNotFound, "Item not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}

func (h *ItemsHandler) HandleUpdateIngestionStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		RespondError(w, http.StatusBadRequest, "Status is required")
		return
	}

	if err := h.service.UpdateIngestionStatus(r.Context(), id, req.Status); err != nil {
		if errors.Is(err, models.ErrDataItemNotFound) {
			RespondError(w, http.StatusNotFound, "Item not found")
			return
		}
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusNoContent, nil)
}
