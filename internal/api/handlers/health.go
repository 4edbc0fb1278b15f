// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/memexd/memex/internal/database"
)

const readinessTimeout = 5 * time.Second

type HealthHandler struct {
	service *database.Service
}

func NewHealthHandler(service *database.Service) *HealthHandler {
	return &HealthHandler{service: service}
}

func (h *HealthHandler) Routes(r chi.Router) {
	r.Get("/liveness", h.HandleLiveness)
	r.Get("/readiness", h.HandleReady)
}

func (h *HealthHandler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReady verifies a pooled database connection end to end before
// reporting ready.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	if err := h.service.Ping(ctx); err != nil {
		RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"error":  err.Error(),
		})
		return
	}

	RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
