// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/memexd/memex/internal/database"
)

type StatsHandler struct {
	service *database.Service
}

func NewStatsHandler(service *database.Service) *StatsHandler {
	return &StatsHandler{service: service}
}

func (h *StatsHandler) Routes(r chi.Router) {
	r.Get("/", h.HandleStats)
	r.Get("/dates", h.HandleDates)
	r.Get("/days", h.HandleDays)
	r.Get("/migrations", h.HandleMigrations)
}

func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	dbStats, err := h.service.GetDatabaseStats(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, map[string]any{
		"database":    dbStats,
		"performance": h.service.GetPerformanceMetrics(),
	})
}

func (h *StatsHandler) HandleDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.service.GetAvailableDates(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, dates)
}

// HandleDays returns a day-of-month histogram for calendar rendering,
// e.g. /stats/days?year=2025&month=8.
func (h *StatsHandler) HandleDays(w http.ResponseWriter, r *http.Request) {
	year, yerr := strconv.Atoi(r.URL.Query().Get("year"))
	month, merr := strconv.Atoi(r.URL.Query().Get("month"))
	if yerr != nil || merr != nil || month < 1 || month > 12 {
		RespondError(w, http.StatusBadRequest, "Valid year and month are required")
		return
	}

	days, err := h.service.GetDaysWithData(r.Context(), year, month)
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, days)
}

func (h *StatsHandler) HandleMigrations(w http.ResponseWriter, r *http.Request) {
	status, err := h.service.GetMigrationStatus(r.Context())
	if err != nil {
		RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	RespondJSON(w, http.StatusOK, status)
}
