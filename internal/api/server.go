// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/memexd/memex/internal/api/handlers"
	apimiddleware "github.com/memexd/memex/internal/api/middleware"
	"github.com/memexd/memex/internal/config"
	"github.com/memexd/memex/internal/database"
)

// Server exposes the data service over HTTP. It is an operational
// surface for connectors and dashboards, not an end-user application.
type Server struct {
	config  *config.AppConfig
	service *database.Service
	server  *http.Server
}

func NewServer(cfg *config.AppConfig, service *database.Service) *Server {
	s := &Server{
		config:  cfg,
		service: service,
	}

	addr := fmt.Sprintf("%s:%d", cfg.Config.Host, cfg.Config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Handler builds the full route tree. Split out so tests can drive the
// API through httptest without binding a socket.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(apimiddleware.Logger(log.Logger))

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Route("/api", func(r chi.Router) {
		r.Route("/healthz", handlers.NewHealthHandler(s.service).Routes)
		r.Route("/items", handlers.NewItemsHandler(s.service).Routes)
		r.Route("/settings", handlers.NewSettingsHandler(s.service).Routes)
		r.Route("/sources", handlers.NewSourcesHandler(s.service).Routes)
		r.Route("/chat", handlers.NewChatHandler(s.service).Routes)
		r.Route("/stats", handlers.NewStatsHandler(s.service).Routes)
	})

	return r
}

func (s *Server) ListenAndServe() error {
	log.Info().
		Str("address", s.server.Addr).
		Msg("Starting API server")

	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
