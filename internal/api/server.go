// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package api wires the HTTP surface: routing, sessions, compression and CORS.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/CAFxX/httpcompression"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/protovault/protovault/internal/api/handlers"
	"github.com/protovault/protovault/internal/api/middleware"
	"github.com/protovault/protovault/internal/api/sse"
	"github.com/protovault/protovault/internal/auth"
	"github.com/protovault/protovault/internal/domain"
	"github.com/protovault/protovault/internal/importer"
	"github.com/protovault/protovault/internal/models"
	"github.com/protovault/protovault/internal/storage"
)

// Dependencies collects everything the HTTP server needs.
type Dependencies struct {
	Config         *domain.Config
	AuthService    *auth.Service
	SessionManager *scs.SessionManager
	ProtocolStore  *models.ProtocolStore
	AssetStore     *storage.Store
	Scheduler      *importer.Scheduler
	StreamManager  *sse.StreamManager
}

type Server struct {
	deps *Dependencies
	http *http.Server
}

func NewServer(deps *Dependencies) *Server {
	s := &Server{deps: deps}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", deps.Config.Host, deps.Config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  180 * time.Second,
	}

	return s
}

// Handler builds the full route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
		AllowCredentials: true,
	}).Handler)

	if compress, err := httpcompression.DefaultAdapter(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize response compression")
	} else {
		r.Use(compress)
	}

	r.Use(s.deps.SessionManager.LoadAndSave)

	authHandler := handlers.NewAuthHandler(s.deps.AuthService, s.deps.SessionManager)
	importsHandler := handlers.NewImportsHandler(s.deps.Scheduler)
	assetsHandler := handlers.NewAssetsHandler(s.deps.AssetStore, s.deps.SessionManager)
	protocolsHandler := handlers.NewProtocolsHandler(s.deps.ProtocolStore, s.deps.AssetStore)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Route("/auth", func(r chi.Router) {
			r.Use(middleware.RequireSetup(s.deps.AuthService))

			r.Post("/setup", authHandler.Setup)
			r.Get("/check-setup", authHandler.CheckSetupRequired)
			r.Post("/login", authHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.IsAuthenticated(s.deps.SessionManager))
				r.Post("/logout", authHandler.Logout)
				r.Get("/me", authHandler.GetCurrentUser)
				r.Post("/change-password", authHandler.ChangePassword)
			})
		})

		// Stored assets are immutable, publicly addressable blobs.
		r.Get("/assets/{key}/{filename}", assetsHandler.Serve)

		// Upload does its own session check so the pipeline's HTTP client
		// gets a clean 401 instead of a middleware error body.
		r.Post("/assets/upload", assetsHandler.Upload)

		r.Group(func(r chi.Router) {
			r.Use(middleware.IsAuthenticated(s.deps.SessionManager))

			r.Route("/imports", func(r chi.Router) {
				r.Post("/", importsHandler.Submit)
				r.Get("/", importsHandler.ListJobs)
				r.Delete("/", importsHandler.CancelAll)
				r.Delete("/{jobID}", importsHandler.CancelJob)
				r.Get("/events", s.deps.StreamManager.Serve)
			})

			r.Route("/protocols", func(r chi.Router) {
				r.Get("/", protocolsHandler.List)
				r.Delete("/{protocolID}", protocolsHandler.Delete)
			})
		})
	})

	return r
}

// ListenAndServe blocks serving HTTP until the server is shut down.
func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.http.Addr).Msg("HTTP server listening")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
