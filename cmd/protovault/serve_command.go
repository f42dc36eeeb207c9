// Copyright (c) 2026, the protovault contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/protovault/protovault/internal/api"
	"github.com/protovault/protovault/internal/api/sse"
	"github.com/protovault/protovault/internal/archive"
	"github.com/protovault/protovault/internal/auth"
	"github.com/protovault/protovault/internal/config"
	"github.com/protovault/protovault/internal/database"
	"github.com/protovault/protovault/internal/importer"
	"github.com/protovault/protovault/internal/logger"
	"github.com/protovault/protovault/internal/metrics"
	"github.com/protovault/protovault/internal/models"
	"github.com/protovault/protovault/internal/storage"
	"github.com/protovault/protovault/internal/uploader"
	"github.com/protovault/protovault/internal/validation"
	"github.com/protovault/protovault/pkg/sessionstore"
)

func RunServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the protovault server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(parent context.Context, configPath string) error {
	cfg, err := config.New(configPath, version)
	if err != nil {
		return err
	}

	logger.Setup(cfg.Config)

	if err := cfg.Config.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.New(cfg.DatabasePath())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	userStore := models.NewUserStore(db)
	protocolStore := models.NewProtocolStore(db)
	authService := auth.NewService(userStore)

	assetStore, err := storage.NewStore(cfg.Config.DataDir)
	if err != nil {
		return err
	}

	sessionManager := scs.New()
	sessionManager.Store = sessionstore.New(db.Conn(), time.Hour)
	sessionManager.Lifetime = 31 * 24 * time.Hour
	sessionManager.Cookie.Name = "protovault_session"
	sessionManager.Cookie.HttpOnly = true
	sessionManager.Cookie.Path = cfg.Config.BaseURL

	var assetUploader importer.Uploader = uploader.NewLocal(assetStore)
	if cfg.Config.AssetUploadURL != "" {
		assetUploader = uploader.NewClient(cfg.Config.AssetUploadURL)
		log.Info().Str("endpoint", cfg.Config.AssetUploadURL).Msg("Using external asset upload endpoint")
	}

	scheduler := importer.NewScheduler(importer.Config{
		Concurrency:             cfg.Config.ImportConcurrency,
		SupportedSchemaVersions: cfg.Config.SupportedSchemaVersions,
	}, importer.Deps{
		Opener:    archive.ZipOpener{},
		Validator: validation.Structural{},
		Dedup:     protocolStore,
		Uploader:  assetUploader,
		Writer:    protocolStore,
	})

	streamManager := sse.NewStreamManager(scheduler)

	server := api.NewServer(&api.Dependencies{
		Config:         cfg.Config,
		AuthService:    authService,
		SessionManager: sessionManager,
		ProtocolStore:  protocolStore,
		AssetStore:     assetStore,
		Scheduler:      scheduler,
		StreamManager:  streamManager,
	})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		streamManager.Run(ctx)
		return nil
	})

	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	var metricsServer *http.Server
	if cfg.Config.MetricsEnabled {
		manager := metrics.NewManager(scheduler)

		g.Go(func() error {
			manager.Recorder().Run(ctx)
			return nil
		})

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(manager.GetRegistry(), promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Config.MetricsHost, cfg.Config.MetricsPort),
			Handler: mux,
		}

		g.Go(func() error {
			log.Info().Str("addr", metricsServer.Addr).Msg("Metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		log.Info().Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown failed")
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Metrics server shutdown failed")
			}
		}
		if err := streamManager.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("SSE shutdown failed")
		}
		scheduler.Stop()
		return nil
	})

	return g.Wait()
}
