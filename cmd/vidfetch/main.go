package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/spf13/cobra"

	"github.com/vidfetch/vidfetch/internal/api"
	"github.com/vidfetch/vidfetch/internal/app"
	"github.com/vidfetch/vidfetch/internal/engine"
	"github.com/vidfetch/vidfetch/internal/infra/config"
	"github.com/vidfetch/vidfetch/internal/infra/logger"
	"github.com/vidfetch/vidfetch/internal/platform"
	"github.com/vidfetch/vidfetch/internal/store"
	"github.com/vidfetch/vidfetch/internal/transcode"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "vidfetch",
		Short:         "Concurrent media transfer service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE:  runServe,
	})

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Path, logger.ParseLevel(cfg.Log.Level), cfg.Log.IncludeStdout)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	appCtx := app.NewContext(cfg, log)

	// The transcoder location is resolved exactly once, here.
	appCtx.FFmpegPath = platform.FindFFmpeg(cfg.Transcode.FFmpegPath)
	if appCtx.FFmpegPath == "" {
		log.Warn("ffmpeg not found: stream downloads and post-processing are disabled")
	} else {
		log.Info("Using ffmpeg at %s", appCtx.FFmpegPath)
	}

	if cfg.History.SQLitePath != "" {
		hist, err := store.NewHistoryStore(cfg.History.SQLitePath)
		if err != nil {
			return err
		}
		defer hist.Close()
		appCtx.History = hist
	}

	var sup *transcode.Supervisor
	if appCtx.FFmpegPath != "" {
		sup = transcode.NewSupervisor(appCtx.FFmpegPath, log)
	}

	fetcher := engine.NewFetcher(nil, appCtx.Notifier, sup, log)
	post := transcode.NewPostProcessor(sup, log)
	mgr := engine.NewManager(appCtx, fetcher, post)

	// Setup Signal Handling for Graceful Shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	retention := time.Duration(cfg.Download.RetentionHours) * time.Hour
	go mgr.RunReaper(ctx, time.Hour, retention)

	e := echo.New()
	api.RegisterRoutes(e, appCtx, mgr)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: e,
	}

	go func() {
		<-ctx.Done()
		log.Info("Shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)

		mgr.Shutdown()
	}()

	log.Info("vidfetch listening on :%s", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
