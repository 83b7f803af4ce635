package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/hackledger/adapters/events"
	"github.com/layer-3/hackledger/internal/config"
	"github.com/layer-3/hackledger/service"
	httptransport "github.com/layer-3/hackledger/transport/http"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func serveRun(cmd *cobra.Command, cfg *config.Config) error {
	logger := commonRun(cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	trigger, err := events.NewSyncTrigger(a.subscriber, a.sync, logger.With("component", "sync_trigger"))
	if err != nil {
		return err
	}

	if !cfg.Debug && !globalFlags.debug {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr: cfg.ListenAddr(),
		Handler: httptransport.SetupRouter(httptransport.RouterConfig{
			Auth:     a.auth,
			Authz:    a.authz,
			Events:   a.eventPub,
			Gatherer: a.registry,
			Logger:   logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return trigger.Run(ctx)
	})
	g.Go(func() error {
		service.NewScheduler(service.SchedulerConfig{
			Sync:       a.sync,
			Interval:   cfg.SyncInterval,
			RunAtStart: true,
			Logger:     logger,
		}).Start(ctx)
		return nil
	})
	g.Go(func() error {
		logger.Info("http server listening", "component", programName, "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down", "component", programName)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		slog.Error("server stopped", "component", programName, "error", err)
		return err
	}
	return nil
}

func serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the sync scheduler and the on-demand sync trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromContext(cmd.Context())
			if cfg == nil {
				return errors.New("no config found in context")
			}
			return serveRun(cmd, cfg)
		},
	}
	return cmd
}
