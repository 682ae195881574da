package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/warp/fleet-engine/api"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

// serve runs the server until ctx is cancelled, then drains it.
func (a *app) serve(ctx context.Context) error {
	st, err := a.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	fleetDefaults := a.cfg.FleetSettings()
	invoiceDefaults := a.cfg.InvoiceSettings()
	handler, err := api.NewHandler(ctx, st, api.Options{
		FleetDefaults:   &fleetDefaults,
		InvoiceDefaults: &invoiceDefaults,
		Logger:          a.log,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr: ":" + a.cfg.App.Port,
		Handler: api.NewRouter(handler, api.RouterOptions{
			AllowedOrigins: a.cfg.HTTP.CORSAllowOrigins,
			Logger:         a.log,
		}),
		ReadTimeout:  a.cfg.HTTP.ReadTimeout,
		WriteTimeout: a.cfg.HTTP.WriteTimeout,
		IdleTimeout:  a.cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("server starting",
			zap.String("addr", server.Addr),
			zap.String("database", a.cfg.Database.Path),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		a.log.Error("server stopped with error", zap.Error(err))
		return err
	}
	a.log.Info("server stopped")
	return nil
}
