package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	srv "github.com/mohammad-safakhou/scholar/internal/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var origins []string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, *cfgPath, os.Stderr)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := a.Close(closeCtx); err != nil {
					a.logger.Warn("shutdown", zap.Error(err))
				}
			}()

			var gatherer prometheus.Gatherer
			if a.cfg.Telemetry.Enabled {
				gatherer = a.registry
			}
			addr := a.cfg.General.Listen
			if serveAddr != "" {
				addr = serveAddr
			}
			e := srv.New(a.research, srv.Options{
				Logger:       a.logger,
				Metrics:      a.metrics,
				Gatherer:     gatherer,
				CookieMaxAge: a.cfg.Session.IdleTimeout,
				AllowOrigins: origins,
			})
			return srv.Run(ctx, e, addr, a.logger)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides general.listen)")
	serve.Flags().StringSliceVar(&origins, "allow-origin", nil, "CORS origin to allow (repeatable; default any)")

	return serve
}
