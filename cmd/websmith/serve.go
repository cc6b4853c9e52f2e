package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	websmith "github.com/pcak20/websmith-frontend-v2-sub001"
	"github.com/pcak20/websmith-frontend-v2-sub001/internal/admin"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the admin server exposing health, stats and metrics for a configured client",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags)
			if err != nil {
				return err
			}
			defer a.Close()

			logger := websmith.NewZapLogger(a.logger)

			if a.cfg.Janitor.Enabled {
				janitor := a.client.NewJanitor(a.cfg.Janitor.Interval)
				janitor.Start(ctx)
				defer janitor.Stop()
			}

			checks := map[string]admin.HealthCheck{}
			if a.store != nil {
				checks["redis"] = a.store.Health
			}

			router := admin.NewRouter(a.client, admin.Options{
				AllowedOrigins: a.cfg.Admin.AllowedOrigins,
				HealthChecks:   checks,
				Logger:         logger,
			})

			addr := a.cfg.Admin.Listen
			if listen != "" {
				addr = listen
			}
			return admin.NewServer(addr, router, logger).Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", "", "listen address (overrides admin.listen)")
	return cmd
}
