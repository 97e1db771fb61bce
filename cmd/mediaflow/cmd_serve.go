package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/mediaflow/api"
	"github.com/kbukum/mediaflow/logger"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the job API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, cfg, err := flags.openEngine(ctx)
			if err != nil {
				return err
			}
			defer e.Close(context.Background())

			if address != "" {
				cfg.HTTP.Address = address
			}
			srv := api.New(cfg.HTTP, e)
			if err := srv.Start(ctx); err != nil {
				return err
			}
			<-ctx.Done()
			logger.Get("serve").Info("shutting down")
			return srv.Stop(context.Background())
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address (overrides config)")
	return cmd
}
