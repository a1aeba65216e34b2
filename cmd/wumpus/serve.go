package main

import (
	"github.com/spf13/cobra"

	"pkg.mon.icu/wumpus/internal/api"
)

func newServeCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the archive over a read-only HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()

			srv := api.NewAPI(a.ctx, a.logger.Sugar(), a.storage, &a.config.API)
			srv.Listen()
			a.logger.Info("Launch complete. Send SIGINT to gracefully terminate.")
			<-a.ctx.Done()
			a.logger.Info("Signal received, terminating.")
			return srv.Close()
		},
	}
}
