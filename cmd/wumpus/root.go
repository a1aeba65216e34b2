package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRootCommand(ctx context.Context, lcf zap.Config, log *zap.Logger) *cobra.Command {
	var (
		configFile string
		logLevel   string
		a          *app
	)

	root := &cobra.Command{
		Use:           "wumpus",
		Short:         "Wumpus archives Discord guilds into a relational database",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = newApp(ctx, lcf, log, configFile, logLevel)
			return err
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./config.yaml)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	// subcommands read the app once PersistentPreRunE has built it
	current := func() *app { return a }
	root.AddCommand(
		newScrapeCommand(current),
		newWatchCommand(current),
		newServeCommand(current),
		newDownloadCommand(current),
		newStatusCommand(current),
		newMigrateCommand(current),
		newDeleteGuildCommand(current),
	)
	return root
}
