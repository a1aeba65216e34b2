package main

import (
	"github.com/disgoorg/snowflake/v2"
	"github.com/spf13/cobra"

	"pkg.mon.icu/wumpus/internal/download"
)

func newDownloadCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download [guild-id]",
		Short: "Download pending image attachments to the local mirror",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			var guildID *snowflake.ID
			if len(args) == 1 {
				ids, err := a.guilds(args)
				if err != nil {
					return err
				}
				guildID = &ids[0]
			}
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()
			_, err := download.New(&a.config.Download, a.logger, a.storage).Run(a.ctx, guildID)
			return err
		},
	}
}
