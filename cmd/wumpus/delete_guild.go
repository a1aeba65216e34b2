package main

import (
	"errors"

	"github.com/spf13/cobra"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

func newDeleteGuildCommand(current func() *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-guild guild-id",
		Short: "Delete a guild and everything archived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			ids, err := a.guilds(args)
			if err != nil {
				return err
			}
			if !yes {
				return errors.New("refusing to delete without --yes")
			}
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()

			var found bool
			err = a.storage.Begin(a.ctx, func(q entity.Querier) (err error) {
				found, err = entity.DeleteGuild(a.ctx, q, ids[0])
				return err
			})
			if err != nil {
				return err
			}
			if !found {
				a.logger.Sugar().Warnf("Guild %s is not archived.", ids[0])
				return nil
			}
			a.logger.Sugar().Infof("Deleted guild %s.", ids[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the deletion")
	return cmd
}
