package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()
			a.logger.Sugar().Infof("Schema is up to date (%s).", a.storage.Dialect())
			return nil
		},
	}
}
