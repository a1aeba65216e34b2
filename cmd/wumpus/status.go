package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

func newStatusCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status [guild-id...]",
		Short: "Show archive progress per channel",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()

			var filter map[entity.Snowflake]bool
			if len(args) > 0 {
				ids, err := a.guilds(args)
				if err != nil {
					return err
				}
				filter = map[entity.Snowflake]bool{}
				for _, id := range ids {
					filter[id] = true
				}
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			err := a.storage.Begin(a.ctx, func(q entity.Querier) error {
				guilds, err := entity.FindGuilds(a.ctx, q)
				if err != nil {
					return err
				}
				for _, g := range guilds {
					if filter != nil && !filter[g.ID] {
						continue
					}
					last := "never"
					if g.LastScrapedAt != nil {
						last = g.LastScrapedAt.Local().Format("2006-01-02 15:04")
					}
					fmt.Fprintf(w, "%s\t%s\tscraped %d times, last %s\n", g.ID, g.Name, g.ScrapeCount, last)
					fmt.Fprintln(w, "\tCHANNEL\tKIND\tSTATE\tCURSOR\tMESSAGES\tERROR")
					channels, err := entity.FindGuildChannels(a.ctx, q, g.ID)
					if err != nil {
						return err
					}
					for _, c := range channels {
						if !c.HasMessages() {
							continue
						}
						errText := ""
						if c.ArchiveError != nil {
							errText = *c.ArchiveError
						}
						fmt.Fprintf(w, "\t#%s\t%s\t%s\t%s\t%d\t%s\n", c.Name, c.Kind(), c.ArchiveState, c.Cursor(), c.MessageCount, errText)
					}
				}
				return nil
			})
			if err != nil {
				return err
			}
			return w.Flush()
		},
	}
}
