package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pkg.mon.icu/wumpus/internal/archiver"
	"pkg.mon.icu/wumpus/internal/download"
	"pkg.mon.icu/wumpus/internal/storage/entity"
)

func newScrapeCommand(current func() *app) *cobra.Command {
	var (
		full      bool
		downloads bool
	)
	cmd := &cobra.Command{
		Use:   "scrape [guild-id...]",
		Short: "Archive guilds once, resuming where the last run stopped",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()
			err := a.scrape(args, archiver.Options{Full: full})
			if err != nil || !downloads {
				return err
			}
			_, err = download.New(&a.config.Download, a.logger, a.storage).Run(a.ctx, nil)
			return err
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "ignore saved cursors and walk every channel from the start")
	cmd.Flags().BoolVar(&downloads, "download", false, "download pending image attachments afterwards")
	return cmd
}

// scrape archives each guild with a freshly logged in archiver.
func (a *app) scrape(args []string, opts archiver.Options) error {
	guilds, err := a.guilds(args)
	if err != nil {
		return err
	}
	arch, err := a.newArchiver()
	if err != nil {
		return err
	}
	return archiveGuilds(a.ctx, a.logger.Sugar(), arch, guilds, opts)
}

type guildArchiver interface {
	ArchiveGuild(ctx context.Context, guildID entity.Snowflake, opts archiver.Options) (*archiver.Report, error)
}

// archiveGuilds archives each guild in turn. A guild that can't be archived at
// all doesn't stop later guilds but is returned as an error. Otherwise failed
// channels make the result errChannelsFailed.
func archiveGuilds(ctx context.Context, log *zap.SugaredLogger, arch guildArchiver, guilds []entity.Snowflake, opts archiver.Options) error {
	var guildErrs []error
	failed := false
	for _, id := range guilds {
		report, err := arch.ArchiveGuild(ctx, id, opts)
		if errors.Is(err, context.Canceled) {
			log.Infof("Interrupted, %d channels of guild %s can be resumed.", len(report.Paused()), id)
			return err
		}
		if err != nil {
			log.Errorf("Failed to archive guild %s: %s.", id, err)
			guildErrs = append(guildErrs, fmt.Errorf("couldn't archive guild %s: %w", id, err))
			continue
		}
		for _, w := range report.Warnings {
			log.Warnf("Guild %s: %s.", id, w)
		}
		for _, c := range report.Channels {
			switch {
			case c.Err != nil:
				log.Errorf("Channel %s (#%s) failed at cursor %s: %s.", c.ID, c.Name, c.Cursor, c.Err)
			case c.Warning != "":
				log.Warnf("Channel %s (#%s): %s.", c.ID, c.Name, c.Warning)
			}
		}
		log.Infof("Archived guild %s in %s: %d messages, %d members, %d of %d channels completed.",
			id, report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond), report.Messages(), report.Members, len(report.Completed()), len(report.Channels))
		if len(report.Failed()) > 0 {
			failed = true
		}
	}
	switch {
	case len(guildErrs) > 0:
		return errors.Join(guildErrs...)
	case failed:
		return errChannelsFailed
	}
	return nil
}
