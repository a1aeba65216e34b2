package main

import (
	"errors"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"pkg.mon.icu/wumpus/internal/archiver"
)

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}

func newWatchCommand(current func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [guild-id...]",
		Short: "Archive guilds now and then on the configured schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := current()
			if err := a.openStorage(); err != nil {
				return err
			}
			defer a.Close()
			// fail early on bad arguments rather than at the first tick
			if _, err := a.guilds(args); err != nil {
				return err
			}

			log := a.logger.Sugar()
			pass := func() {
				err := a.scrape(args, archiver.Options{})
				switch {
				case errors.Is(err, errChannelsFailed):
					log.Warn("Pass finished with failed channels, they will be retried next time.")
				case shouldLogError(err):
					log.Errorf("Pass failed: %s.", err)
				}
			}

			cl := cronLogger{log}
			c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
			if _, err := c.AddFunc(a.config.Watch.Schedule, pass); err != nil {
				return err
			}

			pass()
			c.Start()
			log.Infof("Watching on schedule %q. Send SIGINT to gracefully terminate.", a.config.Watch.Schedule)
			<-a.ctx.Done()
			log.Info("Signal received, waiting for the running pass.")
			<-c.Stop().Done()
			return nil
		},
	}
}
