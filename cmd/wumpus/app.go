package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"pkg.mon.icu/wumpus/internal/archiver"
	"pkg.mon.icu/wumpus/internal/config"
	"pkg.mon.icu/wumpus/internal/discord"
	"pkg.mon.icu/wumpus/internal/storage"
)

type app struct {
	ctx context.Context

	logConf zap.Config
	logger  *zap.Logger

	config *config.Config

	storage *storage.Storage
}

func newApp(ctx context.Context, lcf zap.Config, log *zap.Logger, file, level string) (*app, error) {
	a := &app{ctx: ctx, logConf: lcf, logger: log}
	var err error

	log.Debug("Loading configuration.")
	a.config, err = config.Read(file)
	if err != nil {
		return nil, fmt.Errorf("couldn't load configuration: %w", err)
	}
	if level != "" {
		if a.config.Logging.Level, err = zapcore.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}

	log.Debug("Successfully loaded configuration (also switching log level.)")
	lcf.Level.SetLevel(a.config.Logging.Level)
	return a, nil
}

// openStorage connects to the configured database and brings its schema up to
// date.
func (a *app) openStorage() error {
	a.logger.Debug("Connecting to storage.")
	a.storage = storage.NewStorage(a.ctx, a.logger)
	if err := a.storage.Connect(a.config.Storage.DSN); err != nil {
		return fmt.Errorf("couldn't connect to storage: %w", err)
	}
	if err := a.storage.Migrate(a.ctx); err != nil {
		return fmt.Errorf("couldn't migrate storage: %w", err)
	}
	a.logger.Debug("Successfully connected to storage.")
	return nil
}

func (a *app) Close() {
	if a.storage == nil {
		return
	}
	a.logger.Debug("Closing storage.")
	if err := a.storage.Close(); err != nil {
		a.logger.Sugar().Errorf("Couldn't close storage: %s.", err)
	}
}

func (a *app) newArchiver() (*archiver.Archiver, error) {
	d, err := discord.NewDiscord(a.logger, a.config.Discord.Token, a.config.Archive.Threads)
	if err != nil {
		return nil, fmt.Errorf("couldn't initialize Discord: %w", err)
	}
	if err := d.Login(a.ctx); err != nil {
		return nil, fmt.Errorf("couldn't log in to Discord: %w", err)
	}
	return archiver.New(&a.config.Archive, a.logger, a.storage, d), nil
}

// guilds resolves guild IDs given on the command line, falling back to the
// configured ones.
func (a *app) guilds(args []string) ([]snowflake.ID, error) {
	if len(args) == 0 {
		if len(a.config.Discord.Guilds) == 0 {
			return nil, errors.New("no guilds given and discord.guilds is empty")
		}
		return a.config.Discord.Guilds, nil
	}
	ids := make([]snowflake.ID, len(args))
	for i, arg := range args {
		id, err := snowflake.Parse(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid guild id %q: %w", arg, err)
		}
		ids[i] = id
	}
	return ids, nil
}
