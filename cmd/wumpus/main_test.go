package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"pkg.mon.icu/wumpus/internal/archiver"
	"pkg.mon.icu/wumpus/internal/storage/entity"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, 0},
		{"interrupted", fmt.Errorf("archive: %w", context.Canceled), exitInterrupted},
		{"failed channels", errChannelsFailed, exitFailed},
		{"config", errors.New("couldn't load configuration"), exitError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestShouldLogError(t *testing.T) {
	assert.False(t, shouldLogError(nil))
	assert.False(t, shouldLogError(context.Canceled))
	assert.True(t, shouldLogError(errChannelsFailed))
}

type fakeArchiver map[entity.Snowflake]error

func (f fakeArchiver) ArchiveGuild(ctx context.Context, guildID entity.Snowflake, opts archiver.Options) (*archiver.Report, error) {
	report := &archiver.Report{GuildID: guildID, State: archiver.Completed}
	switch err := f[guildID]; {
	case errors.Is(err, errChannelsFailed):
		report.State = archiver.Failed
		report.Channels = []*archiver.ChannelReport{{ID: 10, State: archiver.Failed, Err: errors.New("boom")}}
		return report, nil
	case err != nil:
		report.State = archiver.Failed
		return report, err
	}
	return report, nil
}

func TestArchiveGuilds(t *testing.T) {
	tests := []struct {
		name   string
		arch   fakeArchiver
		want   int
		errMsg string
	}{
		{"all completed", fakeArchiver{}, 0, ""},
		{"failed channel", fakeArchiver{1: errChannelsFailed}, exitFailed, ""},
		{"unreachable guild", fakeArchiver{2: archiver.ErrNotFound}, exitError, "guild 2"},
		{"unreachable guild wins", fakeArchiver{1: errChannelsFailed, 2: archiver.ErrNotFound}, exitError, "guild 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := archiveGuilds(context.Background(), zaptest.NewLogger(t).Sugar(), tt.arch, []entity.Snowflake{1, 2}, archiver.Options{})
			assert.Equal(t, tt.want, exitCode(err))
			if tt.errMsg != "" {
				assert.ErrorIs(t, err, archiver.ErrNotFound)
				assert.Contains(t, err.Error(), tt.errMsg)
			}
		})
	}
}
