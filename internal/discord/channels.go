package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

const archivedThreadsPageSize = 100

func (d *Discord) Channels(ctx context.Context, guildID entity.Snowflake) ([]*discordgo.Channel, error) {
	cs, err := d.session.GuildChannels(guildID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	if !d.threads {
		return cs, nil
	}

	active, err := d.session.GuildThreadsActive(guildID.String(), discordgo.WithContext(ctx))
	if err != nil {
		return nil, translate(err)
	}
	threads := active.Threads

	for _, c := range cs {
		if !hasThreads(c) {
			continue
		}
		archived, err := d.archivedThreads(ctx, c)
		if err != nil {
			if inaccessible(err) {
				d.logger.Debugf("Skipping archived threads of channel %s: %s.", c.ID, err)
				continue
			}
			return nil, err
		}
		threads = append(threads, archived...)
	}

	for _, t := range threads {
		if t.GuildID == "" {
			t.GuildID = guildID.String()
		}
	}
	d.logger.Debugf("Found %d channels and %d threads in guild %s.", len(cs), len(threads), guildID)
	return append(cs, threads...), nil
}

func hasThreads(c *discordgo.Channel) bool {
	switch c.Type {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews, discordgo.ChannelTypeGuildForum, discordgo.ChannelTypeGuildMedia:
		return true
	default:
		return false
	}
}

// archivedThreads pages through the channel's archived public threads, newest
// archival first.
func (d *Discord) archivedThreads(ctx context.Context, c *discordgo.Channel) ([]*discordgo.Channel, error) {
	var (
		out    []*discordgo.Channel
		before *time.Time
	)
	for {
		list, err := d.session.ThreadsArchived(c.ID, before, archivedThreadsPageSize, discordgo.WithContext(ctx))
		if err != nil {
			return nil, translate(err)
		}
		out = append(out, list.Threads...)
		if !list.HasMore || len(list.Threads) == 0 {
			return out, nil
		}
		last := list.Threads[len(list.Threads)-1]
		if last.ThreadMetadata == nil {
			return out, nil
		}
		ts := last.ThreadMetadata.ArchiveTimestamp
		before = &ts
	}
}
