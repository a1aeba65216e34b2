package entity

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Channel struct {
	ID            Snowflake  `json:"id"`
	GuildID       Snowflake  `json:"guild_id"`
	Name          string     `json:"name"`
	Type          int        `json:"type"`
	Topic         *string    `json:"topic"`
	Position      int        `json:"position"`
	ParentID      *Snowflake `json:"parent_id"`
	ArchivedAt    time.Time  `json:"archived_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	LastMessageID *Snowflake `json:"last_message_id"`
	MessageCount  int        `json:"message_count"`
	ArchiveState  string     `json:"archive_state"`
	ArchiveError  *string    `json:"archive_error,omitempty"`
	LastScrapedAt *time.Time `json:"last_scraped_at"`
}

func NewChannelFromDiscord(c *discordgo.Channel) (*Channel, error) {
	id, err := parseSnowflake("channel", c.ID, "id", c.ID)
	if err != nil {
		return nil, err
	}
	guildID, err := parseSnowflake("channel", c.ID, "guild_id", c.GuildID)
	if err != nil {
		return nil, err
	}
	parentID, err := parseOptionalSnowflake("channel", c.ID, "parent_id", c.ParentID)
	if err != nil {
		return nil, err
	}
	return &Channel{
		ID:       id,
		GuildID:  guildID,
		Name:     c.Name,
		Type:     int(c.Type),
		Topic:    ptr(c.Topic),
		Position: c.Position,
		ParentID: parentID,
	}, nil
}

// Kind is the readable name of the channel type.
func (c *Channel) Kind() string {
	switch discordgo.ChannelType(c.Type) {
	case discordgo.ChannelTypeGuildText:
		return "text"
	case discordgo.ChannelTypeGuildVoice:
		return "voice"
	case discordgo.ChannelTypeGuildCategory:
		return "category"
	case discordgo.ChannelTypeGuildNews:
		return "news"
	case discordgo.ChannelTypeGuildNewsThread, discordgo.ChannelTypeGuildPublicThread, discordgo.ChannelTypeGuildPrivateThread:
		return "thread"
	case discordgo.ChannelTypeGuildStageVoice:
		return "stage"
	case discordgo.ChannelTypeGuildForum:
		return "forum"
	case discordgo.ChannelTypeGuildMedia:
		return "media"
	default:
		return "unknown"
	}
}

// HasMessages reports whether the channel carries a message history of its own.
func (c *Channel) HasMessages() bool {
	switch discordgo.ChannelType(c.Type) {
	case discordgo.ChannelTypeGuildText,
		discordgo.ChannelTypeGuildNews,
		discordgo.ChannelTypeGuildNewsThread,
		discordgo.ChannelTypeGuildPublicThread,
		discordgo.ChannelTypeGuildPrivateThread:
		return true
	default:
		return false
	}
}

// Cursor is the ID of the last committed message, or 0.
func (c *Channel) Cursor() Snowflake {
	if c.LastMessageID == nil {
		return 0
	}
	return *c.LastMessageID
}

const channelColumns = `id, guild_id, name, type, topic, position, parent_id, archived_at, updated_at, last_message_id, message_count, archive_state, archive_error, last_scraped_at`

func scanChannel(row scanner) (*Channel, error) {
	c := &Channel{}
	err := row.Scan(&c.ID, &c.GuildID, &c.Name, &c.Type, &c.Topic, &c.Position, &c.ParentID, &c.ArchivedAt, &c.UpdatedAt, &c.LastMessageID, &c.MessageCount, &c.ArchiveState, &c.ArchiveError, &c.LastScrapedAt)
	return c, err
}

func FindChannel(ctx context.Context, q Querier, id Snowflake) (*Channel, error) {
	return queryOne(ctx, q, `select `+channelColumns+` from channels where id = $1`, []any{idArg(id)}, scanChannel)
}

func FindGuildChannels(ctx context.Context, q Querier, guildID Snowflake) ([]*Channel, error) {
	return queryAll(ctx, q, `select `+channelColumns+` from channels where guild_id = $1 order by position, id`, []any{idArg(guildID)}, scanChannel)
}

// UpsertChannel inserts c or updates its metadata. Archival progress columns
// are left alone.
func UpsertChannel(ctx context.Context, q Querier, c *Channel) error {
	now := Now()
	err := exec(
		ctx,
		q,
		`insert into channels (id, guild_id, name, type, topic, position, parent_id, archived_at, updated_at, message_count, archive_state) values ($1, $2, $3, $4, $5, $6, $7, $8, $8, 0, $9)
		on conflict (id) do update set name = excluded.name, type = excluded.type, topic = excluded.topic, position = excluded.position, parent_id = excluded.parent_id, updated_at = excluded.updated_at
		where channels.name is distinct from excluded.name or channels.type is distinct from excluded.type or channels.topic is distinct from excluded.topic or channels.position is distinct from excluded.position or channels.parent_id is distinct from excluded.parent_id`,
		idArg(c.ID), idArg(c.GuildID), c.Name, c.Type, nullable(c.Topic), c.Position, nullID(c.ParentID), now, ArchiveStatePending,
	)
	if err != nil {
		return err
	}
	return reload(ctx, q, c, FindChannel, c.ID)
}

func UpsertChannels(ctx context.Context, q Querier, cs []*Channel) error {
	return upsertAll(ctx, q, cs, UpsertChannel)
}

// SaveChannelProgress moves the channel cursor and recounts its messages. It
// returns the new message count.
func SaveChannelProgress(ctx context.Context, q Querier, id, cursor Snowflake) (int, error) {
	err := exec(
		ctx,
		q,
		`update channels set last_message_id = $2, message_count = (select count(*) from messages where channel_id = $1), last_scraped_at = $3 where id = $1`,
		idArg(id), idArg(cursor), Now(),
	)
	if err != nil {
		return 0, err
	}
	return CountChannelMessages(ctx, q, id)
}

// SetChannelState records the outcome of the channel's latest archival pass.
func SetChannelState(ctx context.Context, q Querier, id Snowflake, state string, errText *string) error {
	return exec(ctx, q, `update channels set archive_state = $2, archive_error = $3, last_scraped_at = $4 where id = $1`, idArg(id), state, nullable(errText), Now())
}

// ResetChannelCursor makes the next pass start from the beginning of history.
func ResetChannelCursor(ctx context.Context, q Querier, id Snowflake) error {
	return exec(ctx, q, `update channels set last_message_id = null where id = $1`, idArg(id))
}
