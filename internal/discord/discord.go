package discord

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// Discord reads guild history over the REST API. It implements
// archiver.Source.
type Discord struct {
	logger  *zap.SugaredLogger
	session *discordgo.Session
	threads bool
}

// NewDiscord creates a client for the bot token. Rate limits are reported to
// the caller instead of being waited out inside discordgo, so one throttled
// channel doesn't hold up the others. With threads set, Channels includes
// active and archived public threads.
func NewDiscord(log *zap.Logger, token string, threads bool) (*Discord, error) {
	if token == "" {
		return nil, errors.New("discord token is not set")
	}
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, err
	}
	s.ShouldRetryOnRateLimit = false
	s.MaxRestRetries = 0
	return &Discord{logger: log.Sugar(), session: s, threads: threads}, nil
}

// Login checks the token by fetching the bot's own user.
func (d *Discord) Login(ctx context.Context) error {
	u, err := d.session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return translate(err)
	}
	d.logger.Infof("Logged in Discord API as %s.", u)
	return nil
}

// Guild fetches the guild with approximate counts, since REST leaves
// MemberCount unset.
func (d *Discord) Guild(ctx context.Context, guildID entity.Snowflake) (*discordgo.Guild, error) {
	g, err := d.session.GuildWithCounts(guildID.String(), discordgo.WithContext(ctx))
	return g, translate(err)
}

func (d *Discord) Roles(ctx context.Context, guildID entity.Snowflake) ([]*discordgo.Role, error) {
	rs, err := d.session.GuildRoles(guildID.String(), discordgo.WithContext(ctx))
	return rs, translate(err)
}

func (d *Discord) Members(ctx context.Context, guildID, after entity.Snowflake, limit int) ([]*discordgo.Member, error) {
	ms, err := d.session.GuildMembers(guildID.String(), after.String(), limit, discordgo.WithContext(ctx))
	return ms, translate(err)
}

// Messages asks for messages after the cursor; a zero cursor starts at the
// beginning of the channel.
func (d *Discord) Messages(ctx context.Context, channelID, after entity.Snowflake, limit int) ([]*discordgo.Message, error) {
	ms, err := d.session.ChannelMessages(channelID.String(), limit, "", after.String(), "", discordgo.WithContext(ctx))
	return ms, translate(err)
}

func (d *Discord) ReactionUsers(ctx context.Context, channelID, messageID entity.Snowflake, emoji string, after entity.Snowflake, limit int) ([]*discordgo.User, error) {
	us, err := d.session.MessageReactions(channelID.String(), messageID.String(), emoji, limit, "", after.String(), discordgo.WithContext(ctx))
	return us, translate(err)
}
