package entity_test

import (
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

func TestNewMessageFromDiscord(t *testing.T) {
	edited := time.Date(2023, 5, 2, 12, 0, 0, 0, time.FixedZone("CEST", 2*60*60))
	m := &discordgo.Message{
		ID:              "1103000000000000001",
		ChannelID:       "900",
		Content:         "hello",
		Timestamp:       time.Date(2023, 5, 1, 10, 0, 0, 0, time.FixedZone("CEST", 2*60*60)),
		EditedTimestamp: &edited,
		Pinned:          true,
		Author:          &discordgo.User{ID: "42", Username: "wumpus", GlobalName: "Wumpus", Discriminator: "0"},
		MessageReference: &discordgo.MessageReference{
			MessageID: "1103000000000000000",
		},
		Attachments: []*discordgo.MessageAttachment{
			{ID: "7", Filename: "cat.png", ContentType: "image/png", URL: "https://cdn/cat.png", Size: 1024, Width: 10, Height: 20},
		},
		Reactions: []*discordgo.MessageReactions{
			{Count: 3, Emoji: &discordgo.Emoji{Name: "👍"}},
			{Count: 1, Emoji: &discordgo.Emoji{ID: "555", Name: "party", Animated: true}},
		},
		Embeds: []*discordgo.MessageEmbed{{
			Type:      discordgo.EmbedTypeRich,
			Title:     "title",
			Timestamp: "2023-05-01T08:00:00+00:00",
			Fields:    []*discordgo.MessageEmbedField{{Name: "a", Value: "b", Inline: true}},
			Footer:    &discordgo.MessageEmbedFooter{Text: "footer"},
		}},
	}

	msg, err := entity.NewMessageFromDiscord(m)
	require.NoError(t, err)

	assert.Equal(t, entity.Snowflake(1103000000000000001), msg.ID)
	assert.Equal(t, entity.Snowflake(900), msg.ChannelID)
	assert.Equal(t, time.UTC, msg.CreatedAt.Location())
	assert.Equal(t, time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC), msg.CreatedAt)
	require.NotNil(t, msg.EditedAt)
	assert.Equal(t, time.Date(2023, 5, 2, 10, 0, 0, 0, time.UTC), *msg.EditedAt)
	require.NotNil(t, msg.AuthorID)
	assert.Equal(t, entity.Snowflake(42), *msg.AuthorID)
	assert.Equal(t, "Wumpus", msg.Author.DisplayName())
	assert.Nil(t, msg.Author.Discriminator)
	require.NotNil(t, msg.ReferenceID)
	assert.Equal(t, entity.Snowflake(1103000000000000000), *msg.ReferenceID)

	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, msg.ID, msg.Attachments[0].MessageID)
	assert.True(t, msg.Attachments[0].IsImage())
	assert.Equal(t, entity.DownloadPending, msg.Attachments[0].DownloadStatus)

	require.Len(t, msg.Reactions, 2)
	assert.Equal(t, "👍", msg.Reactions[0].EmojiKey)
	assert.Equal(t, "👍", msg.Reactions[0].APIName())
	assert.Equal(t, "555", msg.Reactions[1].EmojiKey)
	assert.Equal(t, "party:555", msg.Reactions[1].APIName())
	assert.Equal(t, 1, msg.Reactions[1].Position)

	require.Len(t, msg.Embeds, 1)
	e := msg.Embeds[0]
	assert.Equal(t, "rich", e.Type)
	assert.Equal(t, "footer", e.Footer.Text)
	assert.Equal(t, []entity.EmbedField{{Name: "a", Value: "b", Inline: true}}, e.Fields)
	require.NotNil(t, e.Timestamp)
	assert.Equal(t, time.Date(2023, 5, 1, 8, 0, 0, 0, time.UTC), *e.Timestamp)
}

func TestNewMessageFromDiscordKeepsExactIDs(t *testing.T) {
	msg, err := entity.NewMessageFromDiscord(&discordgo.Message{ID: "18446744073709551615", ChannelID: "9007199254740993"})
	require.NoError(t, err)
	assert.Equal(t, "18446744073709551615", msg.ID.String())
	assert.Equal(t, "9007199254740993", msg.ChannelID.String())
	assert.Equal(t, msg.ID.Time().UTC(), msg.CreatedAt)
}

func TestNewMessageFromDiscordRejectsMalformed(t *testing.T) {
	for name, m := range map[string]*discordgo.Message{
		"missing id":       {ChannelID: "1"},
		"bad id":           {ID: "abc", ChannelID: "1"},
		"missing channel":  {ID: "1"},
		"bad author":       {ID: "1", ChannelID: "1", Author: &discordgo.User{ID: "not-a-number"}},
		"bad attachment":   {ID: "1", ChannelID: "1", Attachments: []*discordgo.MessageAttachment{{ID: "-1"}}},
		"emojiless":        {ID: "1", ChannelID: "1", Reactions: []*discordgo.MessageReactions{{Count: 1}}},
		"bad reply target": {ID: "1", ChannelID: "1", MessageReference: &discordgo.MessageReference{MessageID: "x"}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := entity.NewMessageFromDiscord(m)
			var me *entity.MappingError
			require.ErrorAs(t, err, &me)
		})
	}
}

func TestNewMessageFromDiscordNamesBadAuthor(t *testing.T) {
	_, err := entity.NewMessageFromDiscord(&discordgo.Message{ID: "1", ChannelID: "1", Author: &discordgo.User{ID: "x"}})
	var me *entity.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "message", me.Kind)
	assert.Equal(t, "author_id", me.Field)
	assert.Contains(t, me.Error(), `could not map message "1": invalid author_id`)
}

func TestNewChannelFromDiscord(t *testing.T) {
	c, err := entity.NewChannelFromDiscord(&discordgo.Channel{ID: "2", GuildID: "1", Name: "voice", Type: discordgo.ChannelTypeGuildVoice, ParentID: "3"})
	require.NoError(t, err)
	assert.Equal(t, "voice", c.Kind())
	assert.False(t, c.HasMessages())
	assert.Nil(t, c.Topic)
	require.NotNil(t, c.ParentID)
	assert.Equal(t, entity.Snowflake(3), *c.ParentID)

	c, err = entity.NewChannelFromDiscord(&discordgo.Channel{ID: "4", GuildID: "1", Type: discordgo.ChannelTypeGuildPublicThread})
	require.NoError(t, err)
	assert.Equal(t, "thread", c.Kind())
	assert.True(t, c.HasMessages())

	_, err = entity.NewChannelFromDiscord(&discordgo.Channel{ID: "4"})
	var me *entity.MappingError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "guild_id", me.Field)
}

func TestNewMemberFromDiscord(t *testing.T) {
	joined := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	m, err := entity.NewMemberFromDiscord(1, &discordgo.Member{
		User:     &discordgo.User{ID: "5", Username: "user", Discriminator: "1234"},
		Nick:     "nick",
		JoinedAt: joined,
		Roles:    []string{"10", "11"},
	})
	require.NoError(t, err)
	assert.Equal(t, entity.Snowflake(5), m.UserID)
	assert.Equal(t, []entity.Snowflake{10, 11}, m.RoleIDs)
	assert.Equal(t, "1234", *m.User.Discriminator)
	assert.Equal(t, joined, *m.JoinedAt)

	_, err = entity.NewMemberFromDiscord(1, &discordgo.Member{})
	var me *entity.MappingError
	assert.ErrorAs(t, err, &me)
}

func TestAttachmentIsImage(t *testing.T) {
	ct := "image/webp; charset=binary"
	other := "application/pdf"
	for _, tc := range []struct {
		a    entity.Attachment
		want bool
	}{
		{entity.Attachment{Filename: "a.bin", ContentType: &ct}, true},
		{entity.Attachment{Filename: "a.JPG"}, true},
		{entity.Attachment{Filename: "a.pdf", ContentType: &other}, false},
		{entity.Attachment{Filename: "README"}, false},
	} {
		assert.Equal(t, tc.want, tc.a.IsImage(), tc.a.Filename)
	}
}
