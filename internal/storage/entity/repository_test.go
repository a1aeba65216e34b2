package entity_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pkg.mon.icu/wumpus/internal/storage"
	"pkg.mon.icu/wumpus/internal/storage/entity"
	"pkg.mon.icu/wumpus/internal/storage/storagetest"
)

func inTx(t *testing.T, s *storage.Storage, fn func(ctx context.Context, q entity.Querier)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.Begin(ctx, func(q entity.Querier) error {
		fn(ctx, q)
		return nil
	}))
}

func seed(t *testing.T, s *storage.Storage) {
	t.Helper()
	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.UpsertGuild(ctx, q, &entity.Guild{ID: 1, Name: "guild"}))
		require.NoError(t, entity.UpsertChannels(ctx, q, []*entity.Channel{
			{ID: 10, GuildID: 1, Name: "general", Position: 1},
			{ID: 11, GuildID: 1, Name: "random", Position: 2},
		}))
		require.NoError(t, entity.UpsertUsers(ctx, q, []*entity.User{
			{ID: 100, Username: "alice"},
			{ID: 101, Username: "bob"},
		}))
	})
}

func message(id, channel, author entity.Snowflake, content string) *entity.Message {
	return &entity.Message{
		ID:        id,
		ChannelID: channel,
		AuthorID:  &author,
		Content:   content,
		CreatedAt: id.Time().UTC(),
	}
}

func TestUpsertGuildIsIdempotent(t *testing.T) {
	s := storagetest.New(t)
	icon := "https://cdn/icon.png"

	var first, second *entity.Guild
	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		first = &entity.Guild{ID: 1, Name: "guild", IconURL: &icon, MemberCount: 3}
		require.NoError(t, entity.UpsertGuild(ctx, q, first))
		time.Sleep(time.Millisecond)
		second = &entity.Guild{ID: 1, Name: "guild", IconURL: &icon, MemberCount: 3}
		require.NoError(t, entity.UpsertGuild(ctx, q, second))

		all, err := entity.FindGuilds(ctx, q)
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})
	assert.Equal(t, first, second)
	assert.Equal(t, icon, *second.IconURL)
	assert.Equal(t, 3, second.MemberCount)
}

func TestUpsertUnchangedRowsKeepTimestamps(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		first := message(1000, 10, 100, "hello")
		require.NoError(t, entity.UpsertMessage(ctx, q, first))
		u1 := &entity.User{ID: 100, Username: "alice"}
		require.NoError(t, entity.UpsertUser(ctx, q, u1))
		c1 := &entity.Channel{ID: 10, GuildID: 1, Name: "general", Position: 1}
		require.NoError(t, entity.UpsertChannel(ctx, q, c1))

		time.Sleep(time.Millisecond)
		second := message(1000, 10, 100, "hello")
		require.NoError(t, entity.UpsertMessage(ctx, q, second))
		u2 := &entity.User{ID: 100, Username: "alice"}
		require.NoError(t, entity.UpsertUser(ctx, q, u2))
		c2 := &entity.Channel{ID: 10, GuildID: 1, Name: "general", Position: 1}
		require.NoError(t, entity.UpsertChannel(ctx, q, c2))

		assert.Equal(t, first, second)
		assert.Equal(t, u1, u2)
		assert.Equal(t, c1, c2)
	})
}

func TestUpsertGuildUpdatesInPlace(t *testing.T) {
	s := storagetest.New(t)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		g := &entity.Guild{ID: 1, Name: "old"}
		require.NoError(t, entity.UpsertGuild(ctx, q, g))
		archivedAt := g.ArchivedAt

		time.Sleep(time.Millisecond)
		g = &entity.Guild{ID: 1, Name: "new"}
		require.NoError(t, entity.UpsertGuild(ctx, q, g))
		assert.Equal(t, "new", g.Name)
		assert.True(t, archivedAt.Equal(g.ArchivedAt))
		assert.True(t, g.UpdatedAt.After(archivedAt))
	})
}

func TestTouchGuildScrape(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.TouchGuildScrape(ctx, q, 1))
		g, err := entity.FindGuild(ctx, q, 1)
		require.NoError(t, err)
		first := *g.FirstScrapedAt

		time.Sleep(time.Millisecond)
		require.NoError(t, entity.TouchGuildScrape(ctx, q, 1))
		g, err = entity.FindGuild(ctx, q, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, g.ScrapeCount)
		assert.True(t, first.Equal(*g.FirstScrapedAt))
		assert.True(t, g.LastScrapedAt.After(first))
	})
}

func TestUpsertMessageKeepsIdentity(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		m := message(1000, 10, 100, "first")
		require.NoError(t, entity.UpsertMessage(ctx, q, m))
		createdAt, archivedAt := m.CreatedAt, m.ArchivedAt

		edited := time.Now().UTC().Truncate(time.Second)
		changed := message(1000, 10, 100, "edited")
		changed.CreatedAt = createdAt.Add(time.Hour)
		changed.EditedAt = &edited
		changed.Embeds = []entity.Embed{{Title: "embed", Fields: []entity.EmbedField{{Name: "k", Value: "v"}}}}
		require.NoError(t, entity.UpsertMessage(ctx, q, changed))

		stored, err := entity.FindMessage(ctx, q, 1000)
		require.NoError(t, err)
		assert.Equal(t, "edited", stored.Content)
		assert.True(t, createdAt.Equal(stored.CreatedAt))
		assert.True(t, archivedAt.Equal(stored.ArchivedAt))
		require.NotNil(t, stored.EditedAt)
		assert.True(t, edited.Equal(*stored.EditedAt))
		assert.Equal(t, changed.Embeds, stored.Embeds)

		n, err := entity.CountChannelMessages(ctx, q, 10)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})
}

func TestUpsertMessageAllowsDanglingReply(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		m := message(1000, 10, 100, "reply")
		missing := entity.Snowflake(999)
		m.ReferenceID = &missing
		require.NoError(t, entity.UpsertMessage(ctx, q, m))
		assert.Equal(t, missing, *m.ReferenceID)
	})
}

func TestUpsertMessageWithoutChannelFails(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	err := s.Begin(context.Background(), func(q entity.Querier) error {
		return entity.UpsertMessage(context.Background(), q, message(1000, 99, 100, "orphan"))
	})
	assert.True(t, storage.IsIntegrityError(err))
}

func TestFindChannelMessages(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		for _, id := range []entity.Snowflake{1005, 1001, 1003, 1002, 1004} {
			require.NoError(t, entity.UpsertMessage(ctx, q, message(id, 10, 100, "m")))
		}
		require.NoError(t, entity.UpsertMessage(ctx, q, message(2000, 11, 100, "other")))

		ids := func(ms []*entity.Message) []entity.Snowflake {
			out := make([]entity.Snowflake, len(ms))
			for i, m := range ms {
				out[i] = m.ID
			}
			return out
		}

		ms, err := entity.FindChannelMessages(ctx, q, 10, 0, 0, 10)
		require.NoError(t, err)
		assert.Equal(t, []entity.Snowflake{1001, 1002, 1003, 1004, 1005}, ids(ms))

		ms, err = entity.FindChannelMessages(ctx, q, 10, 1002, 0, 2)
		require.NoError(t, err)
		assert.Equal(t, []entity.Snowflake{1003, 1004}, ids(ms))

		ms, err = entity.FindChannelMessages(ctx, q, 10, 0, 1004, 2)
		require.NoError(t, err)
		assert.Equal(t, []entity.Snowflake{1002, 1003}, ids(ms))

		ms, err = entity.FindChannelMessages(ctx, q, 10, 1001, 1004, 10)
		require.NoError(t, err)
		assert.Equal(t, []entity.Snowflake{1002, 1003}, ids(ms))

		last, err := entity.LastMessageID(ctx, q, 10)
		require.NoError(t, err)
		assert.Equal(t, entity.Snowflake(1005), last)

		last, err = entity.LastMessageID(ctx, q, 12345)
		require.NoError(t, err)
		assert.Zero(t, last)
	})
}

func TestChannelProgress(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		for _, id := range []entity.Snowflake{1001, 1002, 1003} {
			require.NoError(t, entity.UpsertMessage(ctx, q, message(id, 10, 100, "m")))
		}
		n, err := entity.SaveChannelProgress(ctx, q, 10, 1003)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		errText := "boom"
		require.NoError(t, entity.SetChannelState(ctx, q, 10, entity.ArchiveStateFailed, &errText))

		// Metadata updates leave progress alone.
		require.NoError(t, entity.UpsertChannel(ctx, q, &entity.Channel{ID: 10, GuildID: 1, Name: "renamed"}))

		c, err := entity.FindChannel(ctx, q, 10)
		require.NoError(t, err)
		assert.Equal(t, "renamed", c.Name)
		assert.Equal(t, entity.Snowflake(1003), c.Cursor())
		assert.Equal(t, 3, c.MessageCount)
		assert.Equal(t, entity.ArchiveStateFailed, c.ArchiveState)
		assert.Equal(t, "boom", *c.ArchiveError)
		assert.NotNil(t, c.LastScrapedAt)

		require.NoError(t, entity.ResetChannelCursor(ctx, q, 10))
		c, err = entity.FindChannel(ctx, q, 10)
		require.NoError(t, err)
		assert.Zero(t, c.Cursor())
		assert.Equal(t, 3, c.MessageCount)
	})
}

func TestUpsertMemberReplacesRoles(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.UpsertRoles(ctx, q, []*entity.Role{
			{ID: 20, GuildID: 1, Name: "mod", Position: 2},
			{ID: 21, GuildID: 1, Name: "member", Position: 1},
		}))
		nick := "al"
		m := &entity.Member{GuildID: 1, UserID: 100, Nick: &nick, RoleIDs: []entity.Snowflake{20, 21}}
		require.NoError(t, entity.UpsertMember(ctx, q, m))
		assert.Equal(t, []entity.Snowflake{20, 21}, m.RoleIDs)

		m = &entity.Member{GuildID: 1, UserID: 100, RoleIDs: []entity.Snowflake{21}}
		require.NoError(t, entity.UpsertMember(ctx, q, m))

		stored, err := entity.FindMember(ctx, q, 1, 100)
		require.NoError(t, err)
		assert.Nil(t, stored.Nick)
		assert.Equal(t, []entity.Snowflake{21}, stored.RoleIDs)

		ms, err := entity.FindGuildMembers(ctx, q, 1)
		require.NoError(t, err)
		assert.Len(t, ms, 1)

		roles, err := entity.FindGuildRoles(ctx, q, 1)
		require.NoError(t, err)
		require.Len(t, roles, 2)
		assert.Equal(t, "mod", roles[0].Name)
	})
}

func TestUpsertAttachmentKeepsDownloadState(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.UpsertMessage(ctx, q, message(1000, 10, 100, "pic")))
		ct := "image/png"
		a := &entity.Attachment{ID: 5000, MessageID: 1000, Filename: "a.png", ContentType: &ct, URL: "https://cdn/a.png"}
		require.NoError(t, entity.UpsertAttachment(ctx, q, a))
		assert.Equal(t, entity.DownloadPending, a.DownloadStatus)

		pending, err := entity.FindPendingImages(ctx, q, nil, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, entity.Snowflake(10), pending[0].ChannelID)

		path, hash := "10/5000_a.png", "abc"
		require.NoError(t, entity.SetAttachmentDownload(ctx, q, 5000, entity.DownloadDownloaded, &path, &hash))

		a = &entity.Attachment{ID: 5000, MessageID: 1000, Filename: "b.png", ContentType: &ct, URL: "https://cdn/b.png"}
		require.NoError(t, entity.UpsertAttachment(ctx, q, a))
		assert.Equal(t, "b.png", a.Filename)
		assert.Equal(t, entity.DownloadDownloaded, a.DownloadStatus)
		assert.Equal(t, path, *a.LocalPath)
		assert.Equal(t, hash, *a.ContentHash)

		pending, err = entity.FindPendingImages(ctx, q, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)

		gallery, err := entity.FindGallery(ctx, q, 1, 0, 10)
		require.NoError(t, err)
		require.Len(t, gallery, 1)
		assert.Equal(t, entity.Snowflake(10), gallery[0].ChannelID)
	})
}

func TestReactions(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.UpsertMessage(ctx, q, message(1000, 10, 100, "react")))
		r := &entity.Reaction{MessageID: 1000, EmojiKey: "👍", EmojiName: "👍", Count: 1, UserIDs: []entity.Snowflake{100}}
		require.NoError(t, entity.UpsertReactions(ctx, q, []*entity.Reaction{r}))

		r.Count = 2
		r.UserIDs = []entity.Snowflake{100, 101}
		require.NoError(t, entity.UpsertReaction(ctx, q, r))

		rs, err := entity.FindMessageReactions(ctx, q, 1000)
		require.NoError(t, err)
		require.Len(t, rs, 1)
		assert.Equal(t, 2, rs[0].Count)
		assert.Equal(t, []entity.Snowflake{100, 101}, rs[0].UserIDs)
	})
}

func TestSearchMessages(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.UpsertMessages(ctx, q, []*entity.Message{
			message(1001, 10, 100, "Hello World"),
			message(1002, 11, 101, "hello again"),
			message(1003, 10, 101, "100% done"),
			message(1004, 10, 101, "1000 done"),
		}))

		ms, err := entity.SearchMessages(ctx, q, entity.SearchQuery{Text: "HELLO", Limit: 10})
		require.NoError(t, err)
		require.Len(t, ms, 2)
		assert.Equal(t, entity.Snowflake(1002), ms[0].ID)

		channel := entity.Snowflake(10)
		ms, err = entity.SearchMessages(ctx, q, entity.SearchQuery{Text: "hello", ChannelID: &channel, Limit: 10})
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, entity.Snowflake(1001), ms[0].ID)

		ms, err = entity.SearchMessages(ctx, q, entity.SearchQuery{Text: "0%", Limit: 10})
		require.NoError(t, err)
		require.Len(t, ms, 1)
		assert.Equal(t, entity.Snowflake(1003), ms[0].ID)

		author := entity.Snowflake(100)
		guild := entity.Snowflake(1)
		ms, err = entity.SearchMessages(ctx, q, entity.SearchQuery{Text: "o", GuildID: &guild, AuthorID: &author, Limit: 10})
		require.NoError(t, err)
		require.Len(t, ms, 1)

		require.NoError(t, entity.LoadMessageDetails(ctx, q, ms))
		assert.Equal(t, "alice", ms[0].Author.Username)
	})
}

func TestGuildStatsAndDelete(t *testing.T) {
	s := storagetest.New(t)
	seed(t, s)

	inTx(t, s, func(ctx context.Context, q entity.Querier) {
		require.NoError(t, entity.UpsertMessages(ctx, q, []*entity.Message{
			message(1001, 10, 100, "a"),
			message(1002, 10, 100, "b"),
			message(1003, 11, 101, "c"),
		}))
		require.NoError(t, entity.UpsertReaction(ctx, q, &entity.Reaction{MessageID: 1001, EmojiKey: "x", EmojiName: "x", Count: 4}))
		_, err := entity.SaveChannelProgress(ctx, q, 10, 1002)
		require.NoError(t, err)
		_, err = entity.SaveChannelProgress(ctx, q, 11, 1003)
		require.NoError(t, err)

		st, err := entity.GuildStats(ctx, q, 1, 5)
		require.NoError(t, err)
		assert.Equal(t, 2, st.Channels)
		assert.Equal(t, 3, st.Messages)
		assert.Equal(t, 2, st.Users)
		assert.Equal(t, 4, st.Reactions)
		require.Len(t, st.TopChannels, 2)
		assert.Equal(t, entity.Snowflake(10), st.TopChannels[0].ID)
		require.Len(t, st.TopUsers, 2)
		assert.Equal(t, "alice", st.TopUsers[0].Username)

		deleted, err := entity.DeleteGuild(ctx, q, 1)
		require.NoError(t, err)
		assert.True(t, deleted)

		m, err := entity.FindMessage(ctx, q, 1001)
		require.NoError(t, err)
		assert.Nil(t, m)
		rs, err := entity.FindMessageReactions(ctx, q, 1001)
		require.NoError(t, err)
		assert.Empty(t, rs)
		u, err := entity.FindUser(ctx, q, 100)
		require.NoError(t, err)
		assert.NotNil(t, u)

		deleted, err = entity.DeleteGuild(ctx, q, 1)
		require.NoError(t, err)
		assert.False(t, deleted)
	})
}
