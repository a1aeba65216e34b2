package archiver_test

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// fakeSource serves a fixed guild. Queued errors are returned, in order, by the
// next calls of the matching operation before it starts succeeding.
type fakeSource struct {
	mu       sync.Mutex
	guild    *discordgo.Guild
	channels []*discordgo.Channel
	roles    []*discordgo.Role
	members  []*discordgo.Member
	messages map[entity.Snowflake][]*discordgo.Message
	reactors map[string][]*discordgo.User
	errs     map[string][]error
	// calls records the after argument of every Messages call per channel.
	calls map[entity.Snowflake][]entity.Snowflake
	// onMessages runs before every Messages call; a non-nil result is returned.
	onMessages func(channelID, after entity.Snowflake) error
}

func newFakeSource(guildID entity.Snowflake) *fakeSource {
	return &fakeSource{
		guild:    &discordgo.Guild{ID: guildID.String(), Name: "guild", OwnerID: "1"},
		messages: map[entity.Snowflake][]*discordgo.Message{},
		reactors: map[string][]*discordgo.User{},
		errs:     map[string][]error{},
		calls:    map[entity.Snowflake][]entity.Snowflake{},
	}
}

func (f *fakeSource) addChannel(id entity.Snowflake, name string, typ discordgo.ChannelType, position int) {
	f.channels = append(f.channels, &discordgo.Channel{ID: id.String(), GuildID: f.guild.ID, Name: name, Type: typ, Position: position})
}

// addMessages adds n messages with IDs first, first+1, ... authored by user 500.
func (f *fakeSource) addMessages(channelID, first entity.Snowflake, n int) {
	for i := 0; i < n; i++ {
		id := first + entity.Snowflake(i)
		f.messages[channelID] = append(f.messages[channelID], &discordgo.Message{
			ID:        id.String(),
			ChannelID: channelID.String(),
			Content:   fmt.Sprintf("message %d", i+1),
			Author:    &discordgo.User{ID: "500", Username: "author"},
		})
	}
}

func (f *fakeSource) queueErr(op string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[op] = append(f.errs[op], errs...)
}

func (f *fakeSource) popErr(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.errs[op]) == 0 {
		return nil
	}
	err := f.errs[op][0]
	f.errs[op] = f.errs[op][1:]
	return err
}

func (f *fakeSource) messageCalls(channelID entity.Snowflake) []entity.Snowflake {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls[channelID])
}

func (f *fakeSource) Guild(ctx context.Context, guildID entity.Snowflake) (*discordgo.Guild, error) {
	if err := f.popErr("guild"); err != nil {
		return nil, err
	}
	return f.guild, nil
}

func (f *fakeSource) Channels(ctx context.Context, guildID entity.Snowflake) ([]*discordgo.Channel, error) {
	if err := f.popErr("channels"); err != nil {
		return nil, err
	}
	return f.channels, nil
}

func (f *fakeSource) Roles(ctx context.Context, guildID entity.Snowflake) ([]*discordgo.Role, error) {
	return f.roles, f.popErr("roles")
}

func (f *fakeSource) Members(ctx context.Context, guildID, after entity.Snowflake, limit int) ([]*discordgo.Member, error) {
	if err := f.popErr("members"); err != nil {
		return nil, err
	}
	var out []*discordgo.Member
	for _, m := range f.members {
		if snowflake.MustParse(m.User.ID) > after && len(out) < limit {
			out = append(out, m)
		}
	}
	return out, nil
}

// Messages returns the page newest first, like the real API does.
func (f *fakeSource) Messages(ctx context.Context, channelID, after entity.Snowflake, limit int) ([]*discordgo.Message, error) {
	f.mu.Lock()
	f.calls[channelID] = append(f.calls[channelID], after)
	hook := f.onMessages
	f.mu.Unlock()
	if hook != nil {
		if err := hook(channelID, after); err != nil {
			return nil, err
		}
	}
	if err := f.popErr(fmt.Sprintf("messages:%s", channelID)); err != nil {
		return nil, err
	}

	all := slices.Clone(f.messages[channelID])
	slices.SortFunc(all, func(x, y *discordgo.Message) int {
		xid, _ := snowflake.Parse(x.ID)
		yid, _ := snowflake.Parse(y.ID)
		return cmp.Compare(xid, yid)
	})
	var page []*discordgo.Message
	for _, m := range all {
		id, err := snowflake.Parse(m.ID)
		if err == nil && id <= after {
			continue
		}
		if len(page) == limit {
			break
		}
		page = append(page, m)
	}
	slices.Reverse(page)
	return page, nil
}

func (f *fakeSource) ReactionUsers(ctx context.Context, channelID, messageID entity.Snowflake, emoji string, after entity.Snowflake, limit int) ([]*discordgo.User, error) {
	var out []*discordgo.User
	for _, u := range f.reactors[messageID.String()+"/"+emoji] {
		// users with unparseable IDs sort first
		id, err := snowflake.Parse(u.ID)
		if (err == nil && id > after || err != nil && after == 0) && len(out) < limit {
			out = append(out, u)
		}
	}
	return out, nil
}
