package entity

import (
	"context"
)

type ChannelActivity struct {
	ID       Snowflake `json:"id"`
	Name     string    `json:"name"`
	Messages int       `json:"messages"`
}

type UserActivity struct {
	ID       Snowflake `json:"id"`
	Username string    `json:"username"`
	Messages int       `json:"messages"`
}

type Stats struct {
	Channels    int                `json:"channels"`
	Messages    int                `json:"messages"`
	Users       int                `json:"users"`
	Members     int                `json:"members"`
	Attachments int                `json:"attachments"`
	Reactions   int                `json:"reactions"`
	TopChannels []*ChannelActivity `json:"top_channels"`
	TopUsers    []*UserActivity    `json:"top_users"`
}

// GuildStats summarizes what is archived for the guild. top bounds the
// channel and user rankings.
func GuildStats(ctx context.Context, q Querier, guildID Snowflake, top int) (*Stats, error) {
	gid := idArg(guildID)
	s := &Stats{}
	counts := []struct {
		dst  *int
		stmt string
	}{
		{&s.Channels, `select count(*) from channels where guild_id = $1`},
		{&s.Messages, `select count(*) from messages m join channels c on c.id = m.channel_id where c.guild_id = $1`},
		{&s.Users, `select count(distinct m.author_id) from messages m join channels c on c.id = m.channel_id where c.guild_id = $1`},
		{&s.Members, `select count(*) from members where guild_id = $1`},
		{&s.Attachments, `select count(*) from attachments a join messages m on m.id = a.message_id join channels c on c.id = m.channel_id where c.guild_id = $1`},
		{&s.Reactions, `select coalesce(sum(r.count), 0) from reactions r join messages m on m.id = r.message_id join channels c on c.id = m.channel_id where c.guild_id = $1`},
	}
	for _, c := range counts {
		n, err := count(ctx, q, c.stmt, gid)
		if err != nil {
			return nil, err
		}
		*c.dst = n
	}

	var err error
	s.TopChannels, err = queryAll(ctx, q, `select id, name, message_count from channels where guild_id = $1 and message_count > 0 order by message_count desc, id limit $2`, []any{gid, top}, func(row scanner) (*ChannelActivity, error) {
		a := &ChannelActivity{}
		err := row.Scan(&a.ID, &a.Name, &a.Messages)
		return a, err
	})
	if err != nil {
		return nil, err
	}
	s.TopUsers, err = queryAll(ctx, q, `select u.id, u.username, count(*) as n from messages m join channels c on c.id = m.channel_id join users u on u.id = m.author_id where c.guild_id = $1 group by u.id, u.username order by n desc, u.id limit $2`, []any{gid, top}, func(row scanner) (*UserActivity, error) {
		a := &UserActivity{}
		err := row.Scan(&a.ID, &a.Username, &a.Messages)
		return a, err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}
