package entity

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// User is the guild-independent identity of an account. Per-guild data lives
// in Member.
type User struct {
	ID            Snowflake `json:"id"`
	Username      string    `json:"username"`
	Discriminator *string   `json:"discriminator"`
	GlobalName    *string   `json:"global_name"`
	AvatarURL     *string   `json:"avatar_url"`
	Bot           bool      `json:"bot"`
	ArchivedAt    time.Time `json:"archived_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func NewUserFromDiscord(u *discordgo.User) (*User, error) {
	id, err := parseSnowflake("user", u.ID, "id", u.ID)
	if err != nil {
		return nil, err
	}
	usr := &User{
		ID:         id,
		Username:   u.Username,
		GlobalName: ptr(u.GlobalName),
		Bot:        u.Bot,
	}
	if u.Discriminator != "" && u.Discriminator != "0" {
		usr.Discriminator = &u.Discriminator
	}
	if u.Avatar != "" {
		usr.AvatarURL = ptr(u.AvatarURL(""))
	}
	return usr, nil
}

// DisplayName is the global name if set, otherwise the username.
func (u *User) DisplayName() string {
	if u.GlobalName != nil && *u.GlobalName != "" {
		return *u.GlobalName
	}
	return u.Username
}

const userColumns = `id, username, discriminator, global_name, avatar_url, bot, archived_at, updated_at`

func scanUser(row scanner) (*User, error) {
	u := &User{}
	err := row.Scan(&u.ID, &u.Username, &u.Discriminator, &u.GlobalName, &u.AvatarURL, &u.Bot, &u.ArchivedAt, &u.UpdatedAt)
	return u, err
}

func FindUser(ctx context.Context, q Querier, id Snowflake) (*User, error) {
	return queryOne(ctx, q, `select `+userColumns+` from users where id = $1`, []any{idArg(id)}, scanUser)
}

func UpsertUser(ctx context.Context, q Querier, u *User) error {
	err := exec(
		ctx,
		q,
		`insert into users (id, username, discriminator, global_name, avatar_url, bot, archived_at, updated_at) values ($1, $2, $3, $4, $5, $6, $7, $7)
		on conflict (id) do update set username = excluded.username, discriminator = excluded.discriminator, global_name = excluded.global_name, avatar_url = excluded.avatar_url, bot = excluded.bot, updated_at = excluded.updated_at
		where users.username is distinct from excluded.username or users.discriminator is distinct from excluded.discriminator or users.global_name is distinct from excluded.global_name or users.avatar_url is distinct from excluded.avatar_url or users.bot is distinct from excluded.bot`,
		idArg(u.ID), u.Username, nullable(u.Discriminator), nullable(u.GlobalName), nullable(u.AvatarURL), u.Bot, Now(),
	)
	if err != nil {
		return err
	}
	return reload(ctx, q, u, FindUser, u.ID)
}

func UpsertUsers(ctx context.Context, q Querier, us []*User) error {
	return upsertAll(ctx, q, us, UpsertUser)
}
