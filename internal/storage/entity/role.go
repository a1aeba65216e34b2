package entity

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Role struct {
	ID          Snowflake `json:"id"`
	GuildID     Snowflake `json:"guild_id"`
	Name        string    `json:"name"`
	Color       int       `json:"color"`
	Position    int       `json:"position"`
	Permissions int64     `json:"permissions,string"`
	Hoist       bool      `json:"hoist"`
	Managed     bool      `json:"managed"`
	Mentionable bool      `json:"mentionable"`
	ArchivedAt  time.Time `json:"archived_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func NewRoleFromDiscord(guildID Snowflake, r *discordgo.Role) (*Role, error) {
	id, err := parseSnowflake("role", r.ID, "id", r.ID)
	if err != nil {
		return nil, err
	}
	return &Role{
		ID:          id,
		GuildID:     guildID,
		Name:        r.Name,
		Color:       r.Color,
		Position:    r.Position,
		Permissions: r.Permissions,
		Hoist:       r.Hoist,
		Managed:     r.Managed,
		Mentionable: r.Mentionable,
	}, nil
}

const roleColumns = `id, guild_id, name, color, position, permissions, hoist, managed, mentionable, archived_at, updated_at`

func scanRole(row scanner) (*Role, error) {
	r := &Role{}
	err := row.Scan(&r.ID, &r.GuildID, &r.Name, &r.Color, &r.Position, &r.Permissions, &r.Hoist, &r.Managed, &r.Mentionable, &r.ArchivedAt, &r.UpdatedAt)
	return r, err
}

func FindRole(ctx context.Context, q Querier, id Snowflake) (*Role, error) {
	return queryOne(ctx, q, `select `+roleColumns+` from roles where id = $1`, []any{idArg(id)}, scanRole)
}

func FindGuildRoles(ctx context.Context, q Querier, guildID Snowflake) ([]*Role, error) {
	return queryAll(ctx, q, `select `+roleColumns+` from roles where guild_id = $1 order by position desc, id`, []any{idArg(guildID)}, scanRole)
}

func UpsertRole(ctx context.Context, q Querier, r *Role) error {
	err := exec(
		ctx,
		q,
		`insert into roles (id, guild_id, name, color, position, permissions, hoist, managed, mentionable, archived_at, updated_at) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		on conflict (id) do update set name = excluded.name, color = excluded.color, position = excluded.position, permissions = excluded.permissions, hoist = excluded.hoist, managed = excluded.managed, mentionable = excluded.mentionable, updated_at = excluded.updated_at
		where roles.name is distinct from excluded.name or roles.color is distinct from excluded.color or roles.position is distinct from excluded.position or roles.permissions is distinct from excluded.permissions or roles.hoist is distinct from excluded.hoist or roles.managed is distinct from excluded.managed or roles.mentionable is distinct from excluded.mentionable`,
		idArg(r.ID), idArg(r.GuildID), r.Name, r.Color, r.Position, r.Permissions, r.Hoist, r.Managed, r.Mentionable, Now(),
	)
	if err != nil {
		return err
	}
	return reload(ctx, q, r, FindRole, r.ID)
}

func UpsertRoles(ctx context.Context, q Querier, rs []*Role) error {
	return upsertAll(ctx, q, rs, UpsertRole)
}
