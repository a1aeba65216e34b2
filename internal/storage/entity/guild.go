package entity

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Guild struct {
	ID             Snowflake  `json:"id"`
	Name           string     `json:"name"`
	IconURL        *string    `json:"icon_url"`
	OwnerID        *Snowflake `json:"owner_id"`
	MemberCount    int        `json:"member_count"`
	ArchivedAt     time.Time  `json:"archived_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	FirstScrapedAt *time.Time `json:"first_scraped_at"`
	LastScrapedAt  *time.Time `json:"last_scraped_at"`
	ScrapeCount    int        `json:"scrape_count"`
}

func NewGuildFromDiscord(g *discordgo.Guild) (*Guild, error) {
	id, err := parseSnowflake("guild", g.ID, "id", g.ID)
	if err != nil {
		return nil, err
	}
	ownerID, err := parseOptionalSnowflake("guild", g.ID, "owner_id", g.OwnerID)
	if err != nil {
		return nil, err
	}
	memberCount := g.MemberCount
	if memberCount == 0 {
		memberCount = g.ApproximateMemberCount
	}
	return &Guild{
		ID:          id,
		Name:        g.Name,
		IconURL:     ptr(g.IconURL("")),
		OwnerID:     ownerID,
		MemberCount: memberCount,
	}, nil
}

const guildColumns = `id, name, icon_url, owner_id, member_count, archived_at, updated_at, first_scraped_at, last_scraped_at, scrape_count`

func scanGuild(row scanner) (*Guild, error) {
	g := &Guild{}
	err := row.Scan(&g.ID, &g.Name, &g.IconURL, &g.OwnerID, &g.MemberCount, &g.ArchivedAt, &g.UpdatedAt, &g.FirstScrapedAt, &g.LastScrapedAt, &g.ScrapeCount)
	return g, err
}

// FindGuild returns nil if the guild isn't stored.
func FindGuild(ctx context.Context, q Querier, id Snowflake) (*Guild, error) {
	return queryOne(ctx, q, `select `+guildColumns+` from guilds where id = $1`, []any{idArg(id)}, scanGuild)
}

func FindGuilds(ctx context.Context, q Querier) ([]*Guild, error) {
	return queryAll(ctx, q, `select `+guildColumns+` from guilds order by name, id`, nil, scanGuild)
}

// UpsertGuild inserts g or updates its mutable fields, then reloads g from the
// stored row.
func UpsertGuild(ctx context.Context, q Querier, g *Guild) error {
	now := Now()
	err := exec(
		ctx,
		q,
		`insert into guilds (id, name, icon_url, owner_id, member_count, archived_at, updated_at, scrape_count) values ($1, $2, $3, $4, $5, $6, $6, 0)
		on conflict (id) do update set name = excluded.name, icon_url = excluded.icon_url, owner_id = excluded.owner_id, member_count = excluded.member_count, updated_at = excluded.updated_at
		where guilds.name is distinct from excluded.name or guilds.icon_url is distinct from excluded.icon_url or guilds.owner_id is distinct from excluded.owner_id or guilds.member_count is distinct from excluded.member_count`,
		idArg(g.ID), g.Name, nullable(g.IconURL), nullID(g.OwnerID), g.MemberCount, now,
	)
	if err != nil {
		return err
	}
	return reload(ctx, q, g, FindGuild, g.ID)
}

// TouchGuildScrape records a finished scrape of the guild.
func TouchGuildScrape(ctx context.Context, q Querier, id Snowflake) error {
	return exec(
		ctx,
		q,
		`update guilds set first_scraped_at = coalesce(first_scraped_at, $2), last_scraped_at = $2, scrape_count = scrape_count + 1 where id = $1`,
		idArg(id), Now(),
	)
}

// DeleteGuild removes the guild and everything archived under it. Users are
// kept since they aren't owned by a single guild.
func DeleteGuild(ctx context.Context, q Querier, id Snowflake) (bool, error) {
	return queryUpdateDelete(ctx, q, `delete from guilds where id = $1`, idArg(id))
}
