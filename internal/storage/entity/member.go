package entity

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Member is a user's membership of one guild.
type Member struct {
	GuildID    Snowflake   `json:"guild_id"`
	UserID     Snowflake   `json:"user_id"`
	Nick       *string     `json:"nick"`
	JoinedAt   *time.Time  `json:"joined_at"`
	RoleIDs    []Snowflake `json:"role_ids"`
	ArchivedAt time.Time   `json:"archived_at"`
	UpdatedAt  time.Time   `json:"updated_at"`

	User *User `json:"user,omitempty"`
}

func NewMemberFromDiscord(guildID Snowflake, m *discordgo.Member) (*Member, error) {
	if m.User == nil {
		return nil, &MappingError{Kind: "member", Field: "user"}
	}
	u, err := NewUserFromDiscord(m.User)
	if err != nil {
		return nil, err
	}
	roleIDs := make([]Snowflake, 0, len(m.Roles))
	for _, r := range m.Roles {
		id, err := parseSnowflake("member", m.User.ID, "roles", r)
		if err != nil {
			return nil, err
		}
		roleIDs = append(roleIDs, id)
	}
	var joinedAt *time.Time
	if !m.JoinedAt.IsZero() {
		t := m.JoinedAt.UTC()
		joinedAt = &t
	}
	return &Member{
		GuildID:  guildID,
		UserID:   u.ID,
		Nick:     ptr(m.Nick),
		JoinedAt: joinedAt,
		RoleIDs:  roleIDs,
		User:     u,
	}, nil
}

const memberColumns = `guild_id, user_id, nick, joined_at, archived_at, updated_at`

func scanMember(row scanner) (*Member, error) {
	m := &Member{}
	err := row.Scan(&m.GuildID, &m.UserID, &m.Nick, &m.JoinedAt, &m.ArchivedAt, &m.UpdatedAt)
	return m, err
}

func findMemberRoles(ctx context.Context, q Querier, m *Member) error {
	ids, err := queryAll(ctx, q, `select role_id from member_roles where guild_id = $1 and user_id = $2 order by role_id`, []any{idArg(m.GuildID), idArg(m.UserID)}, func(row scanner) (Snowflake, error) {
		var id Snowflake
		err := row.Scan(&id)
		return id, err
	})
	if err != nil {
		return err
	}
	if ids == nil {
		ids = []Snowflake{}
	}
	m.RoleIDs = ids
	return nil
}

// FindMember returns the membership of user in guild with its role IDs.
func FindMember(ctx context.Context, q Querier, guildID, userID Snowflake) (*Member, error) {
	m, err := queryOne(ctx, q, `select `+memberColumns+` from members where guild_id = $1 and user_id = $2`, []any{idArg(guildID), idArg(userID)}, scanMember)
	if err != nil || m == nil {
		return nil, err
	}
	if err := findMemberRoles(ctx, q, m); err != nil {
		return nil, err
	}
	return m, nil
}

func FindGuildMembers(ctx context.Context, q Querier, guildID Snowflake) ([]*Member, error) {
	ms, err := queryAll(ctx, q, `select `+memberColumns+` from members where guild_id = $1 order by user_id`, []any{idArg(guildID)}, scanMember)
	if err != nil {
		return nil, err
	}
	for _, m := range ms {
		if err := findMemberRoles(ctx, q, m); err != nil {
			return nil, err
		}
	}
	return ms, nil
}

// UpsertMember stores the membership and replaces its role set. The user row
// must already exist.
func UpsertMember(ctx context.Context, q Querier, m *Member) error {
	err := exec(
		ctx,
		q,
		`insert into members (guild_id, user_id, nick, joined_at, archived_at, updated_at) values ($1, $2, $3, $4, $5, $5)
		on conflict (guild_id, user_id) do update set nick = excluded.nick, joined_at = excluded.joined_at, updated_at = excluded.updated_at
		where members.nick is distinct from excluded.nick or members.joined_at is distinct from excluded.joined_at`,
		idArg(m.GuildID), idArg(m.UserID), nullable(m.Nick), nullable(m.JoinedAt), Now(),
	)
	if err != nil {
		return err
	}
	if err := exec(ctx, q, `delete from member_roles where guild_id = $1 and user_id = $2`, idArg(m.GuildID), idArg(m.UserID)); err != nil {
		return err
	}
	for _, r := range m.RoleIDs {
		err := exec(ctx, q, `insert into member_roles (guild_id, user_id, role_id) values ($1, $2, $3) on conflict do nothing`, idArg(m.GuildID), idArg(m.UserID), idArg(r))
		if err != nil {
			return err
		}
	}
	stored, err := FindMember(ctx, q, m.GuildID, m.UserID)
	if err != nil {
		return err
	}
	stored.User = m.User
	*m = *stored
	return nil
}

func UpsertMembers(ctx context.Context, q Querier, ms []*Member) error {
	return upsertAll(ctx, q, ms, UpsertMember)
}
