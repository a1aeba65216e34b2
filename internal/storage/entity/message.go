package entity

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Message struct {
	ID              Snowflake  `json:"id"`
	ChannelID       Snowflake  `json:"channel_id"`
	AuthorID        *Snowflake `json:"author_id"`
	Content         string     `json:"content"`
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at"`
	Type            int        `json:"type"`
	Pinned          bool       `json:"pinned"`
	TTS             bool       `json:"tts"`
	MentionEveryone bool       `json:"mention_everyone"`
	Embeds          []Embed    `json:"embeds"`
	ReferenceID     *Snowflake `json:"reference_id"`
	ArchivedAt      time.Time  `json:"archived_at"`
	UpdatedAt       time.Time  `json:"updated_at"`

	Author      *User         `json:"author,omitempty"`
	Attachments []*Attachment `json:"attachments,omitempty"`
	Reactions   []*Reaction   `json:"reactions,omitempty"`
}

// NewMessageFromDiscord maps a message together with its author, attachments
// and reactions. Any malformed part rejects the whole message.
func NewMessageFromDiscord(m *discordgo.Message) (*Message, error) {
	id, err := parseSnowflake("message", m.ID, "id", m.ID)
	if err != nil {
		return nil, err
	}
	channelID, err := parseSnowflake("message", m.ID, "channel_id", m.ChannelID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ID:              id,
		ChannelID:       channelID,
		Content:         m.Content,
		CreatedAt:       m.Timestamp.UTC(),
		Type:            int(m.Type),
		Pinned:          m.Pinned,
		TTS:             m.TTS,
		MentionEveryone: m.MentionEveryone,
	}
	if m.Timestamp.IsZero() {
		msg.CreatedAt = id.Time().UTC()
	}
	if m.EditedTimestamp != nil {
		t := m.EditedTimestamp.UTC()
		msg.EditedAt = &t
	}

	if m.Author != nil {
		if _, err := parseSnowflake("message", m.ID, "author_id", m.Author.ID); err != nil {
			return nil, err
		}
		if msg.Author, err = NewUserFromDiscord(m.Author); err != nil {
			return nil, err
		}
		msg.AuthorID = &msg.Author.ID
	}

	if m.MessageReference != nil {
		if msg.ReferenceID, err = parseOptionalSnowflake("message", m.ID, "message_reference", m.MessageReference.MessageID); err != nil {
			return nil, err
		}
	}

	for _, e := range m.Embeds {
		if e != nil {
			msg.Embeds = append(msg.Embeds, NewEmbedFromDiscord(e))
		}
	}
	for i, a := range m.Attachments {
		att, err := NewAttachmentFromDiscord(id, i, a)
		if err != nil {
			return nil, err
		}
		msg.Attachments = append(msg.Attachments, att)
	}
	for i, r := range m.Reactions {
		re, err := NewReactionFromDiscord(id, i, r)
		if err != nil {
			return nil, err
		}
		msg.Reactions = append(msg.Reactions, re)
	}
	return msg, nil
}

const messageColumns = `m.id, m.channel_id, m.author_id, m.content, m.created_at, m.edited_at, m.type, m.pinned, m.tts, m.mention_everyone, m.embeds, m.reference_id, m.archived_at, m.updated_at`

func scanMessage(row scanner) (*Message, error) {
	m := &Message{}
	var embeds []byte
	err := row.Scan(&m.ID, &m.ChannelID, &m.AuthorID, &m.Content, &m.CreatedAt, &m.EditedAt, &m.Type, &m.Pinned, &m.TTS, &m.MentionEveryone, &embeds, &m.ReferenceID, &m.ArchivedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if m.Embeds, err = decodeEmbeds(embeds); err != nil {
		return nil, err
	}
	return m, nil
}

func FindMessage(ctx context.Context, q Querier, id Snowflake) (*Message, error) {
	return queryOne(ctx, q, `select `+messageColumns+` from messages m where m.id = $1`, []any{idArg(id)}, scanMessage)
}

// UpsertMessage stores the message row. Its channel and author must already
// exist; attachments and reactions are stored separately. created_at,
// archived_at, channel_id, author_id and reference_id keep their first values.
func UpsertMessage(ctx context.Context, q Querier, m *Message) error {
	embeds, err := encodeEmbeds(m.Embeds)
	if err != nil {
		return err
	}
	err = exec(
		ctx,
		q,
		`insert into messages (id, channel_id, author_id, content, created_at, edited_at, type, pinned, tts, mention_everyone, embeds, reference_id, archived_at, updated_at) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $13)
		on conflict (id) do update set content = excluded.content, edited_at = excluded.edited_at, type = excluded.type, pinned = excluded.pinned, tts = excluded.tts, mention_everyone = excluded.mention_everyone, embeds = excluded.embeds, updated_at = excluded.updated_at
		where messages.content is distinct from excluded.content or messages.edited_at is distinct from excluded.edited_at or messages.type is distinct from excluded.type or messages.pinned is distinct from excluded.pinned or messages.tts is distinct from excluded.tts or messages.mention_everyone is distinct from excluded.mention_everyone or messages.embeds is distinct from excluded.embeds`,
		idArg(m.ID), idArg(m.ChannelID), nullID(m.AuthorID), m.Content, m.CreatedAt.UTC(), nullable(m.EditedAt), m.Type, m.Pinned, m.TTS, m.MentionEveryone, embeds, nullID(m.ReferenceID), Now(),
	)
	if err != nil {
		return err
	}
	stored, err := FindMessage(ctx, q, m.ID)
	if err != nil {
		return err
	}
	stored.Author, stored.Attachments, stored.Reactions = m.Author, m.Attachments, m.Reactions
	*m = *stored
	return nil
}

func UpsertMessages(ctx context.Context, q Querier, ms []*Message) error {
	return upsertAll(ctx, q, ms, UpsertMessage)
}

// FindChannelMessages returns up to limit messages of the channel in ID order.
// A non-zero after returns the oldest messages newer than it; otherwise a
// non-zero before returns the newest messages older than it.
func FindChannelMessages(ctx context.Context, q Querier, channelID, after, before Snowflake, limit int) ([]*Message, error) {
	stmt := `select ` + messageColumns + ` from messages m where m.channel_id = $1`
	args := []any{idArg(channelID)}
	if after != 0 {
		args = append(args, idArg(after))
		stmt += ` and m.id > $2`
	}
	if before != 0 {
		args = append(args, idArg(before))
		stmt += ` and m.id < ` + placeholders(len(args), 1)
	}
	newest := after == 0 && before != 0
	if newest {
		stmt += ` order by m.id desc`
	} else {
		stmt += ` order by m.id`
	}
	args = append(args, limit)
	stmt += ` limit ` + placeholders(len(args), 1)

	ms, err := queryAll(ctx, q, stmt, args, scanMessage)
	if err != nil {
		return nil, err
	}
	if newest {
		slices.Reverse(ms)
	}
	return ms, nil
}

func CountChannelMessages(ctx context.Context, q Querier, channelID Snowflake) (int, error) {
	return count(ctx, q, `select count(*) from messages where channel_id = $1`, idArg(channelID))
}

// LastMessageID is the newest stored message ID of the channel, or 0.
func LastMessageID(ctx context.Context, q Querier, channelID Snowflake) (Snowflake, error) {
	var id Snowflake
	_, err := queryRow(ctx, q, `select coalesce(max(id), 0) from messages where channel_id = $1`, []any{idArg(channelID)}, []any{&id})
	return id, err
}

type SearchQuery struct {
	Text      string
	GuildID   *Snowflake
	ChannelID *Snowflake
	AuthorID  *Snowflake
	Limit     int
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchMessages finds messages containing the text, case-insensitively,
// newest first.
func SearchMessages(ctx context.Context, q Querier, s SearchQuery) ([]*Message, error) {
	stmt := `select ` + messageColumns + ` from messages m join channels c on c.id = m.channel_id where lower(m.content) like $1 escape '\'`
	args := []any{"%" + likeEscaper.Replace(strings.ToLower(s.Text)) + "%"}
	filter := func(col string, id *Snowflake) {
		if id == nil {
			return
		}
		args = append(args, idArg(*id))
		stmt += ` and ` + col + ` = ` + placeholders(len(args), 1)
	}
	filter("c.guild_id", s.GuildID)
	filter("m.channel_id", s.ChannelID)
	filter("m.author_id", s.AuthorID)
	args = append(args, s.Limit)
	stmt += ` order by m.id desc limit ` + placeholders(len(args), 1)
	return queryAll(ctx, q, stmt, args, scanMessage)
}

// LoadMessageDetails fills in the author, attachments and reactions of ms.
func LoadMessageDetails(ctx context.Context, q Querier, ms []*Message) error {
	users := map[Snowflake]*User{}
	for _, m := range ms {
		if m.AuthorID != nil {
			u, ok := users[*m.AuthorID]
			if !ok {
				var err error
				if u, err = FindUser(ctx, q, *m.AuthorID); err != nil {
					return err
				}
				users[*m.AuthorID] = u
			}
			m.Author = u
		}
		var err error
		if m.Attachments, err = FindMessageAttachments(ctx, q, m.ID); err != nil {
			return err
		}
		if m.Reactions, err = FindMessageReactions(ctx, q, m.ID); err != nil {
			return err
		}
	}
	return nil
}
