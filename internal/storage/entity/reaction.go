package entity

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// Reaction is one emoji's reactions on a message. Custom emojis are keyed by
// ID, unicode emojis by the emoji itself.
type Reaction struct {
	MessageID Snowflake   `json:"message_id"`
	EmojiKey  string      `json:"emoji_key"`
	EmojiID   *Snowflake  `json:"emoji_id"`
	EmojiName string      `json:"emoji_name"`
	Animated  bool        `json:"animated"`
	Count     int         `json:"count"`
	Position  int         `json:"position"`
	UserIDs   []Snowflake `json:"user_ids,omitempty"`
}

func NewReactionFromDiscord(messageID Snowflake, position int, r *discordgo.MessageReactions) (*Reaction, error) {
	if r.Emoji == nil {
		return nil, &MappingError{Kind: "reaction", ID: messageID.String(), Field: "emoji"}
	}
	emojiID, err := parseOptionalSnowflake("reaction", messageID.String(), "emoji.id", r.Emoji.ID)
	if err != nil {
		return nil, err
	}
	key := r.Emoji.Name
	if emojiID != nil {
		key = emojiID.String()
	}
	if key == "" {
		return nil, &MappingError{Kind: "reaction", ID: messageID.String(), Field: "emoji.name"}
	}
	return &Reaction{
		MessageID: messageID,
		EmojiKey:  key,
		EmojiID:   emojiID,
		EmojiName: r.Emoji.Name,
		Animated:  r.Emoji.Animated,
		Count:     r.Count,
		Position:  position,
	}, nil
}

// APIName is the emoji as the reactions endpoint expects it.
func (r *Reaction) APIName() string {
	if r.EmojiID != nil {
		return r.EmojiName + ":" + r.EmojiID.String()
	}
	return r.EmojiName
}

const reactionColumns = `message_id, emoji_key, emoji_id, emoji_name, animated, count, position`

func scanReaction(row scanner) (*Reaction, error) {
	r := &Reaction{}
	err := row.Scan(&r.MessageID, &r.EmojiKey, &r.EmojiID, &r.EmojiName, &r.Animated, &r.Count, &r.Position)
	return r, err
}

// UpsertReaction stores the reaction and any of its UserIDs. The users must
// already exist.
func UpsertReaction(ctx context.Context, q Querier, r *Reaction) error {
	err := exec(
		ctx,
		q,
		`insert into reactions (message_id, emoji_key, emoji_id, emoji_name, animated, count, position) values ($1, $2, $3, $4, $5, $6, $7)
		on conflict (message_id, emoji_key) do update set emoji_name = excluded.emoji_name, animated = excluded.animated, count = excluded.count, position = excluded.position`,
		idArg(r.MessageID), r.EmojiKey, nullID(r.EmojiID), r.EmojiName, r.Animated, r.Count, r.Position,
	)
	if err != nil {
		return err
	}
	return AddReactionUsers(ctx, q, r.MessageID, r.EmojiKey, r.UserIDs)
}

func UpsertReactions(ctx context.Context, q Querier, rs []*Reaction) error {
	return upsertAll(ctx, q, rs, UpsertReaction)
}

// AddReactionUsers records who reacted. Known users are kept.
func AddReactionUsers(ctx context.Context, q Querier, messageID Snowflake, emojiKey string, userIDs []Snowflake) error {
	for _, u := range userIDs {
		err := exec(ctx, q, `insert into reaction_users (message_id, emoji_key, user_id) values ($1, $2, $3) on conflict do nothing`, idArg(messageID), emojiKey, idArg(u))
		if err != nil {
			return err
		}
	}
	return nil
}

func FindMessageReactions(ctx context.Context, q Querier, messageID Snowflake) ([]*Reaction, error) {
	rs, err := queryAll(ctx, q, `select `+reactionColumns+` from reactions where message_id = $1 order by position, emoji_key`, []any{idArg(messageID)}, scanReaction)
	if err != nil {
		return nil, err
	}
	for _, r := range rs {
		r.UserIDs, err = queryAll(ctx, q, `select user_id from reaction_users where message_id = $1 and emoji_key = $2 order by user_id`, []any{idArg(messageID), r.EmojiKey}, func(row scanner) (Snowflake, error) {
			var id Snowflake
			err := row.Scan(&id)
			return id, err
		})
		if err != nil {
			return nil, err
		}
	}
	return rs, nil
}
