package archiver

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// Source is the remote side of an archival run. Implementations report
// throttling with *RateLimitedError and inaccessible resources with
// ErrNotFound or ErrForbidden. Any other error is treated as a transport
// failure and retried.
type Source interface {
	Guild(ctx context.Context, guildID entity.Snowflake) (*discordgo.Guild, error)
	// Channels lists the guild's channels and, where supported, its threads.
	Channels(ctx context.Context, guildID entity.Snowflake) ([]*discordgo.Channel, error)
	Roles(ctx context.Context, guildID entity.Snowflake) ([]*discordgo.Role, error)
	// Members returns up to limit members with user IDs above after.
	Members(ctx context.Context, guildID, after entity.Snowflake, limit int) ([]*discordgo.Member, error)
	// Messages returns up to limit messages with IDs above after, in any order.
	Messages(ctx context.Context, channelID, after entity.Snowflake, limit int) ([]*discordgo.Message, error)
	// ReactionUsers returns up to limit users with IDs above after who reacted
	// with emoji.
	ReactionUsers(ctx context.Context, channelID, messageID entity.Snowflake, emoji string, after entity.Snowflake, limit int) ([]*discordgo.User, error)
}

var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
)

// RateLimitedError asks the caller to wait before repeating the request.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// TransportError is a request that kept failing after every retry.
type TransportError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %s", e.Op, e.Attempts, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// inaccessible reports whether err means the resource can't be read at all.
func inaccessible(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, ErrForbidden)
}
