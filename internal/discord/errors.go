package discord

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"

	"pkg.mon.icu/wumpus/internal/archiver"
)

// translate maps discordgo errors onto the archiver's error kinds.
func translate(err error) error {
	if err == nil {
		return nil
	}

	var rl *discordgo.RateLimitError
	if errors.As(err, &rl) && rl.RateLimit != nil && rl.TooManyRequests != nil {
		return &archiver.RateLimitedError{RetryAfter: rl.RetryAfter}
	}

	var re *discordgo.RESTError
	if errors.As(err, &re) && re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", archiver.ErrNotFound, restMessage(re))
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", archiver.ErrForbidden, restMessage(re))
		case http.StatusTooManyRequests:
			return &archiver.RateLimitedError{RetryAfter: retryAfter(re.Response.Header.Get("Retry-After"))}
		}
	}
	return err
}

// retryAfter parses a Retry-After header given in seconds, defaulting to one
// second.
func retryAfter(v string) time.Duration {
	secs, err := strconv.ParseFloat(v, 64)
	if err != nil || secs <= 0 {
		return time.Second
	}
	return time.Duration(secs * float64(time.Second))
}

func restMessage(re *discordgo.RESTError) string {
	if re.Message != nil && re.Message.Message != "" {
		return re.Message.Message
	}
	return re.Response.Status
}

func inaccessible(err error) bool {
	return errors.Is(err, archiver.ErrNotFound) || errors.Is(err, archiver.ErrForbidden)
}
