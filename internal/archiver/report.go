package archiver

import (
	"time"

	"github.com/google/uuid"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// State is the progress of a guild run or one of its channels.
type State string

const (
	NotStarted          State = "not_started"
	EnumeratingChannels State = "enumerating_channels"
	ArchivingMembers    State = "archiving_members"
	ArchivingChannels   State = "archiving_channels"
	FetchingPage        State = "fetching_page"
	Upserting           State = "upserting"
	Completed           State = "completed"
	Failed              State = "failed"
	Paused              State = "paused"
)

// archiveState is the value stored in channels.archive_state for a final state.
func (s State) archiveState() string {
	switch s {
	case Completed:
		return entity.ArchiveStateCompleted
	case Failed:
		return entity.ArchiveStateFailed
	case Paused:
		return entity.ArchiveStatePaused
	default:
		return entity.ArchiveStateRunning
	}
}

type ChannelReport struct {
	ID    entity.Snowflake `json:"id"`
	Name  string           `json:"name"`
	Kind  string           `json:"kind"`
	State State            `json:"state"`
	// Cursor is the last committed message ID; a later run resumes after it.
	Cursor   entity.Snowflake `json:"cursor"`
	Messages int              `json:"messages"`
	Total    int              `json:"total"`
	Pages    int              `json:"pages"`
	Skipped  int              `json:"skipped"`
	Warning  string           `json:"warning,omitempty"`
	Err      error            `json:"-"`
}

type Report struct {
	RunID      uuid.UUID        `json:"run_id"`
	GuildID    entity.Snowflake `json:"guild_id"`
	State      State            `json:"state"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Members    int              `json:"members"`
	Warnings   []string         `json:"warnings,omitempty"`
	Channels   []*ChannelReport `json:"channels"`
	Err        error            `json:"-"`
}

func (r *Report) byState(s State) []*ChannelReport {
	var out []*ChannelReport
	for _, c := range r.Channels {
		if c.State == s {
			out = append(out, c)
		}
	}
	return out
}

func (r *Report) Completed() []*ChannelReport {
	return r.byState(Completed)
}

func (r *Report) Failed() []*ChannelReport {
	return r.byState(Failed)
}

func (r *Report) Paused() []*ChannelReport {
	return r.byState(Paused)
}

// Messages is the number of messages committed during the run.
func (r *Report) Messages() int {
	n := 0
	for _, c := range r.Channels {
		n += c.Messages
	}
	return n
}
