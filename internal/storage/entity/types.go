package entity

import (
	"context"
	"database/sql"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// Snowflake is a Discord ID. It is stored as a 64-bit integer and serialized
// as a decimal string.
type Snowflake = snowflake.ID

// Channel archive states.
const (
	ArchiveStatePending   = "pending"
	ArchiveStateRunning   = "running"
	ArchiveStateCompleted = "completed"
	ArchiveStateFailed    = "failed"
	ArchiveStatePaused    = "paused"
)

// Attachment download states.
const (
	DownloadPending    = "pending"
	DownloadDownloaded = "downloaded"
	DownloadFailed     = "failed"
	DownloadSkipped    = "skipped"
)

// Now is the timestamp written to archived_at and updated_at columns. It is
// truncated to the precision both dialects store.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// reload replaces *dst with the stored row for id.
func reload[T any](ctx context.Context, q Querier, dst *T, find func(context.Context, Querier, Snowflake) (*T, error), id Snowflake) error {
	v, err := find(ctx, q, id)
	if err != nil {
		return err
	}
	if v == nil {
		return sql.ErrNoRows
	}
	*dst = *v
	return nil
}

func idArg(id Snowflake) int64 {
	return int64(id)
}

func nullID(id *Snowflake) any {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}

func ptr[T comparable](v T) *T {
	var zero T
	if v == zero {
		return nil
	}
	return &v
}
