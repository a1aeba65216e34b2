package entity

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Attachment struct {
	ID             Snowflake `json:"id"`
	MessageID      Snowflake `json:"message_id"`
	Position       int       `json:"position"`
	Filename       string    `json:"filename"`
	ContentType    *string   `json:"content_type"`
	Size           int       `json:"size"`
	URL            string    `json:"url"`
	ProxyURL       *string   `json:"proxy_url"`
	Width          *int      `json:"width"`
	Height         *int      `json:"height"`
	LocalPath      *string   `json:"local_path"`
	DownloadStatus string    `json:"download_status"`
	ContentHash    *string   `json:"content_hash"`
	ArchivedAt     time.Time `json:"archived_at"`

	// LocalURL is set by the API when the file is served from the local mirror.
	LocalURL string `json:"local_url,omitempty"`
}

var (
	imageContentTypes = []string{"image/png", "image/jpeg", "image/gif", "image/webp", "image/avif"}
	imageExtensions   = []string{".png", ".jpg", ".jpeg", ".gif", ".webp", ".avif", ".bmp", ".tiff"}
)

func NewAttachmentFromDiscord(messageID Snowflake, position int, a *discordgo.MessageAttachment) (*Attachment, error) {
	id, err := parseSnowflake("attachment", a.ID, "id", a.ID)
	if err != nil {
		return nil, err
	}
	return &Attachment{
		ID:             id,
		MessageID:      messageID,
		Position:       position,
		Filename:       a.Filename,
		ContentType:    ptr(a.ContentType),
		Size:           a.Size,
		URL:            a.URL,
		ProxyURL:       ptr(a.ProxyURL),
		Width:          ptr(a.Width),
		Height:         ptr(a.Height),
		DownloadStatus: DownloadPending,
	}, nil
}

// IsImage decides by content type, falling back to the file extension.
func (a *Attachment) IsImage() bool {
	if a.ContentType != nil {
		ct, _, _ := strings.Cut(*a.ContentType, ";")
		for _, t := range imageContentTypes {
			if strings.EqualFold(strings.TrimSpace(ct), t) {
				return true
			}
		}
	}
	ext := strings.ToLower(path.Ext(a.Filename))
	for _, e := range imageExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// imageCondition is the SQL form of IsImage for the attachment alias a.
func imageCondition() string {
	conds := make([]string, 0, len(imageContentTypes)+len(imageExtensions))
	for _, t := range imageContentTypes {
		conds = append(conds, `lower(a.content_type) like '`+t+`%'`)
	}
	for _, e := range imageExtensions {
		conds = append(conds, `lower(a.filename) like '%`+e+`'`)
	}
	return `(` + strings.Join(conds, ` or `) + `)`
}

const attachmentColumns = `a.id, a.message_id, a.position, a.filename, a.content_type, a.size, a.url, a.proxy_url, a.width, a.height, a.local_path, a.download_status, a.content_hash, a.archived_at`

func scanAttachment(row scanner) (*Attachment, error) {
	a := &Attachment{}
	err := row.Scan(&a.ID, &a.MessageID, &a.Position, &a.Filename, &a.ContentType, &a.Size, &a.URL, &a.ProxyURL, &a.Width, &a.Height, &a.LocalPath, &a.DownloadStatus, &a.ContentHash, &a.ArchivedAt)
	return a, err
}

func FindAttachment(ctx context.Context, q Querier, id Snowflake) (*Attachment, error) {
	return queryOne(ctx, q, `select `+attachmentColumns+` from attachments a where a.id = $1`, []any{idArg(id)}, scanAttachment)
}

func FindMessageAttachments(ctx context.Context, q Querier, messageID Snowflake) ([]*Attachment, error) {
	return queryAll(ctx, q, `select `+attachmentColumns+` from attachments a where a.message_id = $1 order by a.position, a.id`, []any{idArg(messageID)}, scanAttachment)
}

// UpsertAttachment stores the attachment metadata. Download state is only
// set on insert.
func UpsertAttachment(ctx context.Context, q Querier, a *Attachment) error {
	err := exec(
		ctx,
		q,
		`insert into attachments (id, message_id, position, filename, content_type, size, url, proxy_url, width, height, download_status, archived_at) values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		on conflict (id) do update set position = excluded.position, filename = excluded.filename, content_type = excluded.content_type, size = excluded.size, url = excluded.url, proxy_url = excluded.proxy_url, width = excluded.width, height = excluded.height`,
		idArg(a.ID), idArg(a.MessageID), a.Position, a.Filename, nullable(a.ContentType), a.Size, a.URL, nullable(a.ProxyURL), nullable(a.Width), nullable(a.Height), DownloadPending, Now(),
	)
	if err != nil {
		return err
	}
	return reload(ctx, q, a, FindAttachment, a.ID)
}

func UpsertAttachments(ctx context.Context, q Querier, as []*Attachment) error {
	return upsertAll(ctx, q, as, UpsertAttachment)
}

// FindPendingImages returns image attachments of the guild that haven't been
// downloaded yet, oldest first. A nil guild matches every guild.
func FindPendingImages(ctx context.Context, q Querier, guildID *Snowflake, limit int) ([]*ChannelAttachment, error) {
	stmt := `select ` + attachmentColumns + `, m.channel_id from attachments a join messages m on m.id = a.message_id join channels c on c.id = m.channel_id where a.download_status = $1 and ` + imageCondition()
	args := []any{DownloadPending}
	if guildID != nil {
		args = append(args, idArg(*guildID))
		stmt += ` and c.guild_id = $2`
	}
	args = append(args, limit)
	stmt += ` order by a.id limit ` + placeholders(len(args), 1)
	return queryAll(ctx, q, stmt, args, scanChannelAttachment)
}

// SetAttachmentDownload records the outcome of a download attempt.
func SetAttachmentDownload(ctx context.Context, q Querier, id Snowflake, status string, localPath, contentHash *string) error {
	return exec(ctx, q, `update attachments set download_status = $2, local_path = $3, content_hash = $4 where id = $1`, idArg(id), status, nullable(localPath), nullable(contentHash))
}

// ChannelAttachment is an attachment together with the channel it was posted in.
type ChannelAttachment struct {
	*Attachment
	ChannelID Snowflake `json:"channel_id"`
}

func scanChannelAttachment(row scanner) (*ChannelAttachment, error) {
	a := &Attachment{}
	ca := &ChannelAttachment{Attachment: a}
	err := row.Scan(&a.ID, &a.MessageID, &a.Position, &a.Filename, &a.ContentType, &a.Size, &a.URL, &a.ProxyURL, &a.Width, &a.Height, &a.LocalPath, &a.DownloadStatus, &a.ContentHash, &a.ArchivedAt, &ca.ChannelID)
	return ca, err
}

// FindGallery pages through the guild's image attachments, newest first.
func FindGallery(ctx context.Context, q Querier, guildID, before Snowflake, limit int) ([]*ChannelAttachment, error) {
	stmt := `select ` + attachmentColumns + `, m.channel_id from attachments a join messages m on m.id = a.message_id join channels c on c.id = m.channel_id where c.guild_id = $1 and ` + imageCondition()
	args := []any{idArg(guildID)}
	if before != 0 {
		args = append(args, idArg(before))
		stmt += ` and a.id < $2`
	}
	args = append(args, limit)
	stmt += ` order by a.id desc limit ` + placeholders(len(args), 1)
	return queryAll(ctx, q, stmt, args, scanChannelAttachment)
}
