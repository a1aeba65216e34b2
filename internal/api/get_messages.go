package api

import (
	"context"
	"fmt"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

type messagesPage struct {
	Messages []*entity.Message `json:"messages"`
	Total    int               `json:"total"`
	HasMore  bool              `json:"has_more"`
}

// registerGetChannelMessages GET /api/channels/:id/messages
func (a *API) registerGetChannelMessages() {
	a.router.GET("/api/channels/:id/messages", func(c *gin.Context) {
		var param struct {
			After  string `form:"after"`
			Before string `form:"before"`
			Limit  int    `form:"limit" binding:"min=0,max=200"`
		}
		id, ok := idParam(c)
		if !ok || !bindQuery(c, &param) {
			return
		}
		after, ok := optionalID(c, "after", param.After)
		if !ok {
			return
		}
		before, ok := optionalID(c, "before", param.Before)
		if !ok {
			return
		}
		if param.Limit == 0 {
			param.Limit = a.config.PageSize
		}

		a.view(c, func(ctx context.Context, q entity.Querier) error {
			ch, err := entity.FindChannel(ctx, q, id)
			if err != nil {
				return err
			}
			if ch == nil {
				return fmt.Errorf("channel %s: %w", id, errNotFound)
			}
			var af, bf entity.Snowflake
			if after != nil {
				af = *after
			}
			if before != nil {
				bf = *before
			}
			// one extra row tells whether another page exists
			ms, err := entity.FindChannelMessages(ctx, q, id, af, bf, param.Limit+1)
			if err != nil {
				return err
			}
			page := &messagesPage{Messages: ms}
			if len(ms) > param.Limit {
				page.HasMore = true
				if before != nil && after == nil {
					page.Messages = ms[1:]
				} else {
					page.Messages = ms[:param.Limit]
				}
			}
			if err := entity.LoadMessageDetails(ctx, q, page.Messages); err != nil {
				return err
			}
			a.localizeAttachments(page.Messages)
			if page.Total, err = entity.CountChannelMessages(ctx, q, id); err != nil {
				return err
			}
			page.Messages = orEmpty(page.Messages)
			c.JSON(http.StatusOK, page)
			return nil
		})
	})
}

// registerGetMessage GET /api/messages/:id
func (a *API) registerGetMessage() {
	a.router.GET("/api/messages/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			m, err := entity.FindMessage(ctx, q, id)
			if err != nil {
				return err
			}
			if m == nil {
				return fmt.Errorf("message %s: %w", id, errNotFound)
			}
			ms := []*entity.Message{m}
			if err := entity.LoadMessageDetails(ctx, q, ms); err != nil {
				return err
			}
			a.localizeAttachments(ms)
			c.JSON(http.StatusOK, m)
			return nil
		})
	})
}

// localizeAttachments points downloaded attachments at the local mirror.
func (a *API) localizeAttachments(ms []*entity.Message) {
	if a.config.AttachmentsDir == "" {
		return
	}
	for _, m := range ms {
		for _, at := range m.Attachments {
			if at.DownloadStatus == entity.DownloadDownloaded && at.LocalPath != nil {
				at.LocalURL = path.Join("/attachments", *at.LocalPath)
			}
		}
	}
}
