package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// registerGetSearch GET /api/search
func (a *API) registerGetSearch() {
	a.router.GET("/api/search", func(c *gin.Context) {
		var param struct {
			Query     string `form:"q"`
			GuildID   string `form:"guild_id"`
			ChannelID string `form:"channel_id"`
			AuthorID  string `form:"author_id"`
			Limit     int    `form:"limit" binding:"min=0,max=100"`
		}
		if !bindQuery(c, &param) {
			return
		}
		if strings.TrimSpace(param.Query) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "q is required"})
			return
		}
		s := entity.SearchQuery{Text: param.Query, Limit: param.Limit}
		var ok bool
		if s.GuildID, ok = optionalID(c, "guild_id", param.GuildID); !ok {
			return
		}
		if s.ChannelID, ok = optionalID(c, "channel_id", param.ChannelID); !ok {
			return
		}
		if s.AuthorID, ok = optionalID(c, "author_id", param.AuthorID); !ok {
			return
		}
		if s.Limit == 0 {
			s.Limit = min(a.config.PageSize, 100)
		}

		a.view(c, func(ctx context.Context, q entity.Querier) error {
			ms, err := entity.SearchMessages(ctx, q, s)
			if err != nil {
				return err
			}
			if err := entity.LoadMessageDetails(ctx, q, ms); err != nil {
				return err
			}
			a.localizeAttachments(ms)
			c.JSON(http.StatusOK, gin.H{"results": orEmpty(ms)})
			return nil
		})
	})
}
