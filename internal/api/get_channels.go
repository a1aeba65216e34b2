package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// registerGetChannel GET /api/channels/:id
func (a *API) registerGetChannel() {
	a.router.GET("/api/channels/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			ch, err := entity.FindChannel(ctx, q, id)
			if err != nil {
				return err
			}
			if ch == nil {
				return fmt.Errorf("channel %s: %w", id, errNotFound)
			}
			c.JSON(http.StatusOK, gin.H{"channel": ch, "kind": ch.Kind()})
			return nil
		})
	})
}
