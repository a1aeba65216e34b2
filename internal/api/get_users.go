package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// registerGetUser GET /api/users/:id
func (a *API) registerGetUser() {
	a.router.GET("/api/users/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			u, err := entity.FindUser(ctx, q, id)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("user %s: %w", id, errNotFound)
			}
			c.JSON(http.StatusOK, gin.H{"user": u, "display_name": u.DisplayName()})
			return nil
		})
	})
}
