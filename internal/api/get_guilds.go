package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

func findGuild(ctx context.Context, q entity.Querier, id entity.Snowflake) (*entity.Guild, error) {
	g, err := entity.FindGuild(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("guild %s: %w", id, errNotFound)
	}
	return g, nil
}

// registerGetGuilds GET /api/guilds
func (a *API) registerGetGuilds() {
	a.router.GET("/api/guilds", func(c *gin.Context) {
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			gs, err := entity.FindGuilds(ctx, q)
			if err != nil {
				return err
			}
			c.JSON(http.StatusOK, orEmpty(gs))
			return nil
		})
	})
}

// registerGetGuild GET /api/guilds/:id
func (a *API) registerGetGuild() {
	a.router.GET("/api/guilds/:id", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			g, err := findGuild(ctx, q, id)
			if err != nil {
				return err
			}
			c.JSON(http.StatusOK, g)
			return nil
		})
	})
}

// registerGetGuildChannels GET /api/guilds/:id/channels
func (a *API) registerGetGuildChannels() {
	type channelModel struct {
		*entity.Channel
		Kind string `json:"kind"`
	}

	a.router.GET("/api/guilds/:id/channels", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			if _, err := findGuild(ctx, q, id); err != nil {
				return err
			}
			cs, err := entity.FindGuildChannels(ctx, q, id)
			if err != nil {
				return err
			}
			c.JSON(http.StatusOK, lo.Map(cs, func(ch *entity.Channel, _ int) *channelModel {
				return &channelModel{ch, ch.Kind()}
			}))
			return nil
		})
	})
}

// registerGetGuildRoles GET /api/guilds/:id/roles
func (a *API) registerGetGuildRoles() {
	a.router.GET("/api/guilds/:id/roles", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			if _, err := findGuild(ctx, q, id); err != nil {
				return err
			}
			rs, err := entity.FindGuildRoles(ctx, q, id)
			if err != nil {
				return err
			}
			c.JSON(http.StatusOK, orEmpty(rs))
			return nil
		})
	})
}

// registerGetGuildMembers GET /api/guilds/:id/members
func (a *API) registerGetGuildMembers() {
	a.router.GET("/api/guilds/:id/members", func(c *gin.Context) {
		id, ok := idParam(c)
		if !ok {
			return
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			if _, err := findGuild(ctx, q, id); err != nil {
				return err
			}
			ms, err := entity.FindGuildMembers(ctx, q, id)
			if err != nil {
				return err
			}
			for _, m := range ms {
				if m.User, err = entity.FindUser(ctx, q, m.UserID); err != nil {
					return err
				}
			}
			c.JSON(http.StatusOK, orEmpty(ms))
			return nil
		})
	})
}

// registerGetGuildStats GET /api/guilds/:id/stats
func (a *API) registerGetGuildStats() {
	a.router.GET("/api/guilds/:id/stats", func(c *gin.Context) {
		var param struct {
			Top int `form:"top" binding:"min=0,max=100"`
		}
		id, ok := idParam(c)
		if !ok || !bindQuery(c, &param) {
			return
		}
		if param.Top == 0 {
			param.Top = 10
		}
		a.view(c, func(ctx context.Context, q entity.Querier) error {
			if _, err := findGuild(ctx, q, id); err != nil {
				return err
			}
			st, err := entity.GuildStats(ctx, q, id, param.Top)
			if err != nil {
				return err
			}
			st.TopChannels, st.TopUsers = orEmpty(st.TopChannels), orEmpty(st.TopUsers)
			c.JSON(http.StatusOK, st)
			return nil
		})
	})
}

// registerGetGuildGallery GET /api/guilds/:id/gallery
func (a *API) registerGetGuildGallery() {
	a.router.GET("/api/guilds/:id/gallery", func(c *gin.Context) {
		var param struct {
			Before string `form:"before"`
			Limit  int    `form:"limit" binding:"min=0,max=200"`
		}
		id, ok := idParam(c)
		if !ok || !bindQuery(c, &param) {
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
			if _, err := findGuild(ctx, q, id); err != nil {
				return err
			}
			var b entity.Snowflake
			if before != nil {
				b = *before
			}
			as, err := entity.FindGallery(ctx, q, id, b, param.Limit)
			if err != nil {
				return err
			}
			c.JSON(http.StatusOK, orEmpty(as))
			return nil
		})
	})
}
