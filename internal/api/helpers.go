package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/disgoorg/snowflake/v2"
	"github.com/gin-gonic/gin"

	"pkg.mon.icu/wumpus/internal/storage/entity"
)

var errNotFound = errors.New("not found")

// view runs fn in a transaction and answers 404 for errNotFound and 500 for
// other errors. fn writes the response on success.
func (a *API) view(c *gin.Context, fn func(ctx context.Context, q entity.Querier) error) {
	ctx := c.Request.Context()
	err := a.storage.Begin(ctx, func(q entity.Querier) error {
		return fn(ctx, q)
	})
	if err != nil {
		if errors.Is(err, errNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		a.logger.Errorf("Failed to serve %s: %s.", c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// idParam parses the :id path parameter, answering 400 if it is malformed.
func idParam(c *gin.Context) (entity.Snowflake, bool) {
	id, err := snowflake.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id: " + err.Error()})
		return 0, false
	}
	return id, true
}

// optionalID parses an optional snowflake query value, answering 400 if it is
// malformed.
func optionalID(c *gin.Context, name, value string) (*entity.Snowflake, bool) {
	if value == "" {
		return nil, true
	}
	id, err := snowflake.Parse(value)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name + ": " + err.Error()})
		return nil, false
	}
	return &id, true
}

func bindQuery(c *gin.Context, param any) bool {
	if err := c.ShouldBindQuery(param); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return false
	}
	return true
}

func orEmpty[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
