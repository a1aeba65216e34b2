package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// registerGetHealth GET /api/health
func (a *API) registerGetHealth() {
	a.router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}
