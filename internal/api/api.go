package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pkg.mon.icu/wumpus/internal/config"
	"pkg.mon.icu/wumpus/internal/storage/entity"
)

// Store runs read transactions.
type Store interface {
	Begin(ctx context.Context, fn func(entity.Querier) error) error
}

// API serves the archive read-only over HTTP.
type API struct {
	ctx     context.Context
	logger  *zap.SugaredLogger
	storage Store
	config  *config.API
	router  *gin.Engine
	serv    *http.Server
}

func NewAPI(ctx context.Context, logger *zap.SugaredLogger, storage Store, cfg *config.API) *API {
	gin.SetMode(gin.ReleaseMode)
	a := &API{
		ctx:     ctx,
		logger:  logger,
		storage: storage,
		config:  cfg,
		router:  gin.New(),
	}
	a.router.Use(a.logRequests(), gin.Recovery())
	a.register()
	a.serv = &http.Server{Addr: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), Handler: a.router, ReadHeaderTimeout: 10 * time.Second}
	return a
}

func (a *API) register() {
	a.registerGetHealth()
	a.registerGetGuilds()
	a.registerGetGuild()
	a.registerGetGuildChannels()
	a.registerGetGuildRoles()
	a.registerGetGuildMembers()
	a.registerGetGuildStats()
	a.registerGetGuildGallery()
	a.registerGetChannel()
	a.registerGetChannelMessages()
	a.registerGetMessage()
	a.registerGetSearch()
	a.registerGetUser()
	if a.config.AttachmentsDir != "" {
		a.router.Static("/attachments", a.config.AttachmentsDir)
	}
}

// Handler exposes the router, mainly for tests.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) Listen() {
	a.logger.Infof("Listening on %s.", a.serv.Addr)
	go func() {
		if err := a.serv.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				a.logger.Errorf("Server returned with error: %s.", err)
			}
		}
	}()
}

// Close stops accepting requests and waits up to five seconds for running
// ones.
func (a *API) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.serv.Shutdown(ctx)
}

func (a *API) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		a.logger.Debugf("%s %s %d %s.", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}
