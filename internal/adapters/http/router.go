package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dpetrov/couchsync/internal/adapters/signal"
	"github.com/dpetrov/couchsync/internal/app"
	"github.com/dpetrov/couchsync/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, orch *app.Orchestrator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	api.GET("/ws/sync", func(c *gin.Context) {
		ctl.HandleSync(ctx, c)
	})

	api.GET("/stats", func(c *gin.Context) {
		rooms, clients := orch.Registry.Stats()
		c.JSON(http.StatusOK, gin.H{"rooms": rooms, "clients": clients})
	})

	api.GET("/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, orch.Registry.Rooms())
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
