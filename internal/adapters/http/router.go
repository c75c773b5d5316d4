package http

import (
	"context"

	"github.com/dkeye/callgate/internal/adapters/signal"
	"github.com/dkeye/callgate/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handlers, ws *signal.SignalWSController) *gin.Engine {
	switch cfg.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	if cfg.Mode == "debug" {
		r.Use(AccessLog())
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/rooms/stats", h.RoomStats)
	r.GET("/ws", func(c *gin.Context) {
		ws.HandleSignal(ctx, c)
	})

	api := r.Group("/")
	if cfg.RateLimitRPS > 0 {
		api.Use(RateLimitMiddleware(NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)))
	}
	api.POST("/session", h.PostSession)
	api.POST("/turn", h.PostTURN)
	api.GET("/waiting", h.GetWaiting)
	api.POST("/waiting", h.PostWaiting)

	log.Info().Str("module", "adapters.http").Str("mode", cfg.Mode).Msg("router setup")
	return r
}
