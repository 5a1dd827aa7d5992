package http

import (
	"context"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/openmic/micqueue/internal/config"
	"github.com/openmic/micqueue/internal/identity"
)

// cookieMaxAge keeps the device identity stable for a year.
const cookieMaxAge = 3600 * 24 * 365

func SetupRouter(ctx context.Context, cfg *config.Config, h *Handler) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	store.Options(sessions.Options{MaxAge: cookieMaxAge, Path: "/", HttpOnly: true})
	r.Use(sessions.Sessions(identity.SessionName, store))
	r.Use(identity.Middleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	// 10 claim/join attempts per session per minute is plenty for
	// humans and blunts scripted churn.
	limiter := NewSessionRateLimiter(10, time.Minute)

	api := r.Group("/api")

	api.POST("/rooms/claim", limiter.Limit(), h.ClaimHost)
	api.GET("/rooms/active", h.ActiveRoom)
	api.GET("/rooms/:roomID", h.GetRoom)
	api.POST("/rooms/:roomID/leave", h.LeaveHost)

	api.POST("/rooms/:roomID/queue", limiter.Limit(), h.Join)
	api.GET("/rooms/:roomID/queue", h.Queue)
	api.GET("/rooms/:roomID/queue/me", h.MyEntry)
	api.DELETE("/queue/:entryID", h.Leave)
	api.POST("/queue/:entryID/approve", h.Approve)
	api.POST("/queue/:entryID/reject", h.Reject)
	api.POST("/queue/:entryID/speak", h.StartSpeaking)
	api.POST("/queue/:entryID/done", h.EndTurn)

	api.GET("/ws/events", func(c *gin.Context) { h.HandleEvents(ctx, c) })
	api.GET("/ws/audio/:roomID", func(c *gin.Context) { h.HandleAudio(ctx, c) })

	return r
}
