package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/confkit/confkit/internal/adapters/events"
	"github.com/confkit/confkit/internal/app"
	"github.com/confkit/confkit/internal/config"
)

// UserIdentityMiddleware seeds a stable caller identity. A real deployment
// would take it from the identity provider; here a cookie stands in.
func UserIdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, _ := c.Cookie("uid")
		if uid == "" {
			uid = uuid.NewString()
			c.SetCookie("uid", uid, 3600*24*7, "/", "", false, true)
		}
		c.Set("user_id", uid)
		c.Next()
	}
}

func SetupRouter(ctx context.Context, cfg *config.Config, dir *app.Directory, hub *events.Hub) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("ConfkitSessions", store))
	r.Use(UserIdentityMiddleware())

	log.Info().Str("module", "adapters.http").Msg("router setup")

	h := &Handlers{Dir: dir, Hub: hub, Ctx: ctx}

	api := r.Group("/api")
	api.POST("/conferences", h.Schedule)

	conf := api.Group("/conferences/:id")
	conf.GET("", h.Snapshot)
	conf.GET("/participants", h.Participants)
	conf.GET("/rooms", h.BreakoutRooms)
	conf.GET("/events", h.Events)

	conf.POST("/start", h.Start)
	conf.POST("/end", h.End)
	conf.POST("/cancel", h.Cancel)
	conf.POST("/lock", h.SetLock)
	conf.POST("/waiting-room", h.SetWaitingRoom)

	conf.POST("/join", h.Join)
	conf.POST("/leave", h.Leave)
	conf.POST("/admit", h.Admit)
	conf.DELETE("/participants/:pid", h.Remove)

	conf.POST("/participants/:pid/mute", h.Mute)
	conf.POST("/participants/:pid/unmute", h.Unmute)
	conf.POST("/participants/:pid/hand", h.Hand)
	conf.POST("/participants/:pid/video", h.Video)
	conf.POST("/participants/:pid/promote", h.Promote)
	conf.PATCH("/participants/:pid/capabilities", h.Capabilities)
	conf.POST("/mute-all", h.MuteAll)

	conf.POST("/rooms", h.OpenRooms)
	conf.POST("/rooms/assign", h.AssignRoom)
	conf.POST("/rooms/close", h.CloseRooms)
	conf.POST("/return", h.ReturnToMain)

	conf.POST("/share/start", h.StartShare)
	conf.POST("/share/stop", h.StopShare)
	conf.POST("/recording/start", h.StartRecording)
	conf.POST("/recording/stop", h.StopRecording)
	conf.POST("/recording/pause", h.PauseRecording)
	conf.POST("/recording/resume", h.ResumeRecording)

	conf.POST("/chat", h.Chat)

	return r
}
