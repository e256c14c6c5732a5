package devserver

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Panos61/videocall-app-client-sub000/internal/domain"
)

type Options struct {
	Mode   string
	Secret string
}

// ClientTokenMiddleware tags every client with a stable cookie token,
// the way the production frontend does.
func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = uuid.NewString()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(store *Store, hubs *Hubs, opts Options) *gin.Engine {
	if opts.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Secret == "" {
		opts.Secret = "devserver"
	}

	r := gin.New()
	if opts.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	cookieStore := cookie.NewStore([]byte(opts.Secret))
	r.Use(sessions.Sessions("CallSessions", cookieStore))
	r.Use(ClientTokenMiddleware())

	api := r.Group("/api")

	api.GET("/rooms/:room/participants", func(c *gin.Context) {
		all, inCall, ok := store.snapshot(c.Param("room"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		if all == nil {
			all = []domain.Participant{}
		}
		if inCall == nil {
			inCall = []domain.Participant{}
		}
		c.JSON(http.StatusOK, gin.H{
			"participants":         all,
			"participants_in_call": inCall,
		})
	})

	api.GET("/rooms/:room/me", func(c *gin.Context) {
		sid := domain.SessionID(c.Query("session_id"))
		if sid == "" {
			if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				sid = domain.SessionID(strings.TrimPrefix(auth, "Bearer "))
			}
		}
		if sid == "" {
			sid = domain.SessionID(c.GetString("client_token"))
		}
		all, _, ok := store.snapshot(c.Param("room"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		for _, p := range all {
			if p.SessionID == sid {
				c.JSON(http.StatusOK, p)
				return
			}
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "not a member"})
	})

	api.GET("/rooms/:room", func(c *gin.Context) {
		room, ok := store.Room(c.Param("room"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, room.Info)
	})

	api.GET("/rooms/:room/call", func(c *gin.Context) {
		room, ok := store.Room(c.Param("room"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
			return
		}
		c.JSON(http.StatusOK, room.Call)
	})

	api.POST("/rooms/:room/token", func(c *gin.Context) {
		var body struct {
			SessionID domain.SessionID `json:"session_id"`
		}
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "bad payload"})
			return
		}
		log.Info().Str("module", "devserver").Str("sid", string(body.SessionID)).Msg("token issued")
		c.JSON(http.StatusOK, gin.H{"token": uuid.NewString()})
	})

	ws := api.Group("/ws")
	ws.GET("/:room/media", func(c *gin.Context) { hubs.Handle(c, "media", true) })
	ws.GET("/:room/user-events", func(c *gin.Context) { hubs.Handle(c, "user-events", false) })
	ws.GET("/:room/system-events", func(c *gin.Context) { hubs.Handle(c, "system-events", false) })
	ws.GET("/:room/settings", func(c *gin.Context) { hubs.Handle(c, "settings", false) })

	return r
}
