package main

import (
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// The game is origin-agnostic: clients are served from arbitrary hosts
	// during development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// NewRouter wires the HTTP surface: health and room discovery endpoints,
// the WebSocket upgrade, and the static client bundle when present.
func NewRouter(hub *Hub, rooms *RoomRegistry, engine *Engine, cfg Config, log *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status":      "ok",
				"activeGames": engine.ActiveLoops(),
			})
		})
		api.GET("/rooms/active", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"rooms": rooms.Joinable()})
		})
		api.GET("/room/:id/info", func(c *gin.Context) {
			info := rooms.Info(c.Param("id"))
			if info == nil {
				c.JSON(http.StatusNotFound, gin.H{"error": "room not found"})
				return
			}
			c.JSON(http.StatusOK, info)
		})
	}

	r.GET("/ws", func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Warnw("websocket upgrade failed", "err", err)
			return
		}
		go hub.Serve(ws)
	})

	if st, err := os.Stat(cfg.StaticDir); err == nil && st.IsDir() {
		r.Static("/assets", cfg.StaticDir+"/assets")
		r.StaticFile("/", cfg.StaticDir+"/index.html")
		r.NoRoute(func(c *gin.Context) {
			c.File(cfg.StaticDir + "/index.html")
		})
	}

	return r
}
