package http

import (
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/static"
	"github.com/gin-gonic/gin"

	"jewelfinder-go/internal/app"
	"jewelfinder-go/internal/platform/config"
	"jewelfinder-go/internal/platform/logging"
	ws "jewelfinder-go/internal/transport/ws"
)

// Options carries the router dependencies.
type Options struct {
	Config  *config.Config
	Logger  *logging.Logger
	Service *app.Service
}

// Build assembles the gin engine: request logging, CORS, the static UI, the
// JSON API and the voice websocket.
func Build(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(opts.Logger))
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	if dir := opts.Config.Server.StaticDir; dir != "" {
		if _, err := os.Stat(dir); err == nil {
			engine.Use(static.Serve("/", static.LocalFile(dir, true)))
		} else {
			opts.Logger.WarnTag("HTTP", "static dir %s missing, UI disabled", dir)
		}
	}

	handlers := newHandlers(opts.Service, opts.Logger)
	api := engine.Group("/api")
	{
		api.GET("/session", handlers.getSession)
		api.GET("/history", handlers.getHistory)
		api.GET("/system/status", handlers.getSystemStatus)

		api.POST("/search/text", handlers.searchText)
		api.POST("/search/image", handlers.searchImage)
		api.POST("/search/sketch", handlers.searchSketchUpload)
		api.POST("/session/similar", handlers.findSimilar)

		api.POST("/sketch/stroke", handlers.sketchStroke)
		api.POST("/sketch/tool", handlers.sketchTool)
		api.POST("/sketch/undo", handlers.sketchUndo)
		api.POST("/sketch/clear", handlers.sketchClear)
		api.POST("/sketch/search", handlers.searchSketchCanvas)

		api.POST("/ocr/read", handlers.ocrRead)
		api.POST("/ocr/confirm", handlers.ocrConfirm)
		api.POST("/ocr/cancel", handlers.ocrCancel)

		api.POST("/session/focus", handlers.focus)
		api.POST("/session/focus/next", handlers.focusNext)
		api.POST("/session/focus/prev", handlers.focusPrev)
		api.POST("/session/focus/dismiss", handlers.dismiss)
	}

	voice := ws.NewVoiceHandler(opts.Service, opts.Logger)
	engine.GET("/ws/voice", voice.Handle)

	mirror := ws.NewSessionHandler(opts.Service, opts.Logger)
	engine.GET("/ws/session", mirror.Handle)

	return engine
}

func requestLogger(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.DebugTag("HTTP", "%s %s -> %d (%s)",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(),
			time.Since(start).Round(time.Millisecond))
	}
}
