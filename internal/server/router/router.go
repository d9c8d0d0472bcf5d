package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/server/handlers"
)

// Handlers groups the HTTP adapters mounted on the engine.
type Handlers struct {
	Session   *handlers.SessionHandler
	Dashboard *handlers.DashboardHandler
	// Live serves the websocket feed. Optional.
	Live http.HandlerFunc
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")

	sess := api.Group("/session")
	sess.GET("", h.Session.Get)
	sess.POST("/login", h.Session.Login)
	sess.POST("/logout", h.Session.Logout)
	sess.POST("/clear-error", h.Session.ClearError)

	data := api.Group("", h.Session.RequireSession())
	data.GET("/regions", h.Dashboard.Regions)
	data.GET("/dashboard", h.Dashboard.Dashboard)
	data.GET("/inventory", h.Dashboard.Inventory)
	data.GET("/inventory/categories", h.Dashboard.Categories)
	data.GET("/inventory/export.csv", h.Dashboard.ExportCSV)
	data.GET("/inventory/export.pdf", h.Dashboard.ExportPDF)
	data.POST("/inventory/export/sheets", h.Dashboard.ExportSheets)
	data.GET("/dispatches", h.Dashboard.Dispatches)
	data.GET("/predictions", h.Dashboard.Predictions)
	data.POST("/refresh/:domain", h.Dashboard.Refresh)

	if h.Live != nil {
		r.GET("/ws", h.Session.RequireSession(), gin.WrapF(h.Live))
	}

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
