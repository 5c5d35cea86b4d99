package transport

import (
	"net/http"
	"time"

	"github.com/ds124wfegd/openmic-lineup/internal/metrics"
	"github.com/ds124wfegd/openmic-lineup/internal/transport/middleware"

	"github.com/gin-gonic/gin"
)

type RouterConfig struct {
	RequestTimeout time.Duration
	AllowedOrigins []string
	WSPath         string
	SecureCookie   bool
}

type Handlers struct {
	Lineup       *LineupHandler
	Event        *EventHandler
	Notification *NotificationHandler
	WS           *WSHandler
}

func InitRoutes(cfg RouterConfig, h Handlers, resolver middleware.IdentityResolver, m *metrics.Metrics) *gin.Engine {

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.AllowedOrigins))
	router.Use(middleware.Metrics(m))
	router.Use(middleware.Logger())

	identity := middleware.Identity(resolver, cfg.SecureCookie)

	// Websocket routes live outside the request timeout: the connection
	// outlives the upgrade request.
	if h.WS != nil {
		wsPath := cfg.WSPath
		if wsPath == "" {
			wsPath = "/ws"
		}
		router.GET(wsPath, h.WS.Serve)
		router.GET(wsPath+"/token", identity, middleware.RequireUser(), h.WS.IssueToken)
	}

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.Timeout(cfg.RequestTimeout))
	api.Use(identity)
	{
		// Lineup routes
		slots := api.Group("/lineup_slots")
		{
			slots.POST("", h.Lineup.ClaimSlot)
			slots.PUT("/reorder", h.Lineup.ReorderSlots)
			slots.GET("/:eventId", h.Lineup.ListSlots)
			slots.GET("/:eventId/consolidated", h.Lineup.Consolidated)
			slots.DELETE("/:slotId", h.Lineup.ReleaseSlot)
		}

		// Event routes
		events := api.Group("/events")
		{
			events.GET("/:eventId", h.Event.GetEvent)
			events.PATCH("/:eventId", h.Event.UpdateEvent)
			events.DELETE("/:eventId/notifications", h.Notification.DeleteEventNotifications)
		}

		// Notification routes
		notifications := api.Group("/notifications", middleware.RequireUser())
		{
			notifications.GET("", h.Notification.List)
			notifications.GET("/preferences", h.Notification.GetPreferences)
			notifications.PUT("/preferences", h.Notification.UpdatePreferences)
			notifications.PATCH("/:id/read", h.Notification.MarkRead)
		}
	}

	if m != nil {
		router.GET("/metrics", gin.WrapH(m.Handler()))
	}

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().UTC(),
		})
	})

	return router
}
