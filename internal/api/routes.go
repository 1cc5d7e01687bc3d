// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the sync API routes with the Echo instance.
func RegisterRoutes(e *echo.Echo, h *Handler, hub *Hub) {
	api := e.Group("/api")

	api.GET("/health", h.HandleHealth)

	api.GET("/overlays", h.HandleListInstances)
	api.GET("/overlays/:instanceKey", h.HandleGetState)
	api.POST("/overlays/:instanceKey", h.HandlePutSlice)
	api.DELETE("/overlays/:instanceKey", h.HandleDeleteInstance)
	api.GET("/overlays/:instanceKey/msgpack", h.HandleGetStateMsgpack)

	if hub != nil {
		api.GET("/ws", hub.HandleWebSocket)
	}
}
