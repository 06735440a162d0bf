package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/yourboymarti/poker-everest/internal/ws"
)

// WebSocketHandler handles WebSocket connections for estimation rooms.
type WebSocketHandler struct {
	wsHandler *ws.Handler
}

// NewWebSocketHandler creates a new WebSocketHandler.
func NewWebSocketHandler(wsHandler *ws.Handler) *WebSocketHandler {
	return &WebSocketHandler{
		wsHandler: wsHandler,
	}
}

// Attach handles WS /api/rooms/:id/ws - joins or resumes a room session over
// WebSocket. Room existence is checked again inside the handler so an
// eviction racing the upgrade still resolves to a not-found.
func (h *WebSocketHandler) Attach(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		sendError(c, 400, "VALIDATION_ERROR", "Room ID is required")
		return
	}

	if err := h.wsHandler.HandleConnection(c.Writer, c.Request, roomID); err != nil {
		// Error already handled by WebSocket handler
		return
	}
}

// RegisterRoutes registers the WebSocket handler routes on a Gin router group.
func (h *WebSocketHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/rooms/:id/ws", h.Attach)
}
