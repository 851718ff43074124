// README: WebSocket endpoint streaming notification events to the caller.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"ridedesk/internal/http/middleware"
	"ridedesk/internal/modules/notify"
	"ridedesk/internal/types"
)

type StreamHandler struct {
	hub      *notify.Hub
	upgrader websocket.Upgrader
}

func NewStreamHandler(hub *notify.Hub) *StreamHandler {
	return &StreamHandler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Stream upgrades the request and blocks until the client disconnects.
func (h *StreamHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return
	}
	h.hub.Attach(types.ID(middleware.CallerUID(c)), conn)
}
