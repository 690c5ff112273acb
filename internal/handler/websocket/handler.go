package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/hub"
)

// WebSocketHandler upgrades HTTP requests to WebSocket connections and
// hands them to the hub. Connections start unjoined; room binding happens
// over the socket via a join-room event.
type WebSocketHandler struct {
	upgrader websocket.Upgrader
	hub      *hub.Hub
}

// NewWebSocketHandler creates a WebSocketHandler.
func NewWebSocketHandler(h *hub.Hub) *WebSocketHandler {
	if h == nil {
		panic("Hub cannot be nil for WebSocketHandler")
	}
	return &WebSocketHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// TODO: restrict origins via config before exposing publicly.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		hub: h,
	}
}

// HandleConnection upgrades the request and starts the client's pumps.
func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		logrus.WithError(err).Error("WS Handler: failed to upgrade connection")
		return
	}

	client := hub.NewClient(h.hub, conn)
	logCtx := logrus.WithField("conn", client.ConnID())

	if !h.hub.QueueMessage(hub.HubMessage{Type: "register", Client: client}) {
		logCtx.Error("WS Handler: hub queue full, rejecting connection")
		conn.Close()
		return
	}
	client.Run()
	logCtx.Info("WS Handler: connection established")
}
