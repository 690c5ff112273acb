package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/registry"
	"collaborative-canvas/internal/service"
)

// RoomHandler serves the room lookup/creation API consumed before a client
// opens its WebSocket connection.
type RoomHandler struct {
	roomService   *service.RoomService
	replayService *service.ReplayService
	registry      *registry.Registry
}

// NewRoomHandler creates a RoomHandler.
func NewRoomHandler(roomService *service.RoomService, replayService *service.ReplayService, reg *registry.Registry) *RoomHandler {
	if roomService == nil || replayService == nil || reg == nil {
		panic("all dependencies must be non-nil for RoomHandler")
	}
	return &RoomHandler{roomService: roomService, replayService: replayService, registry: reg}
}

// JoinRoomRequest is the body of POST /api/rooms/join. RoomID is optional;
// when absent a fresh unique code is generated.
type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// JoinRoomResponse is the reply for a successful join-or-create.
type JoinRoomResponse struct {
	Success     bool                    `json:"success"`
	RoomID      string                  `json:"roomId"`
	DrawingData []domain.DrawingCommand `json:"drawingData"`
	ActiveUsers int                     `json:"activeUsers"`
}

// JoinRoom finds or creates a room and returns its current drawing history.
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req JoinRoomRequest
	// An empty body is allowed and means "create a room for me".
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	room, history, err := h.roomService.JoinOrCreate(c.Request.Context(), req.RoomID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRoomCode) {
			ErrorResponse(c, http.StatusBadRequest, err.Error())
			return
		}
		logrus.WithError(err).Error("Handler.JoinRoom: failed to join or create room")
		ErrorResponse(c, http.StatusInternalServerError, "failed to join or create room")
		return
	}

	SuccessResponse(c, http.StatusOK, JoinRoomResponse{
		Success:     true,
		RoomID:      room.RoomCode,
		DrawingData: history,
		ActiveUsers: h.registry.MemberCount(room.RoomCode),
	})
}

// RoomInfoResponse is the reply of GET /api/rooms/:roomId. Strokes is the
// room's history replayed into completed polylines, so a client can redraw
// without interpreting raw commands.
type RoomInfoResponse struct {
	Success      bool                    `json:"success"`
	RoomID       string                  `json:"roomId"`
	DrawingData  []domain.DrawingCommand `json:"drawingData"`
	Strokes      []domain.Polyline       `json:"strokes"`
	ActiveUsers  int                     `json:"activeUsers"`
	CreatedAt    time.Time               `json:"createdAt"`
	LastActivity time.Time               `json:"lastActivity"`
}

// GetRoom returns an existing room's info, history and replayed strokes.
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, history, err := h.roomService.GetRoom(c.Request.Context(), c.Param("roomId"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRoomCode):
			ErrorResponse(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrRoomNotFound):
			ErrorResponse(c, http.StatusNotFound, "room not found")
		default:
			logrus.WithError(err).Error("Handler.GetRoom: failed to load room")
			ErrorResponse(c, http.StatusInternalServerError, "failed to retrieve room data")
		}
		return
	}

	SuccessResponse(c, http.StatusOK, RoomInfoResponse{
		Success:      true,
		RoomID:       room.RoomCode,
		DrawingData:  history,
		Strokes:      h.replayService.Replay(history),
		ActiveUsers:  h.registry.MemberCount(room.RoomCode),
		CreatedAt:    room.CreatedAt,
		LastActivity: room.LastActivity,
	})
}

// NewRoomCode generates an unused room code without creating the room.
func (h *RoomHandler) NewRoomCode(c *gin.Context) {
	code, err := h.roomService.GenerateUniqueCode(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Handler.NewRoomCode: failed to generate room code")
		ErrorResponse(c, http.StatusInternalServerError, "failed to generate new room code")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"success": true, "roomId": code})
}
