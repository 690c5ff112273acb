// Package dto defines the JSON event surface exchanged over the WebSocket
// channel. Event names match the client protocol: join-room, cursor-move,
// draw-start, draw-move, draw-end, clear-canvas inbound; room-joined,
// user-joined, user-left, cursor-update, draw-*, canvas-cleared and error
// outbound.
package dto

import (
	"encoding/json"

	"collaborative-canvas/internal/domain"
)

// Inbound event types.
const (
	EventJoinRoom    = "join-room"
	EventCursorMove  = "cursor-move"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"
)

// Outbound event types.
const (
	EventRoomJoined    = "room-joined"
	EventUserJoined    = "user-joined"
	EventUserLeft      = "user-left"
	EventCursorUpdate  = "cursor-update"
	EventCanvasCleared = "canvas-cleared"
	EventError         = "error"
)

// Event is the envelope for every message on the socket.
type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JoinRoomPayload carries the code of the room to join.
type JoinRoomPayload struct {
	RoomID string `json:"roomId"`
}

// CursorMovePayload carries a member's pointer position.
type CursorMovePayload struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible *bool   `json:"visible,omitempty"`
}

// DrawStartPayload opens a stroke.
type DrawStartPayload struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	StrokeID string  `json:"strokeId"`
}

// DrawMovePayload extends a stroke.
type DrawMovePayload struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	StrokeID string  `json:"strokeId"`
}

// DrawEndPayload closes a stroke.
type DrawEndPayload struct {
	StrokeID string `json:"strokeId"`
}

// RoomJoinedPayload is the reply sent only to a joining connection.
type RoomJoinedPayload struct {
	RoomID      string                  `json:"roomId"`
	DrawingData []domain.DrawingCommand `json:"drawingData"`
	UserCount   int                     `json:"userCount"`
}

// UserJoinedPayload notifies a room's other members of a new joiner.
type UserJoinedPayload struct {
	UserCount int `json:"userCount"`
}

// UserLeftPayload notifies remaining members of a departure.
type UserLeftPayload struct {
	UserCount int    `json:"userCount"`
	UserID    string `json:"userId"`
}

// CursorUpdatePayload relays a member's pointer to the rest of the room.
type CursorUpdatePayload struct {
	UserID  string  `json:"userId"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}

// ErrorPayload reports a protocol error back to the offending connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// Encode marshals an event envelope with the given payload. The payload
// must be JSON-serializable; this never fails for the types above.
func Encode(eventType string, payload interface{}) ([]byte, error) {
	var data json.RawMessage
	if payload != nil {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		data = bytes
	}
	return json.Marshal(Event{Type: eventType, Data: data})
}

// Decode unmarshals an envelope from the wire.
func Decode(raw []byte) (Event, error) {
	var evt Event
	err := json.Unmarshal(raw, &evt)
	return evt, err
}
