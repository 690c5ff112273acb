package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Command types stored in the drawing log.
const (
	CommandStroke = "stroke"
	CommandClear  = "clear"
)

// Stroke actions carried by a stroke command.
const (
	StrokeStart = "start"
	StrokeMove  = "move"
	StrokeEnd   = "end"
)

// DrawingCommand is one entry of a room's append-only drawing log.
// Data holds the type-specific payload as a JSON string; for stroke
// commands it decodes into StrokeData, for clear commands it carries the
// clear marker. Log order is insertion order: commands are written by a
// single journal goroutine, so the auto-increment ID fixes the per-room
// sequence.
type DrawingCommand struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	RoomCode  string    `gorm:"index;size:16;not null" json:"-"`
	Type      string    `gorm:"size:16;not null" json:"type"`
	Data      string    `gorm:"type:text;not null" json:"-"`
	Timestamp time.Time `gorm:"not null" json:"timestamp"`
}

// StrokeData is the payload of a stroke command. X, Y, Color and Width are
// only meaningful for the actions that carry them: start has all four,
// move has the coordinates, end has neither.
type StrokeData struct {
	Action   string  `json:"action"`
	X        float64 `json:"x,omitempty"`
	Y        float64 `json:"y,omitempty"`
	Color    string  `json:"color,omitempty"`
	Width    float64 `json:"width,omitempty"`
	StrokeID string  `json:"strokeId"`
}

// ParseStroke decodes the command's Data payload into StrokeData.
func (c *DrawingCommand) ParseStroke() (StrokeData, error) {
	var data StrokeData
	if c.Type != CommandStroke {
		return data, fmt.Errorf("command %d is %q, not a stroke", c.ID, c.Type)
	}
	if err := json.Unmarshal([]byte(c.Data), &data); err != nil {
		return data, fmt.Errorf("failed to unmarshal stroke data: %w", err)
	}
	return data, nil
}

// SetStroke encodes data into the command's Data payload and marks the
// command as a stroke.
func (c *DrawingCommand) SetStroke(data StrokeData) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal stroke data: %w", err)
	}
	c.Type = CommandStroke
	c.Data = string(bytes)
	return nil
}

// NewClearCommand builds the single entry that replaces a room's history
// when the canvas is reset.
func NewClearCommand(roomCode string) DrawingCommand {
	return DrawingCommand{
		RoomCode:  roomCode,
		Type:      CommandClear,
		Data:      `{"action":"clear"}`,
		Timestamp: time.Now().UTC(),
	}
}

// MarshalJSON renders the command in the wire layout used by room history
// replies: {type, data, timestamp} with data as a JSON object.
func (c DrawingCommand) MarshalJSON() ([]byte, error) {
	payload := json.RawMessage(c.Data)
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	return json.Marshal(struct {
		Type      string          `json:"type"`
		Data      json.RawMessage `json:"data"`
		Timestamp time.Time       `json:"timestamp"`
	}{Type: c.Type, Data: payload, Timestamp: c.Timestamp})
}
