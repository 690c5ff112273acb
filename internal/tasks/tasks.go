package tasks

import "encoding/json"

// Task types processed by the worker.
const (
	// TypeRoomExpiry sweeps rooms idle past the retention window, deleting
	// them together with their drawing logs.
	TypeRoomExpiry = "room:expire"
)

// RoomExpiryPayload parametrizes a room expiry sweep. MaxIdleHours of 0
// means the default retention window.
type RoomExpiryPayload struct {
	MaxIdleHours int `json:"maxIdleHours"`
}

// NewRoomExpiryTask builds the payload of a room expiry sweep task.
func NewRoomExpiryTask(maxIdleHours int) ([]byte, error) {
	return json.Marshal(RoomExpiryPayload{MaxIdleHours: maxIdleHours})
}
