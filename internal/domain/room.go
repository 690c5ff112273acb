package domain

import (
	"regexp"
	"strings"
	"time"
)

// RoomTTL is the inactivity window after which a room and its drawing
// history become eligible for deletion.
const RoomTTL = 24 * time.Hour

// RoomCodeLength is the fixed length of a room code.
const RoomCodeLength = 6

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6}$`)

// Room is the durable record of a collaborative canvas session.
// The live member set is tracked in memory by the registry and is not part
// of this record; ActiveUsers is a best-effort persisted counter only.
type Room struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	RoomCode     string    `gorm:"uniqueIndex;size:16;not null" json:"roomId"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	LastActivity time.Time `gorm:"index;not null" json:"lastActivity"`
	ActiveUsers  int       `gorm:"not null;default:0" json:"activeUsers"`
}

// NormalizeRoomCode upper-cases and trims a client-supplied room code.
// Codes are case-insensitive on input.
func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidRoomCode reports whether code is exactly six characters from [A-Z0-9].
// The code must already be normalized.
func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}
