package registry

import (
	"time"

	"collaborative-canvas/internal/domain"
)

// Member is one live connection currently joined to a room. Ephemeral:
// owned by the registry, never persisted, destroyed on leave or disconnect.
type Member struct {
	connID   string
	joinedAt time.Time
	cursor   domain.Cursor

	// send is the connection's outbound queue. Delivery is non-blocking;
	// a slow consumer drops messages rather than stalling a broadcast.
	send chan<- []byte
}

// NewMember creates a member for the given connection and outbound queue.
func NewMember(connID string, send chan<- []byte) *Member {
	return &Member{
		connID:   connID,
		joinedAt: time.Now(),
		send:     send,
	}
}

// ConnID returns the owning connection's identifier.
func (m *Member) ConnID() string { return m.connID }

// JoinedAt returns when the member joined its room.
func (m *Member) JoinedAt() time.Time { return m.joinedAt }

// Deliver queues data on the member's connection without blocking.
// Returns false when the queue is full and the message was dropped.
func (m *Member) Deliver(data []byte) bool {
	select {
	case m.send <- data:
		return true
	default:
		return false
	}
}
