package service

import "collaborative-canvas/internal/dto"

// Session is the per-connection lifecycle state: which room the connection
// currently occupies and its outbound queue. A session starts unjoined,
// becomes joined through a join-room event and returns to unjoined on
// leave or disconnect.
//
// A session is mutated only by the dispatch loop that owns its connection
// (or by a test driving Dispatch directly), so it carries no lock.
type Session struct {
	connID   string
	roomCode string
	send     chan<- []byte
}

// NewSession creates an unjoined session for a connection.
func NewSession(connID string, send chan<- []byte) *Session {
	return &Session{connID: connID, send: send}
}

// ConnID returns the connection identifier.
func (s *Session) ConnID() string { return s.connID }

// RoomCode returns the code of the room the session is joined to, or ""
// while unjoined.
func (s *Session) RoomCode() string { return s.roomCode }

// Joined reports whether the session currently occupies a room.
func (s *Session) Joined() bool { return s.roomCode != "" }

// reply queues an event for this connection only, without blocking.
func (s *Session) reply(eventType string, payload interface{}) {
	data, err := dto.Encode(eventType, payload)
	if err != nil {
		return
	}
	select {
	case s.send <- data:
	default:
	}
}
