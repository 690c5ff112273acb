// Package registry tracks which live connections belong to which room.
// It is the authoritative in-process membership view, independent of the
// durable drawing log: a room may hold history with no live members, and a
// freshly created room may have members before anything is drawn.
package registry

import (
	"sync"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
)

type room struct {
	members map[string]*Member
}

// Registry maps room codes to their current live member sets. All
// membership mutations are serialized under one lock, so concurrent joins,
// leaves and room switches can never double-count a connection or leave it
// visible in two rooms at once. Empty rooms are evicted from memory; their
// drawing logs persist independently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*room
	// conns maps a connection to the room it currently occupies.
	conns map[string]string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*room),
		conns: make(map[string]string),
	}
}

// Join registers the member under roomCode, creating the room's member set
// if absent. A connection already registered elsewhere is removed from its
// old room first, atomically with the new registration. Returns the new
// room's member count and, when a switch happened, the old room's code and
// post-removal count.
func (r *Registry) Join(roomCode string, m *Member) (count int, prevRoom string, prevCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.conns[m.connID]; ok && old != roomCode {
		prevRoom = old
		prevCount = r.removeLocked(old, m.connID)
	}

	rm, ok := r.rooms[roomCode]
	if !ok {
		rm = &room{members: make(map[string]*Member)}
		r.rooms[roomCode] = rm
		logrus.WithField("room", roomCode).Debug("Registry: member set created")
	}
	rm.members[m.connID] = m
	r.conns[m.connID] = roomCode
	return len(rm.members), prevRoom, prevCount
}

// Leave removes the connection from whatever room it occupies. Returns the
// room it left and the post-removal count; ok is false when the connection
// was not joined anywhere.
func (r *Registry) Leave(connID string) (roomCode string, remaining int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomCode, ok = r.conns[connID]
	if !ok {
		return "", 0, false
	}
	remaining = r.removeLocked(roomCode, connID)
	return roomCode, remaining, true
}

// removeLocked takes the connection out of the room and evicts the room's
// in-memory entry when it becomes empty. Caller holds r.mu.
func (r *Registry) removeLocked(roomCode, connID string) int {
	delete(r.conns, connID)
	rm, ok := r.rooms[roomCode]
	if !ok {
		return 0
	}
	delete(rm.members, connID)
	if len(rm.members) == 0 {
		delete(r.rooms, roomCode)
		logrus.WithField("room", roomCode).Debug("Registry: room empty, evicted from memory")
		return 0
	}
	return len(rm.members)
}

// UpdateCursor records the connection's last known cursor. A connection
// that is not a member of the room is ignored; that is a harmless race
// between a leave and a late cursor event.
func (r *Registry) UpdateCursor(roomCode, connID string, cursor domain.Cursor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomCode]
	if !ok {
		return false
	}
	m, ok := rm.members[connID]
	if !ok {
		return false
	}
	m.cursor = cursor
	return true
}

// MemberCount returns the room's live member count, 0 when the room has no
// live members (it may still exist durably).
func (r *Registry) MemberCount(roomCode string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[roomCode]
	if !ok {
		return 0
	}
	return len(rm.members)
}

// RoomOf returns the room the connection currently occupies.
func (r *Registry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	code, ok := r.conns[connID]
	return code, ok
}

// Broadcast delivers data to every member of the room except excludeConnID
// (pass "" to include everyone). Recipients are collected under a read lock
// and delivery is non-blocking, so a slow connection never stalls the rest
// of the room. Returns the number of successful deliveries.
func (r *Registry) Broadcast(roomCode string, data []byte, excludeConnID string) int {
	r.mu.RLock()
	rm, ok := r.rooms[roomCode]
	recipients := make([]*Member, 0)
	if ok {
		for id, m := range rm.members {
			if id != excludeConnID {
				recipients = append(recipients, m)
			}
		}
	}
	r.mu.RUnlock()

	delivered := 0
	for _, m := range recipients {
		if m.Deliver(data) {
			delivered++
		} else {
			logrus.WithFields(logrus.Fields{
				"room": roomCode,
				"conn": m.connID,
			}).Warn("Registry: member send queue full, message dropped")
		}
	}
	return delivered
}
