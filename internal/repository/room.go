package repository

import (
	"context"
	"time"

	"collaborative-canvas/internal/domain"
)

// RoomRepository defines storage and retrieval of durable room records.
type RoomRepository interface {
	// FindByCode looks up a room by its normalized room code.
	// Returns ErrRoomNotFound if no such room exists.
	FindByCode(ctx context.Context, code string) (*domain.Room, error)

	// Save creates the room, or updates it when it already exists.
	Save(ctx context.Context, room *domain.Room) error

	// IsCodeTaken reports whether a room with the given code exists.
	IsCodeTaken(ctx context.Context, code string) (bool, error)

	// Touch advances the room's last-activity timestamp to now.
	Touch(ctx context.Context, code string) error

	// AdjustActiveUsers atomically adds delta to the persisted member
	// counter, clamped at zero, and touches last-activity. The counter is
	// informational; the in-memory registry holds the authoritative count.
	AdjustActiveUsers(ctx context.Context, code string, delta int) error

	// DeleteIdleSince removes every room whose last activity is older than
	// cutoff, together with its drawing log. Returns the codes removed.
	DeleteIdleSince(ctx context.Context, cutoff time.Time) ([]string, error)
}
