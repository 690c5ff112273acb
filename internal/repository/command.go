package repository

import (
	"context"

	"collaborative-canvas/internal/domain"
)

// CommandRepository is the drawing log: a durable, per-room, append-only
// store of drawing commands.
type CommandRepository interface {
	// Append adds one command to the room's log. The room record is created
	// lazily if it does not exist yet, so an append never depends on live
	// membership state.
	Append(ctx context.Context, cmd domain.DrawingCommand) error

	// ReadAll returns the room's full history in log order. A room with no
	// history yields an empty slice, not an error.
	ReadAll(ctx context.Context, roomCode string) ([]domain.DrawingCommand, error)

	// Clear atomically replaces the room's stored history with the given
	// clear entry. Commands appended after the clear keep their place.
	Clear(ctx context.Context, clear domain.DrawingCommand) error
}
