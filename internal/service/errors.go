package service

import "errors"

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrInvalidRoomCode = errors.New("invalid room code")
	ErrNotJoined       = errors.New("not joined to a room")
	ErrInvalidEvent    = errors.New("invalid event payload")
	ErrInternalServer  = errors.New("internal server error")
)
