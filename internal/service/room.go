package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// RoomService handles room lookup, creation and code generation.
type RoomService struct {
	roomRepo repository.RoomRepository
	cmdRepo  repository.CommandRepository
}

// NewRoomService creates a RoomService.
func NewRoomService(roomRepo repository.RoomRepository, cmdRepo repository.CommandRepository) *RoomService {
	if roomRepo == nil || cmdRepo == nil {
		panic("repositories must be non-nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo, cmdRepo: cmdRepo}
}

// JoinOrCreate resolves rawCode to a room, creating it when unseen. An
// empty code yields a freshly generated unique one. Returns the room and
// its drawing history; a history read failure degrades to an empty history
// rather than failing the join.
func (s *RoomService) JoinOrCreate(ctx context.Context, rawCode string) (*domain.Room, []domain.DrawingCommand, error) {
	var code string
	var err error
	if rawCode == "" {
		code, err = s.GenerateUniqueCode(ctx)
		if err != nil {
			return nil, nil, ErrInternalServer
		}
	} else {
		code = domain.NormalizeRoomCode(rawCode)
		if !domain.ValidRoomCode(code) {
			return nil, nil, ErrInvalidRoomCode
		}
	}
	logCtx := logrus.WithField("room", code)

	room, err := s.roomRepo.FindByCode(ctx, code)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrRoomNotFound):
		room = &domain.Room{RoomCode: code, LastActivity: time.Now().UTC()}
		if err := s.roomRepo.Save(ctx, room); err != nil {
			// A concurrent creation of the same code is fine, re-read it.
			if errors.Is(err, repository.ErrDuplicateEntry) {
				room, err = s.roomRepo.FindByCode(ctx, code)
				if err != nil {
					logCtx.WithError(err).Error("RoomService: re-read after duplicate create failed")
					return nil, nil, ErrInternalServer
				}
			} else {
				logCtx.WithError(err).Error("RoomService: failed to create room")
				return nil, nil, ErrInternalServer
			}
		} else {
			logCtx.Info("RoomService: room created")
		}
	default:
		logCtx.WithError(err).Error("RoomService: room lookup failed")
		return nil, nil, ErrInternalServer
	}

	history := s.History(ctx, code)
	return room, history, nil
}

// GetRoom returns an existing room and its history. ErrInvalidRoomCode for
// malformed codes, ErrRoomNotFound when the room does not exist.
func (s *RoomService) GetRoom(ctx context.Context, rawCode string) (*domain.Room, []domain.DrawingCommand, error) {
	code := domain.NormalizeRoomCode(rawCode)
	if !domain.ValidRoomCode(code) {
		return nil, nil, ErrInvalidRoomCode
	}
	room, err := s.roomRepo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, nil, ErrRoomNotFound
		}
		logrus.WithField("room", code).WithError(err).Error("RoomService: room lookup failed")
		return nil, nil, ErrInternalServer
	}
	return room, s.History(ctx, code), nil
}

// History reads a room's drawing log, degrading to an empty history when
// the read fails.
func (s *RoomService) History(ctx context.Context, code string) []domain.DrawingCommand {
	history, err := s.cmdRepo.ReadAll(ctx, code)
	if err != nil {
		logrus.WithField("room", code).WithError(err).Error("RoomService: history read failed, serving empty history")
		return []domain.DrawingCommand{}
	}
	if history == nil {
		history = []domain.DrawingCommand{}
	}
	return history
}

// GenerateUniqueCode produces a room code not currently in use.
func (s *RoomService) GenerateUniqueCode(ctx context.Context) (string, error) {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	const maxAttempts = 10

	b := make([]byte, domain.RoomCodeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("failed to generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		code := string(b)

		taken, err := s.roomRepo.IsCodeTaken(ctx, code)
		if err != nil {
			return "", fmt.Errorf("database error checking room code: %w", err)
		}
		if !taken {
			return code, nil
		}
		logrus.WithField("room", code).Warnf("Generated room code already exists, retrying (attempt %d)", attempt+1)
	}
	return "", fmt.Errorf("failed to generate a unique room code after %d attempts", maxAttempts)
}
