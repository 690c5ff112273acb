package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/domain"
)

// RoomRepository is a testify mock of repository.RoomRepository.
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	args := m.Called(ctx, code)
	room, _ := args.Get(0).(*domain.Room)
	return room, args.Error(1)
}

func (m *RoomRepository) Save(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	args := m.Called(ctx, code)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) Touch(ctx context.Context, code string) error {
	args := m.Called(ctx, code)
	return args.Error(0)
}

func (m *RoomRepository) AdjustActiveUsers(ctx context.Context, code string, delta int) error {
	args := m.Called(ctx, code, delta)
	return args.Error(0)
}

func (m *RoomRepository) DeleteIdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	codes, _ := args.Get(0).([]string)
	return codes, args.Error(1)
}
