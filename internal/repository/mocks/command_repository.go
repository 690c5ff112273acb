package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"collaborative-canvas/internal/domain"
)

// CommandRepository is a testify mock of repository.CommandRepository.
type CommandRepository struct {
	mock.Mock
}

func (m *CommandRepository) Append(ctx context.Context, cmd domain.DrawingCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *CommandRepository) ReadAll(ctx context.Context, roomCode string) ([]domain.DrawingCommand, error) {
	args := m.Called(ctx, roomCode)
	cmds, _ := args.Get(0).([]domain.DrawingCommand)
	return cmds, args.Error(1)
}

func (m *CommandRepository) Clear(ctx context.Context, clear domain.DrawingCommand) error {
	args := m.Called(ctx, clear)
	return args.Error(0)
}
