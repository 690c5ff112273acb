package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
)

// GormCommandRepository is the MySQL implementation of the drawing log.
type GormCommandRepository struct {
	db *gorm.DB
}

// NewGormCommandRepository creates a GormCommandRepository.
func NewGormCommandRepository(db *gorm.DB) *GormCommandRepository {
	if db == nil {
		panic("database connection cannot be nil for GormCommandRepository")
	}
	return &GormCommandRepository{db: db}
}

// Append inserts one command and touches the room's last-activity stamp.
// The room record is created on first write so the log never depends on the
// in-memory registry.
func (r *GormCommandRepository) Append(ctx context.Context, cmd domain.DrawingCommand) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureRoom(tx, cmd.RoomCode); err != nil {
			return err
		}
		if err := tx.Create(&cmd).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Room{}).
			Where("room_code = ?", cmd.RoomCode).
			Update("last_activity", time.Now().UTC()).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: append %s command to room %q: %w", cmd.Type, cmd.RoomCode, err)
	}
	return nil
}

// ReadAll returns the room's full history in log order. The journal writes
// with a single goroutine, so insertion order is dispatch order and the
// auto-increment id is the sequence.
func (r *GormCommandRepository) ReadAll(ctx context.Context, roomCode string) ([]domain.DrawingCommand, error) {
	var cmds []domain.DrawingCommand
	err := r.db.WithContext(ctx).
		Where("room_code = ?", roomCode).
		Order("id asc").
		Find(&cmds).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: read history for room %q: %w", roomCode, err)
	}
	return cmds, nil
}

// Clear replaces the room's stored history with the single clear entry in
// one transaction, so a concurrent append can land before or after the
// clear but a pre-clear command can never resurface.
func (r *GormCommandRepository) Clear(ctx context.Context, clear domain.DrawingCommand) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.ensureRoom(tx, clear.RoomCode); err != nil {
			return err
		}
		if err := tx.Where("room_code = ?", clear.RoomCode).
			Delete(&domain.DrawingCommand{}).Error; err != nil {
			return err
		}
		if err := tx.Create(&clear).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Room{}).
			Where("room_code = ?", clear.RoomCode).
			Update("last_activity", time.Now().UTC()).Error
	})
	if err != nil {
		return fmt.Errorf("gorm: clear history for room %q: %w", clear.RoomCode, err)
	}
	return nil
}

func (r *GormCommandRepository) ensureRoom(tx *gorm.DB, code string) error {
	var room domain.Room
	err := tx.Where("room_code = ?", code).First(&room).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	room = domain.Room{RoomCode: code, LastActivity: time.Now().UTC()}
	return tx.Create(&room).Error
}
