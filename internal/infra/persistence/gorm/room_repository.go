package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
)

// GormRoomRepository is the MySQL implementation of RoomRepository.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a GormRoomRepository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByCode looks up a room by its code.
func (r *GormRoomRepository) FindByCode(ctx context.Context, code string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Where("room_code = ?", code).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by code %q: %w", code, err)
	}
	return &room, nil
}

// Save creates or updates a room record.
func (r *GormRoomRepository) Save(ctx context.Context, room *domain.Room) error {
	if room.LastActivity.IsZero() {
		room.LastActivity = time.Now().UTC()
	}
	err := r.db.WithContext(ctx).Save(room).Error
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: save room %q: %w", room.RoomCode, err)
	}
	return nil
}

// IsCodeTaken reports whether a room with the given code exists.
func (r *GormRoomRepository) IsCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("room_code = ?", code).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by code %q: %w", code, err)
	}
	return count > 0, nil
}

// Touch advances the room's last-activity timestamp.
func (r *GormRoomRepository) Touch(ctx context.Context, code string) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("room_code = ?", code).
		Update("last_activity", time.Now().UTC()).Error
	if err != nil {
		return fmt.Errorf("gorm: touch room %q: %w", code, err)
	}
	return nil
}

// AdjustActiveUsers applies delta to the persisted member counter with a
// single atomic UPDATE, clamped at zero. Read-modify-write would race under
// concurrent joins.
func (r *GormRoomRepository) AdjustActiveUsers(ctx context.Context, code string, delta int) error {
	err := r.db.WithContext(ctx).Model(&domain.Room{}).
		Where("room_code = ?", code).
		Updates(map[string]interface{}{
			"active_users":  gorm.Expr("GREATEST(active_users + ?, 0)", delta),
			"last_activity": time.Now().UTC(),
		}).Error
	if err != nil {
		return fmt.Errorf("gorm: adjust active users for room %q by %d: %w", code, delta, err)
	}
	return nil
}

// DeleteIdleSince removes rooms idle past the cutoff together with their
// drawing logs, and returns the removed codes.
func (r *GormRoomRepository) DeleteIdleSince(ctx context.Context, cutoff time.Time) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Room{}).
			Where("last_activity < ?", cutoff).
			Pluck("room_code", &codes).Error; err != nil {
			return err
		}
		if len(codes) == 0 {
			return nil
		}
		if err := tx.Where("room_code IN ?", codes).Delete(&domain.DrawingCommand{}).Error; err != nil {
			return err
		}
		return tx.Where("room_code IN ?", codes).Delete(&domain.Room{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: delete rooms idle since %v: %w", cutoff, err)
	}
	return codes, nil
}
