package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/repository"
	"collaborative-canvas/internal/tasks"
)

// RoomExpiryHandler deletes rooms whose last activity is older than the
// retention window. The drawing log's TTL contract lives here: expiry is a
// background policy, never triggered synchronously by the live path.
type RoomExpiryHandler struct {
	roomRepo repository.RoomRepository
}

// NewRoomExpiryHandler creates the handler.
func NewRoomExpiryHandler(roomRepo repository.RoomRepository) *RoomExpiryHandler {
	return &RoomExpiryHandler{roomRepo: roomRepo}
}

// ProcessTask implements asynq.Handler.
func (h *RoomExpiryHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())

	var payload tasks.RoomExpiryPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal room expiry payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	maxIdle := domain.RoomTTL
	if payload.MaxIdleHours > 0 {
		maxIdle = time.Duration(payload.MaxIdleHours) * time.Hour
	}
	cutoff := time.Now().UTC().Add(-maxIdle)

	codes, err := h.roomRepo.DeleteIdleSince(ctx, cutoff)
	if err != nil {
		logCtx.WithError(err).Error("Room expiry sweep failed")
		return fmt.Errorf("room expiry sweep: %w", err)
	}
	if len(codes) > 0 {
		logCtx.WithFields(logrus.Fields{
			"expired": len(codes),
			"cutoff":  cutoff,
		}).Info("Expired idle rooms removed")
	}
	return nil
}
