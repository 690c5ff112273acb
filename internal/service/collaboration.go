package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/dto"
	"collaborative-canvas/internal/registry"
	"collaborative-canvas/internal/repository"
)

// CollaborationService routes every inbound connection event: it keeps the
// registry's membership in sync, appends log-worthy events to the drawing
// journal and fans events out to the right member set. Stroke and cursor
// broadcasts exclude the sender, which already rendered its own input
// locally; canvas-cleared includes the sender so the destructive reset is
// confirmed symmetrically for everyone.
//
// Broadcast never waits on persistence: the journal append is
// fire-and-forget and a failed write costs history, not latency.
type CollaborationService struct {
	registry    *registry.Registry
	roomService *RoomService
	roomRepo    repository.RoomRepository
	journal     *Journal
}

// NewCollaborationService creates a CollaborationService.
func NewCollaborationService(
	reg *registry.Registry,
	roomService *RoomService,
	roomRepo repository.RoomRepository,
	journal *Journal,
) *CollaborationService {
	if reg == nil || roomService == nil || roomRepo == nil || journal == nil {
		panic("all dependencies must be non-nil for CollaborationService")
	}
	return &CollaborationService{
		registry:    reg,
		roomService: roomService,
		roomRepo:    roomRepo,
		journal:     journal,
	}
}

// Dispatch processes one raw inbound event for the session. Events from a
// single connection must be dispatched serially in arrival order; the hub's
// run loop guarantees that, and dispatching from one loop also keeps
// broadcast order per room equal to processing order.
func (s *CollaborationService) Dispatch(ctx context.Context, sess *Session, raw []byte) {
	evt, err := dto.Decode(raw)
	if err != nil {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrInvalidEvent.Error()})
		return
	}

	switch evt.Type {
	case dto.EventJoinRoom:
		s.handleJoin(ctx, sess, evt.Data)
	case dto.EventCursorMove:
		s.handleCursorMove(sess, evt.Data)
	case dto.EventDrawStart:
		s.handleDrawStart(sess, evt.Data)
	case dto.EventDrawMove:
		s.handleDrawMove(sess, evt.Data)
	case dto.EventDrawEnd:
		s.handleDrawEnd(sess, evt.Data)
	case dto.EventClearCanvas:
		s.handleClearCanvas(sess)
	default:
		logrus.WithFields(logrus.Fields{
			"conn": sess.ConnID(),
			"type": evt.Type,
		}).Warn("Collaboration: unknown event type")
		sess.reply(dto.EventError, dto.ErrorPayload{Message: "unknown event type: " + evt.Type})
	}
}

// Disconnect runs the leave cleanup for a closed connection. Safe to call
// for an unjoined session; cleanup runs at most once because the registry
// removal reports whether the connection was still a member.
func (s *CollaborationService) Disconnect(sess *Session) {
	roomCode, remaining, ok := s.registry.Leave(sess.ConnID())
	if !ok {
		sess.roomCode = ""
		return
	}
	sess.roomCode = ""
	s.broadcast(roomCode, dto.EventUserLeft, dto.UserLeftPayload{
		UserCount: remaining,
		UserID:    sess.ConnID(),
	}, "")
	s.adjustPersistedCount(roomCode, -1)
	logrus.WithFields(logrus.Fields{
		"conn":      sess.ConnID(),
		"room":      roomCode,
		"remaining": remaining,
	}).Info("Collaboration: member left")
}

func (s *CollaborationService) handleJoin(ctx context.Context, sess *Session, data json.RawMessage) {
	var payload dto.JoinRoomPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.RoomID == "" {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: "room ID is required"})
		return
	}
	code := domain.NormalizeRoomCode(payload.RoomID)
	if !domain.ValidRoomCode(code) {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrInvalidRoomCode.Error()})
		return
	}

	member := registry.NewMember(sess.ConnID(), sess.send)
	rejoin := sess.RoomCode() == code
	count, prevRoom, prevCount := s.registry.Join(code, member)
	sess.roomCode = code

	if prevRoom != "" {
		s.broadcast(prevRoom, dto.EventUserLeft, dto.UserLeftPayload{
			UserCount: prevCount,
			UserID:    sess.ConnID(),
		}, "")
		s.adjustPersistedCount(prevRoom, -1)
	}

	s.broadcast(code, dto.EventUserJoined, dto.UserJoinedPayload{UserCount: count}, sess.ConnID())
	// A rejoin of the room the session already occupies leaves the member
	// count unchanged, so the persisted counter is not bumped again.
	if !rejoin {
		s.adjustPersistedCount(code, 1)
	}

	// History comes from storage; fetch it off the dispatch loop and reply
	// only to the joiner.
	go s.sendRoomJoined(sess, code, count)

	logrus.WithFields(logrus.Fields{
		"conn":  sess.ConnID(),
		"room":  code,
		"count": count,
	}).Info("Collaboration: member joined")
}

// sendRoomJoined ensures the room record exists, reads its history and
// replies to the joining connection. A storage failure degrades to an
// empty history instead of failing the join.
func (s *CollaborationService) sendRoomJoined(sess *Session, code string, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()

	_, history, err := s.roomService.JoinOrCreate(ctx, code)
	if err != nil {
		logrus.WithField("room", code).WithError(err).Error("Collaboration: join history load failed, serving empty history")
		history = []domain.DrawingCommand{}
	}
	sess.reply(dto.EventRoomJoined, dto.RoomJoinedPayload{
		RoomID:      code,
		DrawingData: history,
		UserCount:   count,
	})
}

func (s *CollaborationService) handleCursorMove(sess *Session, data json.RawMessage) {
	if !sess.Joined() {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrNotJoined.Error()})
		return
	}
	var payload dto.CursorMovePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrInvalidEvent.Error()})
		return
	}
	visible := true
	if payload.Visible != nil {
		visible = *payload.Visible
	}
	cursor := domain.Cursor{X: payload.X, Y: payload.Y, Visible: visible}
	if !s.registry.UpdateCursor(sess.RoomCode(), sess.ConnID(), cursor) {
		// Race with a leave; a stray late cursor event is harmless.
		return
	}
	s.broadcast(sess.RoomCode(), dto.EventCursorUpdate, dto.CursorUpdatePayload{
		UserID:  sess.ConnID(),
		X:       payload.X,
		Y:       payload.Y,
		Visible: visible,
	}, sess.ConnID())
}

func (s *CollaborationService) handleDrawStart(sess *Session, data json.RawMessage) {
	if !sess.Joined() {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrNotJoined.Error()})
		return
	}
	var payload dto.DrawStartPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrInvalidEvent.Error()})
		return
	}
	if payload.StrokeID == "" {
		payload.StrokeID = sess.ConnID() + "-" + strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	stroke := domain.StrokeData{
		Action:   domain.StrokeStart,
		X:        payload.X,
		Y:        payload.Y,
		Color:    payload.Color,
		Width:    payload.Width,
		StrokeID: payload.StrokeID,
	}
	s.logStroke(sess.RoomCode(), stroke)
	s.broadcast(sess.RoomCode(), dto.EventDrawStart, stroke, sess.ConnID())
}

func (s *CollaborationService) handleDrawMove(sess *Session, data json.RawMessage) {
	if !sess.Joined() {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrNotJoined.Error()})
		return
	}
	var payload dto.DrawMovePayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.StrokeID == "" {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrInvalidEvent.Error()})
		return
	}
	stroke := domain.StrokeData{
		Action:   domain.StrokeMove,
		X:        payload.X,
		Y:        payload.Y,
		StrokeID: payload.StrokeID,
	}
	s.logStroke(sess.RoomCode(), stroke)
	s.broadcast(sess.RoomCode(), dto.EventDrawMove, stroke, sess.ConnID())
}

func (s *CollaborationService) handleDrawEnd(sess *Session, data json.RawMessage) {
	if !sess.Joined() {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrNotJoined.Error()})
		return
	}
	var payload dto.DrawEndPayload
	if err := json.Unmarshal(data, &payload); err != nil || payload.StrokeID == "" {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrInvalidEvent.Error()})
		return
	}
	stroke := domain.StrokeData{
		Action:   domain.StrokeEnd,
		StrokeID: payload.StrokeID,
	}
	s.logStroke(sess.RoomCode(), stroke)
	s.broadcast(sess.RoomCode(), dto.EventDrawEnd, stroke, sess.ConnID())
}

func (s *CollaborationService) handleClearCanvas(sess *Session) {
	if !sess.Joined() {
		sess.reply(dto.EventError, dto.ErrorPayload{Message: ErrNotJoined.Error()})
		return
	}
	s.journal.Enqueue(domain.NewClearCommand(sess.RoomCode()))
	// Everyone sees the reset, the sender included.
	s.broadcast(sess.RoomCode(), dto.EventCanvasCleared, nil, "")
}

// logStroke queues a stroke command for persistence, fire-and-forget.
func (s *CollaborationService) logStroke(roomCode string, stroke domain.StrokeData) {
	cmd := domain.DrawingCommand{
		RoomCode:  roomCode,
		Timestamp: time.Now().UTC(),
	}
	if err := cmd.SetStroke(stroke); err != nil {
		logrus.WithField("room", roomCode).WithError(err).Error("Collaboration: failed to encode stroke command")
		return
	}
	s.journal.Enqueue(cmd)
}

func (s *CollaborationService) broadcast(roomCode, eventType string, payload interface{}, excludeConnID string) {
	data, err := dto.Encode(eventType, payload)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room": roomCode,
			"type": eventType,
		}).WithError(err).Error("Collaboration: failed to encode broadcast")
		return
	}
	s.registry.Broadcast(roomCode, data, excludeConnID)
}

// adjustPersistedCount updates the informational active_users counter in
// the background. The registry count is authoritative; a failure here is
// logged and swallowed.
func (s *CollaborationService) adjustPersistedCount(roomCode string, delta int) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
		defer cancel()
		if err := s.roomRepo.AdjustActiveUsers(ctx, roomCode, delta); err != nil {
			logrus.WithField("room", roomCode).WithError(err).Warn("Collaboration: persisted member count update failed")
		}
	}()
}
