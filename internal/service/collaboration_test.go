package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
	"collaborative-canvas/internal/dto"
	"collaborative-canvas/internal/registry"
	"collaborative-canvas/internal/repository/mocks"
)

type collabFixture struct {
	svc      *CollaborationService
	roomRepo *mocks.RoomRepository
	cmdRepo  *mocks.CommandRepository
	journal  *Journal
}

func newCollabFixture(t *testing.T) *collabFixture {
	t.Helper()
	roomRepo := new(mocks.RoomRepository)
	cmdRepo := new(mocks.CommandRepository)
	roomRepo.On("AdjustActiveUsers", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	journal := NewJournal(cmdRepo)
	reg := registry.NewRegistry()
	roomService := NewRoomService(roomRepo, cmdRepo)
	return &collabFixture{
		svc:      NewCollaborationService(reg, roomService, roomRepo, journal),
		roomRepo: roomRepo,
		cmdRepo:  cmdRepo,
		journal:  journal,
	}
}

// allowRoomLoad stubs the storage reads behind the deferred room-joined reply.
func (f *collabFixture) allowRoomLoad(code string, history []domain.DrawingCommand) {
	f.roomRepo.On("FindByCode", mock.Anything, code).Return(&domain.Room{RoomCode: code}, nil).Maybe()
	f.cmdRepo.On("ReadAll", mock.Anything, code).Return(history, nil).Maybe()
}

type testConn struct {
	sess *Session
	recv chan []byte
}

func newTestConn(connID string) *testConn {
	recv := make(chan []byte, 32)
	return &testConn{sess: NewSession(connID, recv), recv: recv}
}

func (c *testConn) dispatch(svc *CollaborationService, raw string) {
	svc.Dispatch(context.Background(), c.sess, []byte(raw))
}

// waitEvent blocks for the next event of the wanted type, skipping none:
// any other type fails the test.
func waitEvent(t *testing.T, c *testConn, wantType string) json.RawMessage {
	t.Helper()
	select {
	case raw := <-c.recv:
		evt, err := dto.Decode(raw)
		require.NoError(t, err)
		require.Equal(t, wantType, evt.Type, "payload: %s", raw)
		return evt.Data
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s event", wantType)
		return nil
	}
}

// drainJournal returns everything currently queued for persistence.
func (f *collabFixture) drainJournal() []domain.DrawingCommand {
	var out []domain.DrawingCommand
	for {
		select {
		case cmd := <-f.journal.queue:
			out = append(out, cmd)
		default:
			return out
		}
	}
}

func TestJoinRepliesWithHistoryAndNotifiesRoom(t *testing.T) {
	f := newCollabFixture(t)
	history := []domain.DrawingCommand{{RoomCode: "ABC123", Type: domain.CommandStroke, Data: `{"action":"start","strokeId":"s1"}`}}
	f.allowRoomLoad("ABC123", history)

	first := newTestConn("conn-1")
	first.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"abc123"}}`)

	var joined dto.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, first, dto.EventRoomJoined), &joined))
	assert.Equal(t, "ABC123", joined.RoomID)
	assert.Equal(t, 1, joined.UserCount)
	assert.Len(t, joined.DrawingData, 1)
	assert.True(t, first.sess.Joined())
	assert.Equal(t, "ABC123", first.sess.RoomCode())

	second := newTestConn("conn-2")
	second.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)

	var notice dto.UserJoinedPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, first, dto.EventUserJoined), &notice))
	assert.Equal(t, 2, notice.UserCount)

	require.NoError(t, json.Unmarshal(waitEvent(t, second, dto.EventRoomJoined), &joined))
	assert.Equal(t, 2, joined.UserCount)
}

func TestJoinRejectsMissingAndMalformedRoomID(t *testing.T) {
	f := newCollabFixture(t)
	conn := newTestConn("conn-1")

	conn.dispatch(f.svc, `{"type":"join-room","data":{}}`)
	var errPayload dto.ErrorPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, conn, dto.EventError), &errPayload))
	assert.Equal(t, "room ID is required", errPayload.Message)

	conn.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"bad!"}}`)
	require.NoError(t, json.Unmarshal(waitEvent(t, conn, dto.EventError), &errPayload))
	assert.Equal(t, ErrInvalidRoomCode.Error(), errPayload.Message)
	assert.False(t, conn.sess.Joined())
}

func TestMembershipEventsBeforeJoinRejected(t *testing.T) {
	f := newCollabFixture(t)
	conn := newTestConn("conn-1")

	for _, raw := range []string{
		`{"type":"cursor-move","data":{"x":1,"y":2}}`,
		`{"type":"draw-start","data":{"x":1,"y":2,"color":"#000","width":2}}`,
		`{"type":"draw-move","data":{"x":1,"y":2,"strokeId":"s1"}}`,
		`{"type":"draw-end","data":{"strokeId":"s1"}}`,
		`{"type":"clear-canvas"}`,
	} {
		conn.dispatch(f.svc, raw)
		var errPayload dto.ErrorPayload
		require.NoError(t, json.Unmarshal(waitEvent(t, conn, dto.EventError), &errPayload))
		assert.Equal(t, ErrNotJoined.Error(), errPayload.Message, "event: %s", raw)
	}
	assert.Empty(t, f.drainJournal())
}

func TestDrawBroadcastExcludesSenderAndJournals(t *testing.T) {
	f := newCollabFixture(t)
	f.allowRoomLoad("ABC123", []domain.DrawingCommand{})

	sender := newTestConn("conn-1")
	peer := newTestConn("conn-2")
	sender.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, sender, dto.EventRoomJoined)
	peer.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, sender, dto.EventUserJoined)
	waitEvent(t, peer, dto.EventRoomJoined)

	sender.dispatch(f.svc, `{"type":"draw-start","data":{"x":10,"y":20,"color":"#ff0000","width":3,"strokeId":"s1"}}`)
	sender.dispatch(f.svc, `{"type":"draw-move","data":{"x":11,"y":21,"strokeId":"s1"}}`)
	sender.dispatch(f.svc, `{"type":"draw-end","data":{"strokeId":"s1"}}`)

	var start domain.StrokeData
	require.NoError(t, json.Unmarshal(waitEvent(t, peer, dto.EventDrawStart), &start))
	assert.Equal(t, "s1", start.StrokeID)
	assert.Equal(t, "#ff0000", start.Color)
	waitEvent(t, peer, dto.EventDrawMove)
	waitEvent(t, peer, dto.EventDrawEnd)

	// Dispatch is synchronous for draw events, so an echo to the sender
	// would already be queued.
	assert.Empty(t, sender.recv)

	queued := f.drainJournal()
	require.Len(t, queued, 3)
	for _, cmd := range queued {
		assert.Equal(t, "ABC123", cmd.RoomCode)
		assert.Equal(t, domain.CommandStroke, cmd.Type)
	}
	data, err := queued[0].ParseStroke()
	require.NoError(t, err)
	assert.Equal(t, domain.StrokeStart, data.Action)
}

func TestDrawStartBackfillsStrokeID(t *testing.T) {
	f := newCollabFixture(t)
	f.allowRoomLoad("ABC123", []domain.DrawingCommand{})

	sender := newTestConn("conn-1")
	peer := newTestConn("conn-2")
	sender.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, sender, dto.EventRoomJoined)
	peer.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, peer, dto.EventRoomJoined)
	waitEvent(t, sender, dto.EventUserJoined)

	sender.dispatch(f.svc, `{"type":"draw-start","data":{"x":1,"y":2,"color":"#000","width":1}}`)

	var start domain.StrokeData
	require.NoError(t, json.Unmarshal(waitEvent(t, peer, dto.EventDrawStart), &start))
	assert.NotEmpty(t, start.StrokeID)
	assert.Contains(t, start.StrokeID, "conn-1")
}

func TestClearCanvasReachesEveryoneIncludingSender(t *testing.T) {
	f := newCollabFixture(t)
	f.allowRoomLoad("ABC123", []domain.DrawingCommand{})

	sender := newTestConn("conn-1")
	peer := newTestConn("conn-2")
	sender.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, sender, dto.EventRoomJoined)
	peer.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, peer, dto.EventRoomJoined)
	waitEvent(t, sender, dto.EventUserJoined)

	sender.dispatch(f.svc, `{"type":"clear-canvas"}`)

	waitEvent(t, sender, dto.EventCanvasCleared)
	waitEvent(t, peer, dto.EventCanvasCleared)

	queued := f.drainJournal()
	require.Len(t, queued, 1)
	assert.Equal(t, domain.CommandClear, queued[0].Type)
	assert.Equal(t, "ABC123", queued[0].RoomCode)
}

func TestCursorMoveBroadcastDefaultsVisible(t *testing.T) {
	f := newCollabFixture(t)
	f.allowRoomLoad("ABC123", []domain.DrawingCommand{})

	sender := newTestConn("conn-1")
	peer := newTestConn("conn-2")
	sender.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, sender, dto.EventRoomJoined)
	peer.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, peer, dto.EventRoomJoined)
	waitEvent(t, sender, dto.EventUserJoined)

	sender.dispatch(f.svc, `{"type":"cursor-move","data":{"x":40,"y":50}}`)

	var update dto.CursorUpdatePayload
	require.NoError(t, json.Unmarshal(waitEvent(t, peer, dto.EventCursorUpdate), &update))
	assert.Equal(t, "conn-1", update.UserID)
	assert.Equal(t, 40.0, update.X)
	assert.Equal(t, 50.0, update.Y)
	assert.True(t, update.Visible)
	assert.Empty(t, sender.recv)
}

func TestDisconnectNotifiesRoomOnce(t *testing.T) {
	f := newCollabFixture(t)
	f.allowRoomLoad("ABC123", []domain.DrawingCommand{})

	leaver := newTestConn("conn-1")
	peer := newTestConn("conn-2")
	leaver.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, leaver, dto.EventRoomJoined)
	peer.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, peer, dto.EventRoomJoined)
	waitEvent(t, leaver, dto.EventUserJoined)

	f.svc.Disconnect(leaver.sess)

	var left dto.UserLeftPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, peer, dto.EventUserLeft), &left))
	assert.Equal(t, "conn-1", left.UserID)
	assert.Equal(t, 1, left.UserCount)
	assert.False(t, leaver.sess.Joined())

	// Repeated disconnects from racing cleanup paths are no-ops.
	f.svc.Disconnect(leaver.sess)
	assert.Empty(t, peer.recv)
}

func TestJoinSwitchingRoomsNotifiesOldRoom(t *testing.T) {
	f := newCollabFixture(t)
	f.allowRoomLoad("OLD001", []domain.DrawingCommand{})
	f.allowRoomLoad("NEW001", []domain.DrawingCommand{})

	mover := newTestConn("conn-1")
	peer := newTestConn("conn-2")
	mover.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"OLD001"}}`)
	waitEvent(t, mover, dto.EventRoomJoined)
	peer.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"OLD001"}}`)
	waitEvent(t, peer, dto.EventRoomJoined)
	waitEvent(t, mover, dto.EventUserJoined)

	mover.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"NEW001"}}`)

	var left dto.UserLeftPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, peer, dto.EventUserLeft), &left))
	assert.Equal(t, "conn-1", left.UserID)
	assert.Equal(t, 1, left.UserCount)

	var joined dto.RoomJoinedPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, mover, dto.EventRoomJoined), &joined))
	assert.Equal(t, "NEW001", joined.RoomID)
	assert.Equal(t, "NEW001", mover.sess.RoomCode())
}

func TestJoinReplyAfterImmediateDisconnect(t *testing.T) {
	f := newCollabFixture(t)
	gate := make(chan struct{})
	f.roomRepo.On("FindByCode", mock.Anything, "ABC123").
		Run(func(mock.Arguments) { <-gate }).
		Return(&domain.Room{RoomCode: "ABC123"}, nil)
	f.cmdRepo.On("ReadAll", mock.Anything, "ABC123").Return([]domain.DrawingCommand{}, nil)

	conn := newTestConn("conn-1")
	conn.dispatch(f.svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)

	// The connection drops before the history read completes.
	f.svc.Disconnect(conn.sess)
	close(gate)

	// The deferred reply lands on the still-open channel and is discarded
	// with it; a member leaving mid-join must never take the process down.
	waitEvent(t, conn, dto.EventRoomJoined)
}

func TestSameRoomRejoinKeepsPersistedCounterFlat(t *testing.T) {
	roomRepo := new(mocks.RoomRepository)
	cmdRepo := new(mocks.CommandRepository)
	adjusted := make(chan int, 8)
	roomRepo.On("AdjustActiveUsers", mock.Anything, "ABC123", 1).
		Run(func(args mock.Arguments) { adjusted <- args.Int(2) }).
		Return(nil)
	roomRepo.On("FindByCode", mock.Anything, "ABC123").
		Return(&domain.Room{RoomCode: "ABC123"}, nil).Maybe()
	cmdRepo.On("ReadAll", mock.Anything, "ABC123").
		Return([]domain.DrawingCommand{}, nil).Maybe()

	svc := NewCollaborationService(
		registry.NewRegistry(),
		NewRoomService(roomRepo, cmdRepo),
		roomRepo,
		NewJournal(cmdRepo),
	)

	conn := newTestConn("conn-1")
	conn.dispatch(svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	select {
	case <-adjusted:
	case <-time.After(2 * time.Second):
		t.Fatal("first join never updated the persisted counter")
	}
	waitEvent(t, conn, dto.EventRoomJoined)

	conn.dispatch(svc, `{"type":"join-room","data":{"roomId":"ABC123"}}`)
	waitEvent(t, conn, dto.EventRoomJoined)

	// Membership did not change, so the counter must not be bumped again.
	select {
	case <-adjusted:
		t.Fatal("same-room rejoin bumped the persisted counter")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnknownEventTypeGetsErrorReply(t *testing.T) {
	f := newCollabFixture(t)
	conn := newTestConn("conn-1")

	conn.dispatch(f.svc, `{"type":"teleport","data":{}}`)
	var errPayload dto.ErrorPayload
	require.NoError(t, json.Unmarshal(waitEvent(t, conn, dto.EventError), &errPayload))
	assert.Contains(t, errPayload.Message, "unknown event type")

	conn.dispatch(f.svc, `not json at all`)
	require.NoError(t, json.Unmarshal(waitEvent(t, conn, dto.EventError), &errPayload))
	assert.Equal(t, ErrInvalidEvent.Error(), errPayload.Message)
}
