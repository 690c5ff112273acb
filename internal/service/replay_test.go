package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-canvas/internal/domain"
)

func strokeCmd(t *testing.T, room string, data domain.StrokeData) domain.DrawingCommand {
	t.Helper()
	cmd := domain.DrawingCommand{RoomCode: room, Timestamp: time.Now().UTC()}
	require.NoError(t, cmd.SetStroke(data))
	return cmd
}

func TestReplaySingleStroke(t *testing.T) {
	svc := NewReplayService()
	commands := []domain.DrawingCommand{
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 1, Y: 2, Color: "#ff0000", Width: 3, StrokeID: "s1"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeMove, X: 4, Y: 5, StrokeID: "s1"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeMove, X: 6, Y: 7, StrokeID: "s1"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "s1"}),
	}

	lines := svc.Replay(commands)

	require.Len(t, lines, 1)
	assert.Equal(t, "s1", lines[0].StrokeID)
	assert.Equal(t, "#ff0000", lines[0].Color)
	assert.Equal(t, 3.0, lines[0].Width)
	assert.Equal(t, []domain.Point{{X: 1, Y: 2}, {X: 4, Y: 5}, {X: 6, Y: 7}}, lines[0].Points)
}

func TestReplayUnfinishedStrokeOmitted(t *testing.T) {
	svc := NewReplayService()
	commands := []domain.DrawingCommand{
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 1, Y: 1, Color: "#000", Width: 2, StrokeID: "s1"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeMove, X: 2, Y: 2, StrokeID: "s1"}),
	}

	assert.Empty(t, svc.Replay(commands))
}

func TestReplayClearDiscardsEarlierStrokes(t *testing.T) {
	svc := NewReplayService()
	commands := []domain.DrawingCommand{
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 1, Y: 1, Color: "#000", Width: 2, StrokeID: "old"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "old"}),
		// An in-flight stroke at clear time must not survive either.
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 5, Y: 5, Color: "#fff", Width: 1, StrokeID: "pending"}),
		domain.NewClearCommand("ROOM01"),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "pending"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 9, Y: 9, Color: "#00ff00", Width: 4, StrokeID: "new"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "new"}),
	}

	lines := svc.Replay(commands)

	require.Len(t, lines, 1)
	assert.Equal(t, "new", lines[0].StrokeID)
	assert.Equal(t, []domain.Point{{X: 9, Y: 9}}, lines[0].Points)
}

func TestReplayStrayEventsSkipped(t *testing.T) {
	svc := NewReplayService()
	commands := []domain.DrawingCommand{
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeMove, X: 3, Y: 3, StrokeID: "ghost"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "ghost"}),
		{RoomCode: "ROOM01", Type: domain.CommandStroke, Data: "{not json", Timestamp: time.Now().UTC()},
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 1, Y: 1, Color: "#000", Width: 2, StrokeID: "s1"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "s1"}),
	}

	lines := svc.Replay(commands)

	require.Len(t, lines, 1)
	assert.Equal(t, "s1", lines[0].StrokeID)
}

func TestReplayOverlappingStrokesKeepCompletionOrder(t *testing.T) {
	svc := NewReplayService()
	commands := []domain.DrawingCommand{
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 0, Y: 0, Color: "#111", Width: 1, StrokeID: "a"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeStart, X: 10, Y: 10, Color: "#222", Width: 2, StrokeID: "b"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeMove, X: 1, Y: 1, StrokeID: "a"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "b"}),
		strokeCmd(t, "ROOM01", domain.StrokeData{Action: domain.StrokeEnd, StrokeID: "a"}),
	}

	lines := svc.Replay(commands)

	// b finished first, so it sits below a on the reconstructed canvas.
	require.Len(t, lines, 2)
	assert.Equal(t, "b", lines[0].StrokeID)
	assert.Equal(t, "a", lines[1].StrokeID)
	assert.Equal(t, []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, lines[1].Points)
}

func TestReplayEmptyLog(t *testing.T) {
	svc := NewReplayService()
	lines := svc.Replay(nil)
	assert.NotNil(t, lines)
	assert.Empty(t, lines)
}
