package service

import (
	"github.com/sirupsen/logrus"

	"collaborative-canvas/internal/domain"
)

// ReplayService reconstructs the drawing operations a fresh canvas must
// execute to reach a room's current visual state from its command log.
type ReplayService struct{}

// NewReplayService creates a ReplayService.
func NewReplayService() *ReplayService {
	return &ReplayService{}
}

type pendingStroke struct {
	color  string
	width  float64
	points []domain.Point
}

// Replay scans the log in arrival order and emits one polyline per
// completed stroke: the start point plus every move point, with the color
// and width recorded at the start. A clear command discards everything
// accumulated before it; strokes after the clear survive. A move or end
// for an unknown strokeId is skipped, not an error — usually truncated
// history from a swallowed persistence failure.
//
// Polylines are emitted in end-completion order, not start order. When
// strokes overlap, that is the stacking order the room saw live, so it
// must be preserved.
func (s *ReplayService) Replay(commands []domain.DrawingCommand) []domain.Polyline {
	pending := make(map[string]*pendingStroke)
	out := make([]domain.Polyline, 0)

	for _, cmd := range commands {
		if cmd.Type == domain.CommandClear {
			pending = make(map[string]*pendingStroke)
			out = out[:0]
			continue
		}
		if cmd.Type != domain.CommandStroke {
			continue
		}
		data, err := cmd.ParseStroke()
		if err != nil {
			logrus.WithField("room", cmd.RoomCode).WithError(err).Warn("Replay: skipping malformed stroke command")
			continue
		}
		switch data.Action {
		case domain.StrokeStart:
			pending[data.StrokeID] = &pendingStroke{
				color:  data.Color,
				width:  data.Width,
				points: []domain.Point{{X: data.X, Y: data.Y}},
			}
		case domain.StrokeMove:
			if st, ok := pending[data.StrokeID]; ok {
				st.points = append(st.points, domain.Point{X: data.X, Y: data.Y})
			}
		case domain.StrokeEnd:
			st, ok := pending[data.StrokeID]
			if !ok {
				continue
			}
			delete(pending, data.StrokeID)
			out = append(out, domain.Polyline{
				StrokeID: data.StrokeID,
				Color:    st.color,
				Width:    st.width,
				Points:   st.points,
			})
		}
	}
	return out
}
