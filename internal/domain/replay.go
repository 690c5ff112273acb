package domain

// Point is one coordinate of a polyline.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Polyline is one completed stroke reconstructed from the drawing log:
// the start point plus every move point of a stroke, with the color and
// width recorded at the stroke's start.
type Polyline struct {
	StrokeID string  `json:"strokeId"`
	Color    string  `json:"color"`
	Width    float64 `json:"width"`
	Points   []Point `json:"points"`
}

// Cursor is a member's last known pointer position. Never persisted.
type Cursor struct {
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Visible bool    `json:"visible"`
}
