package valueobjects

import "math"

// Position is a canvas coordinate of a node's top-left corner
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// DistanceTo returns the euclidean distance between two positions
func (p Position) DistanceTo(other Position) float64 {
	return math.Hypot(p.X-other.X, p.Y-other.Y)
}

// Dimensions are explicit render dimensions recorded after a resize
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether no dimension has been recorded
func (d Dimensions) IsZero() bool {
	return d.Width == 0 && d.Height == 0
}

// Merge overlays the non-zero fields of other on d
func (d Dimensions) Merge(other Dimensions) Dimensions {
	if other.Width > 0 {
		d.Width = other.Width
	}
	if other.Height > 0 {
		d.Height = other.Height
	}
	return d
}
