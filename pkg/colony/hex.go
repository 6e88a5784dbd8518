// Package colony models the hex-grid world an agent plays in: axial
// coordinates, unit and resource types, world snapshots and move commands.
package colony

import (
	"fmt"
	"math"
)

// Infinite is the distance reported when either endpoint is unknown.
const Infinite = math.MaxInt32

// Hex is an axial grid coordinate. The third cube coordinate s is derived: s = -q - r.
// Hex is comparable and is used directly as a map key.
type Hex struct {
	Q int `json:"q"`
	R int `json:"r"`
}

// S returns the implicit third cube coordinate.
func (h Hex) S() int {
	return -h.Q - h.R
}

// Add returns h offset by d.
func (h Hex) Add(d Hex) Hex {
	return Hex{Q: h.Q + d.Q, R: h.R + d.R}
}

// Scale multiplies both axial components by k.
func (h Hex) Scale(k int) Hex {
	return Hex{Q: h.Q * k, R: h.R * k}
}

func (h Hex) String() string {
	return fmt.Sprintf("(%d,%d)", h.Q, h.R)
}

// HexDirections are the six neighbor offsets in axial coordinates.
var HexDirections = [6]Hex{
	{Q: 1, R: 0},
	{Q: 1, R: -1},
	{Q: 0, R: -1},
	{Q: -1, R: 0},
	{Q: -1, R: 1},
	{Q: 0, R: 1},
}

// Neighbors returns the six adjacent coordinates.
func (h Hex) Neighbors() [6]Hex {
	var result [6]Hex
	for i, dir := range HexDirections {
		result[i] = h.Add(dir)
	}
	return result
}

// Distance returns the hex distance between two coordinates.
func Distance(a, b Hex) int {
	dq := abs(a.Q - b.Q)
	dr := abs(a.R - b.R)
	ds := abs(a.S() - b.S())
	return max(dq, dr, ds)
}

// DistancePtr is Distance for optional endpoints; a nil endpoint yields Infinite.
func DistancePtr(a, b *Hex) int {
	if a == nil || b == nil {
		return Infinite
	}
	return Distance(*a, *b)
}

// Ring returns the six axial neighbor offsets of center scaled by radius.
// For radius > 1 these are the six "corners" of the ring, not every cell on it;
// callers use them as spread-out exploration and patrol points.
func Ring(center Hex, radius int) [6]Hex {
	var result [6]Hex
	for i, dir := range HexDirections {
		result[i] = center.Add(dir.Scale(radius))
	}
	return result
}

// Disk returns every cell within radius of center, center included.
func Disk(center Hex, radius int) []Hex {
	if radius < 0 {
		return nil
	}
	cells := make([]Hex, 0, 1+3*radius*(radius+1))
	for dq := -radius; dq <= radius; dq++ {
		lo := max(-radius, -dq-radius)
		hi := min(radius, -dq+radius)
		for dr := lo; dr <= hi; dr++ {
			cells = append(cells, Hex{Q: center.Q + dq, R: center.R + dr})
		}
	}
	return cells
}

// Octant is one of eight compass sectors used to summarize directionality.
type Octant int

const (
	East Octant = iota
	NorthEast
	North
	NorthWest
	West
	SouthWest
	South
	SouthEast
)

var octantNames = [8]string{"E", "NE", "N", "NW", "W", "SW", "S", "SE"}

func (o Octant) String() string {
	if o < 0 || int(o) >= len(octantNames) {
		return "?"
	}
	return octantNames[o]
}

// MarshalText encodes the octant as its compass abbreviation so it can key JSON maps.
func (o Octant) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Direction buckets the angle from one cell to another into an Octant.
// Axial coordinates are projected onto a pointy-top plane with negative r
// pointing north. Identical cells report East.
func Direction(from, to Hex) Octant {
	dq := float64(to.Q - from.Q)
	dr := float64(to.R - from.R)
	x := dq + dr/2
	y := -dr * math.Sqrt(3) / 2
	angle := math.Atan2(y, x)
	if angle < 0 {
		angle += 2 * math.Pi
	}
	bucket := int(math.Round(angle/(math.Pi/4))) % 8
	return Octant(bucket)
}

// StepToward returns the cell one greedy step from `from` toward `to`:
// each axial delta is the sign of the remaining vector.
func StepToward(from, to Hex) Hex {
	return Hex{Q: from.Q + sign(to.Q-from.Q), R: from.R + sign(to.R-from.R)}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

func sign(x int) int {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}
