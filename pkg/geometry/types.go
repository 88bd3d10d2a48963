// Package geometry provides basic planar types used throughout the application.
package geometry

import (
	"math"
)

// Point2D represents a 2D point with floating-point map coordinates.
type Point2D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NewPoint2D creates a new Point2D.
func NewPoint2D(x, y float64) Point2D {
	return Point2D{X: x, Y: y}
}

// Distance returns the Euclidean distance to another point.
func (p Point2D) Distance(other Point2D) float64 {
	dx := p.X - other.X
	dy := p.Y - other.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// Add returns the sum of two points.
func (p Point2D) Add(other Point2D) Point2D {
	return Point2D{X: p.X + other.X, Y: p.Y + other.Y}
}

// Sub returns the difference of two points.
func (p Point2D) Sub(other Point2D) Point2D {
	return Point2D{X: p.X - other.X, Y: p.Y - other.Y}
}

// Scale returns the point scaled by a factor.
func (p Point2D) Scale(factor float64) Point2D {
	return Point2D{X: p.X * factor, Y: p.Y * factor}
}

// Bounds represents a north-up rectangular extent in map units.
// North > South and East > West for any non-degenerate bounds.
type Bounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

// NewBounds creates bounds from the four edges.
func NewBounds(n, s, e, w float64) Bounds {
	return Bounds{North: n, South: s, East: e, West: w}
}

// Width returns the east-west extent in map units.
func (b Bounds) Width() float64 {
	return b.East - b.West
}

// Height returns the north-south extent in map units.
func (b Bounds) Height() float64 {
	return b.North - b.South
}

// IsValid returns true if the bounds span a positive area.
func (b Bounds) IsValid() bool {
	return b.North > b.South && b.East > b.West
}

// Shrink returns the bounds moved inward by d map units on all four sides.
func (b Bounds) Shrink(d float64) Bounds {
	return Bounds{
		North: b.North - d,
		South: b.South + d,
		East:  b.East - d,
		West:  b.West + d,
	}
}

// Grow returns the bounds moved outward by d map units on all four sides.
func (b Bounds) Grow(d float64) Bounds {
	return b.Shrink(-d)
}

// Intersects returns true if this bounds overlaps another by a positive area.
func (b Bounds) Intersects(other Bounds) bool {
	return b.West < other.East && b.East > other.West &&
		b.South < other.North && b.North > other.South
}

// Intersect returns the overlapping bounds, which may be invalid if the two
// bounds are disjoint.
func (b Bounds) Intersect(other Bounds) Bounds {
	return Bounds{
		North: math.Min(b.North, other.North),
		South: math.Max(b.South, other.South),
		East:  math.Min(b.East, other.East),
		West:  math.Max(b.West, other.West),
	}
}

// Union returns the smallest bounds containing both.
func (b Bounds) Union(other Bounds) Bounds {
	return Bounds{
		North: math.Max(b.North, other.North),
		South: math.Min(b.South, other.South),
		East:  math.Max(b.East, other.East),
		West:  math.Min(b.West, other.West),
	}
}

// Contains returns true if the point lies inside or on the bounds.
func (b Bounds) Contains(p Point2D) bool {
	return p.X >= b.West && p.X <= b.East &&
		p.Y >= b.South && p.Y <= b.North
}

// Ring returns the closed polygon ring of the bounds as [x y] pairs, starting
// at the north-west corner and running clockwise.
func (b Bounds) Ring() [][]float64 {
	return [][]float64{
		{b.West, b.North},
		{b.East, b.North},
		{b.East, b.South},
		{b.West, b.South},
		{b.West, b.North},
	}
}

// CellRect represents a rectangle in whole cells (grid coordinates).
type CellRect struct {
	Row  int `json:"row"`
	Col  int `json:"col"`
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Empty returns true if the rectangle covers no cells.
func (r CellRect) Empty() bool {
	return r.Rows <= 0 || r.Cols <= 0
}

// Intersect returns the overlapping cell rectangle, which may be empty.
func (r CellRect) Intersect(other CellRect) CellRect {
	row := max(r.Row, other.Row)
	col := max(r.Col, other.Col)
	rowEnd := min(r.Row+r.Rows, other.Row+other.Rows)
	colEnd := min(r.Col+r.Cols, other.Col+other.Cols)
	return CellRect{Row: row, Col: col, Rows: rowEnd - row, Cols: colEnd - col}
}
