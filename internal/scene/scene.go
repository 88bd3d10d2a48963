// Package scene describes the extent and processing window of a geospatial
// scene. An Extent is immutable once read from the source raster; a Region is
// the mutable window that raster operations act on, mirroring the region
// algebra of the underlying geospatial engine.
package scene

import (
	"fmt"
	"math"

	"tileprep/pkg/geometry"
)

// Extent is the full georeferenced footprint of a scene: bounds, square cell
// resolution and the derived row/column counts.
type Extent struct {
	Bounds geometry.Bounds
	Res    float64
	Rows   int
	Cols   int
}

// NewExtent derives an extent from bounds and resolution. Row and column
// counts are rounded to whole cells.
func NewExtent(b geometry.Bounds, res float64) (Extent, error) {
	if res <= 0 {
		return Extent{}, fmt.Errorf("resolution must be positive, got %g", res)
	}
	if !b.IsValid() {
		return Extent{}, fmt.Errorf("invalid bounds: n=%g s=%g e=%g w=%g",
			b.North, b.South, b.East, b.West)
	}
	return Extent{
		Bounds: b,
		Res:    res,
		Rows:   int(math.Round(b.Height() / res)),
		Cols:   int(math.Round(b.Width() / res)),
	}, nil
}

// CellArea returns the ground area of one cell in map units squared.
func (e Extent) CellArea() float64 {
	return e.Res * e.Res
}

// Region is a processing window over a scene. Operations that change the
// window return the modified region by value, so a region held by one task
// can never leak into another.
type Region struct {
	Bounds geometry.Bounds
	Res    float64
}

// FromExtent creates a region covering a whole extent.
func FromExtent(e Extent) Region {
	return Region{Bounds: e.Bounds, Res: e.Res}
}

// SetBounds returns the region moved to new bounds, keeping the resolution.
func (r Region) SetBounds(b geometry.Bounds) Region {
	return Region{Bounds: b, Res: r.Res}
}

// ShrinkBy returns the region shrunk inward by d map units on all sides.
func (r Region) ShrinkBy(d float64) Region {
	return Region{Bounds: r.Bounds.Shrink(d), Res: r.Res}
}

// GrowBy returns the region grown outward by d map units on all sides.
func (r Region) GrowBy(d float64) Region {
	return Region{Bounds: r.Bounds.Grow(d), Res: r.Res}
}

// AlignTo snaps the region edges outward onto the cell lattice of an extent,
// so that the region covers whole cells of that extent.
func (r Region) AlignTo(e Extent) Region {
	west := e.Bounds.West + math.Floor((r.Bounds.West-e.Bounds.West)/e.Res)*e.Res
	east := e.Bounds.West + math.Ceil((r.Bounds.East-e.Bounds.West)/e.Res)*e.Res
	south := e.Bounds.North - math.Ceil((e.Bounds.North-r.Bounds.South)/e.Res)*e.Res
	north := e.Bounds.North - math.Floor((e.Bounds.North-r.Bounds.North)/e.Res)*e.Res
	return Region{
		Bounds: geometry.Bounds{North: north, South: south, East: east, West: west},
		Res:    e.Res,
	}
}

// RowsCols returns the whole-cell dimensions of the region.
func (r Region) RowsCols() (rows, cols int) {
	rows = int(math.Round(r.Bounds.Height() / r.Res))
	cols = int(math.Round(r.Bounds.Width() / r.Res))
	return rows, cols
}

// Equal reports whether two regions describe the same window. Bounds are
// compared with a half-cell tolerance so float drift does not flag a
// legitimately restored region as corrupted.
func (r Region) Equal(other Region) bool {
	if r.Res != other.Res {
		return false
	}
	tol := r.Res / 2
	return math.Abs(r.Bounds.North-other.Bounds.North) < tol &&
		math.Abs(r.Bounds.South-other.Bounds.South) < tol &&
		math.Abs(r.Bounds.East-other.Bounds.East) < tol &&
		math.Abs(r.Bounds.West-other.Bounds.West) < tol
}

func (r Region) String() string {
	return fmt.Sprintf("region n=%g s=%g e=%g w=%g res=%g",
		r.Bounds.North, r.Bounds.South, r.Bounds.East, r.Bounds.West, r.Res)
}
