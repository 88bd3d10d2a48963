// Package raster implements the in-memory georeferenced grid that backs all
// raster primitives: windowing, patching, area-based reclassification and
// per-band statistics. Grids are north-up with square cells; missing data is
// tracked per cell.
package raster

import (
	"fmt"
	"math"

	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

// Grid is a single-band georeferenced raster. Cell (0,0) is the north-west
// corner. Categorical rasters store whole numbers in float64 cells.
type Grid struct {
	Extent scene.Extent

	cells []float64
	null  []bool
}

// New creates a fully-null grid covering the extent.
func New(ext scene.Extent) *Grid {
	n := ext.Rows * ext.Cols
	g := &Grid{
		Extent: ext,
		cells:  make([]float64, n),
		null:   make([]bool, n),
	}
	for i := range g.null {
		g.null[i] = true
	}
	return g
}

// NewFilled creates a grid covering the extent with every cell set to value.
func NewFilled(ext scene.Extent, value float64) *Grid {
	n := ext.Rows * ext.Cols
	return &Grid{
		Extent: ext,
		cells:  fill(make([]float64, n), value),
		null:   make([]bool, n),
	}
}

func fill(s []float64, v float64) []float64 {
	for i := range s {
		s[i] = v
	}
	return s
}

// Rows returns the number of cell rows.
func (g *Grid) Rows() int { return g.Extent.Rows }

// Cols returns the number of cell columns.
func (g *Grid) Cols() int { return g.Extent.Cols }

// Res returns the cell resolution in map units.
func (g *Grid) Res() float64 { return g.Extent.Res }

func (g *Grid) idx(row, col int) int { return row*g.Extent.Cols + col }

func (g *Grid) inGrid(row, col int) bool {
	return row >= 0 && row < g.Extent.Rows && col >= 0 && col < g.Extent.Cols
}

// Value returns the cell value and whether it holds data.
func (g *Grid) Value(row, col int) (float64, bool) {
	if !g.inGrid(row, col) {
		return 0, false
	}
	i := g.idx(row, col)
	if g.null[i] {
		return 0, false
	}
	return g.cells[i], true
}

// Set assigns a cell value and clears its null flag.
func (g *Grid) Set(row, col int, v float64) {
	if !g.inGrid(row, col) {
		return
	}
	i := g.idx(row, col)
	g.cells[i] = v
	g.null[i] = false
}

// SetNull marks a cell as missing data.
func (g *Grid) SetNull(row, col int) {
	if !g.inGrid(row, col) {
		return
	}
	g.null[g.idx(row, col)] = true
}

// Clone returns a deep copy of the grid.
func (g *Grid) Clone() *Grid {
	c := &Grid{
		Extent: g.Extent,
		cells:  make([]float64, len(g.cells)),
		null:   make([]bool, len(g.null)),
	}
	copy(c.cells, g.cells)
	copy(c.null, g.null)
	return c
}

// CellCenter returns the map coordinates of a cell center.
func (g *Grid) CellCenter(row, col int) geometry.Point2D {
	return geometry.Point2D{
		X: g.Extent.Bounds.West + (float64(col)+0.5)*g.Extent.Res,
		Y: g.Extent.Bounds.North - (float64(row)+0.5)*g.Extent.Res,
	}
}

// CellAt returns the row/column of the cell containing a map point. The
// returned cell may lie outside the grid.
func (g *Grid) CellAt(p geometry.Point2D) (row, col int) {
	col = int(math.Floor((p.X - g.Extent.Bounds.West) / g.Extent.Res))
	row = int(math.Floor((g.Extent.Bounds.North - p.Y) / g.Extent.Res))
	return row, col
}

// Source is anything raster data can be sampled from by map coordinates.
// Sampling a point outside the source, or one holding no data, reports false.
type Source interface {
	Sample(p geometry.Point2D) (float64, bool)
	SourceBounds() geometry.Bounds
}

// Sample implements Source by nearest-cell lookup.
func (g *Grid) Sample(p geometry.Point2D) (float64, bool) {
	row, col := g.CellAt(p)
	return g.Value(row, col)
}

// SourceBounds implements Source.
func (g *Grid) SourceBounds() geometry.Bounds { return g.Extent.Bounds }

// Window resamples a source onto the cell lattice of a region. Cells with no
// source coverage stay null. The region resolution must match the source
// lattice for exact windowing; this is the g.region analog.
func Window(src Source, reg scene.Region) (*Grid, error) {
	ext, err := scene.NewExtent(reg.Bounds, reg.Res)
	if err != nil {
		return nil, fmt.Errorf("window: %w", err)
	}
	out := New(ext)
	for row := 0; row < ext.Rows; row++ {
		for col := 0; col < ext.Cols; col++ {
			if v, ok := src.Sample(out.CellCenter(row, col)); ok {
				out.Set(row, col, v)
			}
		}
	}
	return out, nil
}

// NullCells counts the cells holding no data.
func (g *Grid) NullCells() int {
	n := 0
	for _, isNull := range g.null {
		if isNull {
			n++
		}
	}
	return n
}

// MapEach applies fn to every data cell in place.
func (g *Grid) MapEach(fn func(v float64) float64) {
	for i := range g.cells {
		if !g.null[i] {
			g.cells[i] = fn(g.cells[i])
		}
	}
}

// FillNull assigns value to every null cell and clears the null flags.
func (g *Grid) FillNull(value float64) {
	for i := range g.null {
		if g.null[i] {
			g.cells[i] = value
			g.null[i] = false
		}
	}
}

// DataValues returns all non-null cell values. The slice is freshly
// allocated.
func (g *Grid) DataValues() []float64 {
	vals := make([]float64, 0, len(g.cells))
	for i, v := range g.cells {
		if !g.null[i] {
			vals = append(vals, v)
		}
	}
	return vals
}
