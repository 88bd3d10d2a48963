package raster

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Univar holds per-band summary statistics, the r.univar analog used for
// null-cell probing and the index verification dump.
type Univar struct {
	Cells     int
	NullCells int
	Min       float64
	Max       float64
	Mean      float64
	StdDev    float64
}

// Stats computes summary statistics over the grid's data cells.
func (g *Grid) Stats() Univar {
	u := Univar{
		Cells:     g.Rows() * g.Cols(),
		NullCells: g.NullCells(),
	}
	vals := g.DataValues()
	if len(vals) == 0 {
		return u
	}
	u.Min = floats.Min(vals)
	u.Max = floats.Max(vals)
	u.Mean, u.StdDev = stat.MeanStdDev(vals, nil)
	return u
}

func (u Univar) String() string {
	return fmt.Sprintf("cells=%d null_cells=%d min=%g max=%g mean=%g stddev=%g",
		u.Cells, u.NullCells, u.Min, u.Max, u.Mean, u.StdDev)
}

// Normalize clamps every data cell to [lo, hi] and rescales the result to
// [0, outMax]. This is the nDSM preparation step: heights are cut to a fixed
// range and stretched to byte range for the network input.
func (g *Grid) Normalize(lo, hi, outMax float64) *Grid {
	out := g.Clone()
	if hi <= lo {
		return out
	}
	out.MapEach(func(v float64) float64 {
		clamped := min(max(v, lo), hi)
		return float64(int((clamped - lo) / (hi - lo) * outMax))
	})
	return out
}
