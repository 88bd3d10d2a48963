package raster

import (
	"fmt"

	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

// Mosaic is a virtual, read-only composite over several sources. Nothing is
// copied: sampling walks the sources in order and returns the first data
// value, so a mosaic over untrimmed tiles costs no memory beyond the tiles
// themselves. This is the virtual-raster fallback used when border tile
// edges must be preserved.
type Mosaic struct {
	sources []Source
}

// NewMosaic builds a mosaic over the given sources.
func NewMosaic(sources ...Source) *Mosaic {
	return &Mosaic{sources: sources}
}

// Sample implements Source: first source with data wins.
func (m *Mosaic) Sample(p geometry.Point2D) (float64, bool) {
	for _, s := range m.sources {
		if v, ok := s.Sample(p); ok {
			return v, true
		}
	}
	return 0, false
}

// SourceBounds implements Source: the union of all source bounds.
func (m *Mosaic) SourceBounds() geometry.Bounds {
	if len(m.sources) == 0 {
		return geometry.Bounds{}
	}
	b := m.sources[0].SourceBounds()
	for _, s := range m.sources[1:] {
		b = b.Union(s.SourceBounds())
	}
	return b
}

// UnionBounds returns the smallest bounds covering all sources.
func UnionBounds(sources ...Source) (geometry.Bounds, error) {
	if len(sources) == 0 {
		return geometry.Bounds{}, fmt.Errorf("patch: no input rasters")
	}
	b := sources[0].SourceBounds()
	for _, s := range sources[1:] {
		b = b.Union(s.SourceBounds())
	}
	return b, nil
}

// Patch composites sources onto the cell lattice of a region, first data
// value winning per cell. For sources whose footprints do not overlap the
// result is independent of input order.
func Patch(reg scene.Region, sources ...Source) (*Grid, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("patch: no input rasters")
	}
	return Window(NewMosaic(sources...), reg)
}
