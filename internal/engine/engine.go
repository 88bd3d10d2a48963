// Package engine abstracts the geoprocessing operations the pipeline needs
// behind one narrow interface, so the commands do not care whether the
// in-memory grid or an external system performs them.
package engine

import (
	"tileprep/internal/raster"
	"tileprep/internal/scene"
	"tileprep/internal/vectorize"
)

// GeoEngine is the geoprocessing surface used by the pipeline commands.
type GeoEngine interface {
	// Window resamples a source onto a region.
	Window(src raster.Source, reg scene.Region) (*raster.Grid, error)
	// Patch composites sources over a region, first data wins.
	Patch(reg scene.Region, sources ...raster.Source) (*raster.Grid, error)
	// RemoveSmallAreas absorbs clumps below the area threshold.
	RemoveSmallAreas(g *raster.Grid, threshold float64) *raster.Grid
	// Reconcile turns a patched class raster into a clean vector layer.
	Reconcile(g *raster.Grid, opts vectorize.Options) (*vectorize.FeatureCollection, error)
}

// Native implements GeoEngine on the in-memory grid and GEOS.
type Native struct{}

// NewNative returns the built-in engine.
func NewNative() *Native { return &Native{} }

func (*Native) Window(src raster.Source, reg scene.Region) (*raster.Grid, error) {
	return raster.Window(src, reg)
}

func (*Native) Patch(reg scene.Region, sources ...raster.Source) (*raster.Grid, error) {
	return raster.Patch(reg, sources...)
}

func (*Native) RemoveSmallAreas(g *raster.Grid, threshold float64) *raster.Grid {
	return g.RemoveSmallAreas(threshold)
}

func (*Native) Reconcile(g *raster.Grid, opts vectorize.Options) (*vectorize.FeatureCollection, error) {
	return vectorize.Reconcile(g, opts)
}
