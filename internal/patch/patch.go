// Package patch merges per-tile classification results back into one scene
// raster. Tile edges are unreliable, so each tile is trimmed by an edge cut
// before merging; the overlap between neighbors fills the gaps. Scene
// borders have no neighbor to fill from, so they can optionally be preserved
// from the untrimmed tiles.
package patch

import (
	"fmt"

	"tileprep/internal/raster"
	"tileprep/internal/scene"
)

// Options controls tile patching.
type Options struct {
	// EdgeCutCells is the trim width per tile side, in cells. Zero trims
	// nothing.
	EdgeCutCells int
	// AreaThreshold removes small clumps from each tile before trimming,
	// in map units squared. Zero disables removal.
	AreaThreshold float64
	// PreserveBorders fills scene-boundary pixels from the untrimmed
	// tiles instead of leaving them null.
	PreserveBorders bool
}

// DefaultOptions returns the patching defaults.
func DefaultOptions() Options {
	return Options{EdgeCutCells: 0, AreaThreshold: 0.0005}
}

// Merge trims every tile and patches the results into one raster covering
// the union of the trimmed extents. Tiles with disjoint cores contribute
// independently, so the merge order does not affect the result.
func Merge(tiles []*raster.Grid, opts Options) (*raster.Grid, error) {
	if len(tiles) == 0 {
		return nil, fmt.Errorf("no tiles to merge")
	}

	trimmed := make([]raster.Source, 0, len(tiles))
	for i, t := range tiles {
		cut := float64(opts.EdgeCutCells) * t.Extent.Res
		g := t
		if opts.AreaThreshold > 0 {
			g = g.RemoveSmallAreas(opts.AreaThreshold)
		}
		if cut > 0 {
			reg := scene.Region{Bounds: g.Extent.Bounds, Res: g.Extent.Res}.ShrinkBy(cut)
			if !reg.Bounds.IsValid() {
				return nil, fmt.Errorf("tile %d smaller than twice the edge cut", i)
			}
			core, err := raster.Window(g, reg)
			if err != nil {
				return nil, fmt.Errorf("trim tile %d: %w", i, err)
			}
			g = core
		}
		trimmed = append(trimmed, g)
	}

	mergeBounds, err := raster.UnionBounds(trimmed...)
	if err != nil {
		return nil, fmt.Errorf("merge bounds: %w", err)
	}
	res := tiles[0].Extent.Res
	mergeReg := scene.Region{Bounds: mergeBounds, Res: res}

	merged, err := raster.Patch(mergeReg, trimmed...)
	if err != nil {
		return nil, fmt.Errorf("patch tiles: %w", err)
	}
	if !opts.PreserveBorders || opts.EdgeCutCells == 0 {
		return merged, nil
	}

	// Grow the window back over the cut and lay the merged core over a
	// virtual mosaic of the untrimmed tiles. Only pixels the core does not
	// cover, the scene border, fall through to the mosaic.
	cut := float64(opts.EdgeCutCells) * res
	fullReg := mergeReg.GrowBy(cut)
	full := make([]raster.Source, 0, len(tiles)+1)
	full = append(full, merged)
	for _, t := range tiles {
		full = append(full, t)
	}
	restored, err := raster.Patch(fullReg, full...)
	if err != nil {
		return nil, fmt.Errorf("restore borders: %w", err)
	}
	return restored, nil
}
