// Package export writes per-tile training and apply data: the image band
// stack, the normalized height model, and the clipped label layer.
package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/twpayne/go-geos"

	"tileprep/internal/grid"
	"tileprep/internal/raster"
	"tileprep/internal/segment"
	"tileprep/internal/vectorize"
	"tileprep/internal/workspace"
)

// Height model normalization: values are clamped to this range and rescaled
// onto the 8-bit output. The scale tops out one below the byte range because
// 255 is the nodata marker of the TIFF writer; a cell at the clamp ceiling
// must stay distinguishable from a missing one.
const (
	ndsmMin = 0.0
	ndsmMax = 30.0
	ndsmOut = 254.0
)

// Inputs names the scene-wide data an export batch reads from.
type Inputs struct {
	// Bands are the image bands, stacked in output order.
	Bands []raster.Source
	// DSM and DTM derive the height model; both nil skips it.
	DSM raster.Source
	DTM raster.Source
	// Labels is the scene-wide reference layer, nil for apply-only runs.
	Labels *vectorize.FeatureCollection
	// SegmentFallback derives labels by unsupervised segmentation of the
	// image bands when no reference layer is given.
	SegmentFallback bool
	// EPSG tags vector outputs.
	EPSG string
	// OutputDir receives the per-tile files.
	OutputDir string
}

// Task exports one tile. It satisfies dispatch.Task.
type Task struct {
	Tile   grid.TileDescriptor
	Inputs Inputs
}

// ID returns the tile identifier.
func (t *Task) ID() string { return t.Tile.ID }

// Run windows every input to the tile, derives the height model, clips the
// labels and writes the tile's files into the output directory.
func (t *Task) Run(ws *workspace.Workspace) (string, []string, error) {
	ws.Region = ws.Region.SetBounds(t.Tile.Bounds)
	if err := os.MkdirAll(t.Inputs.OutputDir, 0755); err != nil {
		return "", nil, fmt.Errorf("create output dir: %w", err)
	}

	var warnings []string

	bands := make([]*raster.Grid, 0, len(t.Inputs.Bands))
	for i, src := range t.Inputs.Bands {
		g, err := raster.Window(src, ws.Region)
		if err != nil {
			return "", nil, fmt.Errorf("band %d tile %s: %w", i, t.Tile.ID, err)
		}
		bands = append(bands, g)
	}
	imagePath := filepath.Join(t.Inputs.OutputDir, "image_"+t.Tile.Name+".tif")
	if err := raster.WriteStackTIFF(bands, imagePath); err != nil {
		return "", nil, fmt.Errorf("write image tile %s: %w", t.Tile.ID, err)
	}
	out := fmt.Sprintf("exported %s\n", imagePath)

	if t.Inputs.DSM != nil && t.Inputs.DTM != nil {
		ndsm, err := heightModel(t.Inputs.DSM, t.Inputs.DTM, ws)
		if err != nil {
			return out, warnings, fmt.Errorf("height model tile %s: %w", t.Tile.ID, err)
		}
		ndsmPath := filepath.Join(t.Inputs.OutputDir, "ndsm_"+t.Tile.Name+".tif")
		if err := raster.WriteTIFF(ndsm, ndsmPath); err != nil {
			return out, warnings, fmt.Errorf("write height model tile %s: %w", t.Tile.ID, err)
		}
		out += fmt.Sprintf("exported %s\n", ndsmPath)
	}

	var labels *vectorize.FeatureCollection
	switch {
	case t.Inputs.Labels != nil:
		var warn string
		labels, warn = clipLabels(t.Inputs.Labels, t.Tile)
		if warn != "" {
			warnings = append(warnings, warn)
		}
	case t.Inputs.SegmentFallback:
		var err error
		labels, err = segmentLabels(bands)
		if err != nil {
			return out, warnings, fmt.Errorf("segment tile %s: %w", t.Tile.ID, err)
		}
		warnings = append(warnings, fmt.Sprintf("tile %s labeled by unsupervised segmentation", t.Tile.ID))
	}
	if labels != nil {
		labelPath := filepath.Join(t.Inputs.OutputDir, "label_"+t.Tile.Name+".geojson")
		if err := labels.WriteGeoJSON(labelPath, t.Inputs.EPSG); err != nil {
			return out, warnings, fmt.Errorf("write labels tile %s: %w", t.Tile.ID, err)
		}
		out += fmt.Sprintf("exported %s\n", labelPath)
	}

	return out, warnings, nil
}

// heightModel computes DSM minus DTM over the workspace window, clamps the
// difference to the vegetation-relevant range and rescales it to 8 bit.
func heightModel(dsm, dtm raster.Source, ws *workspace.Workspace) (*raster.Grid, error) {
	top, err := raster.Window(dsm, ws.Region)
	if err != nil {
		return nil, fmt.Errorf("surface model: %w", err)
	}
	ground, err := raster.Window(dtm, ws.Region)
	if err != nil {
		return nil, fmt.Errorf("terrain model: %w", err)
	}
	diff := top.Clone()
	for row := 0; row < diff.Extent.Rows; row++ {
		for col := 0; col < diff.Extent.Cols; col++ {
			a, okA := top.Value(row, col)
			b, okB := ground.Value(row, col)
			if okA && okB {
				diff.Set(row, col, a-b)
			} else {
				diff.SetNull(row, col)
			}
		}
	}
	return diff.Normalize(ndsmMin, ndsmMax, ndsmOut), nil
}

// clipLabels intersects every label feature with the tile bounds. Features
// falling outside the tile are dropped. A tile with no labels at all yields
// an empty collection plus a warning, which downstream treats as all
// background.
func clipLabels(labels *vectorize.FeatureCollection, tile grid.TileDescriptor) (*vectorize.FeatureCollection, string) {
	tilePoly := geos.NewPolygon([][][]float64{tile.Bounds.Ring()})
	out := &vectorize.FeatureCollection{}
	for _, f := range labels.Features {
		if !f.Geom.Intersects(tilePoly) {
			continue
		}
		clip := f.Geom.Intersection(tilePoly)
		if clip == nil || clip.IsEmpty() {
			continue
		}
		attrs := make(map[string]any, len(f.Attrs))
		for k, v := range f.Attrs {
			attrs[k] = v
		}
		out.Features = append(out.Features, &vectorize.Feature{Geom: clip, Attrs: attrs})
	}
	var warn string
	if len(out.Features) == 0 {
		warn = fmt.Sprintf("tile %s has no class labels, treating it as background only", tile.ID)
	}
	return out, warn
}

// segmentLabels derives a stand-in label layer by clustering the image
// bands. The resulting polygons carry class number zero so downstream
// labeling can tell them from curated references.
func segmentLabels(bands []*raster.Grid) (*vectorize.FeatureCollection, error) {
	classes, err := segment.Classify(bands, segment.DefaultOptions())
	if err != nil {
		return nil, err
	}
	fc, err := vectorize.Vectorize(classes)
	if err != nil {
		return nil, err
	}
	for _, f := range fc.Features {
		f.SetClass(0)
	}
	return fc, nil
}

// CopyStyle copies the layer style template verbatim next to an exported
// vector layer.
func CopyStyle(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read style template: %w", err)
	}
	if err := os.WriteFile(dst, data, 0644); err != nil {
		return fmt.Errorf("write style: %w", err)
	}
	return nil
}
