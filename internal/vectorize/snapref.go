package vectorize

import (
	"fmt"

	"github.com/twpayne/go-geos"

	"tileprep/pkg/geometry"
)

// DummyClass marks areas not covered by the reference layer so they survive
// the overlay with an identifiable class value.
const DummyClass = 9999

// SnapOptions configures reference snapping.
type SnapOptions struct {
	// InsideThreshold drops classified slivers inside reference regions
	// below this area.
	InsideThreshold float64
	// OutsideThreshold drops slivers outside reference coverage below
	// this area.
	OutsideThreshold float64
}

// SnapToReference aligns a cleaned classification with a reference layer:
// the classification is overlaid with the dissolved reference coverage,
// areas the reference does not cover are marked with a dummy class, slivers
// on either side are removed by their own thresholds, and the result is
// dissolved by class and clipped to the scene region.
func SnapToReference(classified, reference *FeatureCollection, region geometry.Bounds, opts SnapOptions) (*FeatureCollection, error) {
	refGeoms := make([]*geos.Geom, 0, len(reference.Features))
	for _, f := range reference.Features {
		refGeoms = append(refGeoms, f.Geom)
	}
	coverage, err := CascadedUnion(refGeoms)
	if err != nil {
		return nil, fmt.Errorf("reference coverage: %w", err)
	}

	overlaid := &FeatureCollection{}
	for _, f := range classified.Features {
		inside := f.Geom.Intersection(coverage)
		if inside != nil && !inside.IsEmpty() {
			nf := &Feature{Geom: inside, Attrs: map[string]any{"a_" + ClassColumn: f.Class()}}
			overlaid.Features = append(overlaid.Features, nf)
		}
		outside := f.Geom.Difference(coverage)
		if outside != nil && !outside.IsEmpty() {
			nf := &Feature{Geom: outside, Attrs: map[string]any{
				"a_" + ClassColumn: DummyClass,
				"b_" + ClassColumn: f.Class(),
			}}
			overlaid.Features = append(overlaid.Features, nf)
		}
	}
	overlaid.CleanColumns()

	filtered := &FeatureCollection{}
	for _, f := range overlaid.Features {
		threshold := opts.InsideThreshold
		if f.Class() == DummyClass {
			threshold = opts.OutsideThreshold
		}
		kept := dropSmallParts(f.Geom, threshold)
		if kept == nil || kept.IsEmpty() {
			continue
		}
		filtered.Features = append(filtered.Features, &Feature{Geom: kept, Attrs: f.Attrs})
	}

	dissolved, err := Dissolve(filtered)
	if err != nil {
		return nil, fmt.Errorf("dissolve snapped classes: %w", err)
	}

	clip := geos.NewPolygon([][][]float64{region.Ring()})
	out := &FeatureCollection{}
	for _, f := range dissolved.Features {
		clipped := f.Geom.Intersection(clip)
		if clipped == nil || clipped.IsEmpty() {
			continue
		}
		out.Features = append(out.Features, &Feature{Geom: clipped, Attrs: f.Attrs})
	}
	out.CleanColumns()
	return out, nil
}

// dropSmallParts removes polygon parts below the area threshold. A zero
// threshold keeps everything.
func dropSmallParts(g *geos.Geom, threshold float64) *geos.Geom {
	if threshold <= 0 {
		return g
	}
	parts := explode(g)
	kept := parts[:0]
	for _, p := range parts {
		if p.Area() >= threshold {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	default:
		return geos.NewCollection(geos.TypeIDMultiPolygon, kept)
	}
}
