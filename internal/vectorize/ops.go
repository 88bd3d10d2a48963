package vectorize

import (
	"fmt"
	"sort"

	"github.com/twpayne/go-geos"

	"tileprep/internal/raster"
	"tileprep/pkg/geometry"
)

// Vectorize converts a class raster into polygon features. Horizontal runs
// of equal class value become rectangles which are then unioned per class,
// so every contiguous class area ends up as one clean polygon. Null cells
// produce no geometry.
func Vectorize(g *raster.Grid) (*FeatureCollection, error) {
	runs := map[int][]*geos.Geom{}
	ext := g.Extent
	for row := 0; row < ext.Rows; row++ {
		col := 0
		for col < ext.Cols {
			v, ok := g.Value(row, col)
			if !ok {
				col++
				continue
			}
			class := int(v)
			start := col
			for col < ext.Cols {
				w, ok := g.Value(row, col)
				if !ok || int(w) != class {
					break
				}
				col++
			}
			runs[class] = append(runs[class], runRect(ext.Bounds.North, ext.Bounds.West, ext.Res, row, start, col))
		}
	}

	fc := &FeatureCollection{}
	classes := make([]int, 0, len(runs))
	for c := range runs {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	for _, class := range classes {
		merged, err := CascadedUnion(runs[class])
		if err != nil {
			return nil, fmt.Errorf("union class %d: %w", class, err)
		}
		for _, part := range explode(merged) {
			f := &Feature{Geom: part}
			f.SetClass(class)
			fc.Features = append(fc.Features, f)
		}
	}
	return fc, nil
}

// runRect builds the rectangle covering cells [colStart, colEnd) of a row.
func runRect(north, west, res float64, row, colStart, colEnd int) *geos.Geom {
	top := north - float64(row)*res
	bottom := top - res
	left := west + float64(colStart)*res
	right := west + float64(colEnd)*res
	return geos.NewPolygon([][][]float64{{
		{left, top}, {right, top}, {right, bottom}, {left, bottom}, {left, top},
	}})
}

// CascadedUnion merges geometries by recursive halving, which keeps
// intermediate results small on large inputs.
func CascadedUnion(geoms []*geos.Geom) (*geos.Geom, error) {
	switch len(geoms) {
	case 0:
		return nil, fmt.Errorf("no geometries to union")
	case 1:
		return geoms[0], nil
	}
	mid := len(geoms) / 2
	left, err := CascadedUnion(geoms[:mid])
	if err != nil {
		return nil, err
	}
	right, err := CascadedUnion(geoms[mid:])
	if err != nil {
		return nil, err
	}
	return left.Union(right), nil
}

// explode splits a multi geometry into its polygon parts.
func explode(g *geos.Geom) []*geos.Geom {
	if g == nil || g.IsEmpty() {
		return nil
	}
	if g.TypeID() == geos.TypeIDPolygon {
		return []*geos.Geom{g}
	}
	var out []*geos.Geom
	for i := 0; i < g.NumGeometries(); i++ {
		sub := g.Geometry(i)
		if sub.TypeID() == geos.TypeIDPolygon {
			out = append(out, sub)
		}
	}
	return out
}

// Dissolve merges all features of the same class into one feature. The
// result never has more features than classes.
func Dissolve(fc *FeatureCollection) (*FeatureCollection, error) {
	out := &FeatureCollection{}
	byClass := fc.ByClass()
	classes := fc.Classes()
	for _, class := range classes {
		geoms := make([]*geos.Geom, 0, len(byClass[class]))
		for _, f := range byClass[class] {
			geoms = append(geoms, f.Geom)
		}
		merged, err := CascadedUnion(geoms)
		if err != nil {
			return nil, fmt.Errorf("dissolve class %d: %w", class, err)
		}
		f := &Feature{Geom: merged}
		f.SetClass(class)
		out.Features = append(out.Features, f)
	}
	return out, nil
}

// Generalize straightens boundaries with two simplification passes, the
// second at one and a half times the tolerance. Invalid results are
// repaired.
func Generalize(fc *FeatureCollection, tolerance float64) (*FeatureCollection, error) {
	first, err := simplifyPass(fc, tolerance)
	if err != nil {
		return nil, err
	}
	return simplifyPass(first, tolerance*1.5)
}

func simplifyPass(fc *FeatureCollection, tolerance float64) (*FeatureCollection, error) {
	out := &FeatureCollection{}
	for i, f := range fc.Features {
		g, err := mapRings(f.Geom, func(ring [][]float64) [][]float64 {
			return toFloat(geometry.SimplifyRing(toPoints(ring), tolerance))
		})
		if err != nil {
			return nil, fmt.Errorf("simplify feature %d: %w", i, err)
		}
		out.Features = append(out.Features, &Feature{Geom: g, Attrs: cloneAttrs(f.Attrs)})
	}
	return out, nil
}

// Smooth rounds boundaries with corner-cutting subdivision.
func Smooth(fc *FeatureCollection) (*FeatureCollection, error) {
	out := &FeatureCollection{}
	for i, f := range fc.Features {
		g, err := mapRings(f.Geom, func(ring [][]float64) [][]float64 {
			return toFloat(geometry.ChaikinSmooth(toPoints(ring)))
		})
		if err != nil {
			return nil, fmt.Errorf("smooth feature %d: %w", i, err)
		}
		out.Features = append(out.Features, &Feature{Geom: g, Attrs: cloneAttrs(f.Attrs)})
	}
	return out, nil
}

// RestoreCorners overlays the smoothed layer with the original so that area
// lost by corner cutting is recovered: where the smoothed layer covers, its
// class wins; everywhere the original extends past it, the original class
// fills back in. The result is dissolved again by class.
func RestoreCorners(smoothed, original *FeatureCollection) (*FeatureCollection, error) {
	coverGeoms := make([]*geos.Geom, 0, len(smoothed.Features))
	for _, f := range smoothed.Features {
		coverGeoms = append(coverGeoms, f.Geom)
	}
	var covered *geos.Geom
	if len(coverGeoms) > 0 {
		var err error
		covered, err = CascadedUnion(coverGeoms)
		if err != nil {
			return nil, fmt.Errorf("smoothed coverage: %w", err)
		}
	}

	out := &FeatureCollection{}
	for _, f := range smoothed.Features {
		nf := &Feature{Geom: f.Geom, Attrs: map[string]any{"a_" + ClassColumn: f.Class()}}
		out.Features = append(out.Features, nf)
	}
	for _, f := range original.Features {
		rest := f.Geom
		if covered != nil {
			rest = f.Geom.Difference(covered)
		}
		if rest == nil || rest.IsEmpty() {
			continue
		}
		nf := &Feature{Geom: rest, Attrs: map[string]any{
			"a_" + ClassColumn: f.Class(),
			"b_" + ClassColumn: f.Class(),
		}}
		out.Features = append(out.Features, nf)
	}
	out.CleanColumns()
	return Dissolve(out)
}

// mapRings applies fn to every ring of a polygonal geometry and rebuilds it.
func mapRings(g *geos.Geom, fn func([][]float64) [][]float64) (*geos.Geom, error) {
	rebuild := func(poly *geos.Geom) *geos.Geom {
		rings := make([][][]float64, 0, 1+poly.NumInteriorRings())
		rings = append(rings, fn(ringFloats(poly.ExteriorRing())))
		for r := 0; r < poly.NumInteriorRings(); r++ {
			inner := fn(ringFloats(poly.InteriorRing(r)))
			if len(inner) >= 4 {
				rings = append(rings, inner)
			}
		}
		p := geos.NewPolygon(rings)
		if !p.IsValid() {
			p = p.MakeValid()
		}
		return p
	}

	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return rebuild(g), nil
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		parts := make([]*geos.Geom, 0, g.NumGeometries())
		for i := 0; i < g.NumGeometries(); i++ {
			sub := g.Geometry(i)
			if sub.TypeID() != geos.TypeIDPolygon {
				continue
			}
			parts = append(parts, rebuild(sub))
		}
		return CascadedUnion(parts)
	default:
		return nil, fmt.Errorf("unsupported geometry type %v", g.TypeID())
	}
}

func ringFloats(ring *geos.Geom) [][]float64 {
	seq := ring.CoordSeq()
	out := make([][]float64, seq.Size())
	for j := 0; j < seq.Size(); j++ {
		out[j] = []float64{seq.X(j), seq.Y(j)}
	}
	return out
}

func toPoints(ring [][]float64) []geometry.Point2D {
	out := make([]geometry.Point2D, len(ring))
	for i, c := range ring {
		out[i] = geometry.Point2D{X: c[0], Y: c[1]}
	}
	return out
}

func toFloat(pts []geometry.Point2D) [][]float64 {
	out := make([][]float64, len(pts))
	for i, p := range pts {
		out[i] = []float64{p.X, p.Y}
	}
	return out
}

func cloneAttrs(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
