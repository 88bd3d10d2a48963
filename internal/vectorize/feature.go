// Package vectorize turns class rasters into clean vector layers: raster to
// polygons, dissolve by class, boundary generalization, optional smoothing
// with corner restoration, and seam-aware patching support.
package vectorize

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"github.com/twpayne/go-geos"
)

// ClassColumn is the attribute carrying the class value. Overlay operations
// prefix columns with a_ and b_; cleanup restores this name.
const ClassColumn = "class_number"

// Feature is one vector feature: a GEOS geometry plus attributes.
type Feature struct {
	Geom  *geos.Geom
	Attrs map[string]any
}

// Class returns the feature's class number, or 0 when unset.
func (f *Feature) Class() int {
	switch v := f.Attrs[ClassColumn].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// SetClass sets the class number attribute.
func (f *Feature) SetClass(c int) {
	if f.Attrs == nil {
		f.Attrs = map[string]any{}
	}
	f.Attrs[ClassColumn] = c
}

// FeatureCollection is an ordered set of features sharing a schema.
type FeatureCollection struct {
	Features []*Feature
}

// Classes returns the distinct class numbers present, ascending.
func (fc *FeatureCollection) Classes() []int {
	seen := map[int]bool{}
	for _, f := range fc.Features {
		seen[f.Class()] = true
	}
	out := make([]int, 0, len(seen))
	for c := range seen {
		out = append(out, c)
	}
	sort.Ints(out)
	return out
}

// ByClass groups features by class number.
func (fc *FeatureCollection) ByClass() map[int][]*Feature {
	m := map[int][]*Feature{}
	for _, f := range fc.Features {
		m[f.Class()] = append(m[f.Class()], f)
	}
	return m
}

// CleanColumns repairs the attribute schema after an overlay: duplicate
// prefixed copies are dropped and a_class_number becomes class_number
// again. Overlay output keeps only the surviving class value.
func (fc *FeatureCollection) CleanColumns() {
	for _, f := range fc.Features {
		cleaned := map[string]any{}
		for k, v := range f.Attrs {
			switch {
			case k == "a_"+ClassColumn:
				cleaned[ClassColumn] = v
			case strings.HasPrefix(k, "a_") || strings.HasPrefix(k, "b_"):
				// dropped: overlay bookkeeping column
			default:
				if _, exists := cleaned[k]; !exists {
					cleaned[k] = v
				}
			}
		}
		f.Attrs = cleaned
	}
}

// geosToGeom converts a GEOS polygonal geometry into go-geom form for
// serialization. Multi geometries flatten into a MultiPolygon.
func geosToGeom(g *geos.Geom) (geom.T, error) {
	switch g.TypeID() {
	case geos.TypeIDPolygon:
		return polygonToGeom(g)
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		mp := geom.NewMultiPolygon(geom.XY)
		for i := 0; i < g.NumGeometries(); i++ {
			sub := g.Geometry(i)
			if sub.TypeID() != geos.TypeIDPolygon {
				continue
			}
			p, err := polygonToGeom(sub)
			if err != nil {
				return nil, err
			}
			if err := mp.Push(p); err != nil {
				return nil, err
			}
		}
		return mp, nil
	default:
		return nil, fmt.Errorf("unsupported geometry type %v", g.TypeID())
	}
}

func polygonToGeom(g *geos.Geom) (*geom.Polygon, error) {
	rings := make([][]geom.Coord, 0, 1+g.NumInteriorRings())
	rings = append(rings, ringCoords(g.ExteriorRing()))
	for r := 0; r < g.NumInteriorRings(); r++ {
		rings = append(rings, ringCoords(g.InteriorRing(r)))
	}
	p := geom.NewPolygon(geom.XY)
	if _, err := p.SetCoords(rings); err != nil {
		return nil, fmt.Errorf("polygon coords: %w", err)
	}
	return p, nil
}

func ringCoords(ring *geos.Geom) []geom.Coord {
	seq := ring.CoordSeq()
	n := seq.Size()
	out := make([]geom.Coord, n)
	for j := 0; j < n; j++ {
		out[j] = geom.Coord{seq.X(j), seq.Y(j)}
	}
	return out
}

// geomToGeos converts a parsed go-geom polygonal geometry back to GEOS.
func geomToGeos(t geom.T) (*geos.Geom, error) {
	switch v := t.(type) {
	case *geom.Polygon:
		return geos.NewPolygon(polygonRings(v)), nil
	case *geom.MultiPolygon:
		geoms := make([]*geos.Geom, 0, v.NumPolygons())
		for i := 0; i < v.NumPolygons(); i++ {
			geoms = append(geoms, geos.NewPolygon(polygonRings(v.Polygon(i))))
		}
		return geos.NewCollection(geos.TypeIDMultiPolygon, geoms), nil
	default:
		return nil, fmt.Errorf("unsupported GeoJSON geometry %T", t)
	}
}

func polygonRings(p *geom.Polygon) [][][]float64 {
	rings := make([][][]float64, p.NumLinearRings())
	for r := 0; r < p.NumLinearRings(); r++ {
		coords := p.LinearRing(r).Coords()
		ring := make([][]float64, len(coords))
		for j, c := range coords {
			ring[j] = []float64{c.X(), c.Y()}
		}
		rings[r] = ring
	}
	return rings
}

// WriteGeoJSON serializes the collection with an explicit CRS member.
func (fc *FeatureCollection) WriteGeoJSON(path, epsg string) error {
	type jsonFeature struct {
		Type       string          `json:"type"`
		Properties map[string]any  `json:"properties"`
		Geometry   json.RawMessage `json:"geometry"`
	}
	doc := struct {
		Type     string        `json:"type"`
		CRS      any           `json:"crs"`
		Features []jsonFeature `json:"features"`
	}{
		Type: "FeatureCollection",
		CRS: map[string]any{
			"type":       "name",
			"properties": map[string]string{"name": "urn:ogc:def:crs:EPSG::" + epsg},
		},
	}
	for i, f := range fc.Features {
		gt, err := geosToGeom(f.Geom)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		raw, err := geojson.Marshal(gt)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		doc.Features = append(doc.Features, jsonFeature{
			Type:       "Feature",
			Properties: f.Attrs,
			Geometry:   raw,
		})
	}
	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ReadGeoJSON parses a feature collection written by WriteGeoJSON or any
// compatible tool. Non-polygonal features are rejected.
func ReadGeoJSON(path string) (*FeatureCollection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var doc struct {
		Features []struct {
			Properties map[string]any  `json:"properties"`
			Geometry   json.RawMessage `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	fc := &FeatureCollection{}
	for i, jf := range doc.Features {
		var gt geom.T
		if err := geojson.Unmarshal(jf.Geometry, &gt); err != nil {
			return nil, fmt.Errorf("feature %d geometry: %w", i, err)
		}
		gg, err := geomToGeos(gt)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		attrs := jf.Properties
		if attrs == nil {
			attrs = map[string]any{}
		}
		fc.Features = append(fc.Features, &Feature{Geom: gg, Attrs: attrs})
	}
	return fc, nil
}
