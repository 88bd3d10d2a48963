package vectorize

import (
	"fmt"

	shp "github.com/jonas-p/go-shp"
	"github.com/twpayne/go-geos"
)

// WriteShapefile exports the collection as polygons with the class number
// attribute. Multi features are flattened into multi-part shapes.
func (fc *FeatureCollection) WriteShapefile(path string) error {
	out, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer out.Close()

	out.SetFields([]shp.Field{shp.NumberField(ClassColumn, 10)})

	for i, f := range fc.Features {
		poly, err := shpPolygon(f.Geom)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		out.Write(poly)
		out.WriteAttribute(i, 0, f.Class())
	}
	return nil
}

// shpPolygon flattens a polygonal geometry into one shape with a part per
// ring.
func shpPolygon(g *geos.Geom) (*shp.Polygon, error) {
	poly := &shp.Polygon{}
	addRing := func(ring *geos.Geom) {
		poly.Parts = append(poly.Parts, int32(len(poly.Points)))
		seq := ring.CoordSeq()
		for j := 0; j < seq.Size(); j++ {
			poly.Points = append(poly.Points, shp.Point{X: seq.X(j), Y: seq.Y(j)})
		}
	}
	addPoly := func(p *geos.Geom) {
		addRing(p.ExteriorRing())
		for r := 0; r < p.NumInteriorRings(); r++ {
			addRing(p.InteriorRing(r))
		}
	}

	switch g.TypeID() {
	case geos.TypeIDPolygon:
		addPoly(g)
	case geos.TypeIDMultiPolygon, geos.TypeIDGeometryCollection:
		for i := 0; i < g.NumGeometries(); i++ {
			sub := g.Geometry(i)
			if sub.TypeID() == geos.TypeIDPolygon {
				addPoly(sub)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported geometry type %v", g.TypeID())
	}
	return poly, nil
}
