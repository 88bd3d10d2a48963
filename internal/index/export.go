package index

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	shp "github.com/jonas-p/go-shp"
	geom "github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"tileprep/internal/grid"
)

// Attribute schema of the exported index. The names are fixed: downstream
// tooling selects tiles by them.
const (
	fieldFID      = "fid"
	fieldName     = "name"
	fieldPath     = "path"
	fieldTraining = "training"
)

// featureCollection is the on-disk GeoJSON document. The CRS member is
// written explicitly so the interchange file stays self-describing.
type featureCollection struct {
	Type     string    `json:"type"`
	Name     string    `json:"name"`
	CRS      crs       `json:"crs"`
	Features []feature `json:"features"`
}

type crs struct {
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

type feature struct {
	Type       string          `json:"type"`
	Properties map[string]any  `json:"properties"`
	Geometry   json.RawMessage `json:"geometry"`
}

// WriteGeoJSON writes the index as a GeoJSON feature collection.
func (x *TileIndex) WriteGeoJSON(path string) error {
	fc := featureCollection{
		Type: "FeatureCollection",
		Name: "tindex",
		CRS: crs{
			Type:       "name",
			Properties: map[string]string{"name": "urn:ogc:def:crs:EPSG::" + x.EPSG},
		},
		Features: make([]feature, 0, len(x.tiles)),
	}
	for _, t := range x.tiles {
		poly := geom.NewPolygon(geom.XY)
		ring := make([]geom.Coord, 0, 5)
		for _, xy := range t.Bounds.Ring() {
			ring = append(ring, geom.Coord{xy[0], xy[1]})
		}
		if _, err := poly.SetCoords([][]geom.Coord{ring}); err != nil {
			return fmt.Errorf("tile %s geometry: %w", t.ID, err)
		}
		raw, err := geojson.Marshal(poly)
		if err != nil {
			return fmt.Errorf("tile %s geojson: %w", t.ID, err)
		}
		fc.Features = append(fc.Features, feature{
			Type: "Feature",
			Properties: map[string]any{
				fieldFID:      t.ID,
				fieldName:     t.Name,
				fieldPath:     t.OutputPath,
				fieldTraining: trainingValue(t.Role),
			},
			Geometry: raw,
		})
	}

	data, err := json.MarshalIndent(fc, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal tile index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write tile index: %w", err)
	}
	return nil
}

// trainingValue keeps the original schema: training tiles carry a marker that
// the labeling workflow later resolves, apply tiles "no", untouched tiles
// "false".
func trainingValue(r grid.Role) string {
	switch r {
	case grid.RoleTraining, grid.RoleValidation:
		return "TODO"
	case grid.RoleApply:
		return "no"
	default:
		return "false"
	}
}

// WriteShapefile converts the index into the compact container format
// consumed by downstream tools.
func (x *TileIndex) WriteShapefile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	shape, err := shp.Create(path, shp.POLYGON)
	if err != nil {
		return fmt.Errorf("create shapefile: %w", err)
	}
	defer shape.Close()

	fields := []shp.Field{
		shp.StringField(fieldFID, 16),
		shp.StringField(fieldName, 64),
		shp.StringField(fieldPath, 254),
		shp.StringField(fieldTraining, 8),
	}
	shape.SetFields(fields)

	for i, t := range x.tiles {
		poly := &shp.Polygon{}
		for _, xy := range t.Bounds.Ring() {
			poly.Points = append(poly.Points, shp.Point{X: xy[0], Y: xy[1]})
		}
		poly.Parts = []int32{0}
		shape.Write(poly)
		shape.WriteAttribute(i, 0, t.ID)
		shape.WriteAttribute(i, 1, t.Name)
		shape.WriteAttribute(i, 2, t.OutputPath)
		shape.WriteAttribute(i, 3, trainingValue(t.Role))
	}
	return nil
}

// VerificationDump renders a textual summary of the exported container for
// operator inspection, the ogrinfo analog.
func (x *TileIndex) VerificationDump(w io.Writer, containerPath string) error {
	b := x.extent()
	fmt.Fprintf(w, "Layer name: tindex\n")
	fmt.Fprintf(w, "Source: %s\n", containerPath)
	fmt.Fprintf(w, "Geometry: Polygon\n")
	fmt.Fprintf(w, "Feature Count: %d\n", len(x.tiles))
	fmt.Fprintf(w, "Extent: (%g, %g) - (%g, %g)\n", b.West, b.South, b.East, b.North)
	fmt.Fprintf(w, "CRS: EPSG:%s\n", x.EPSG)
	for _, f := range []string{fieldFID, fieldName, fieldPath, fieldTraining} {
		fmt.Fprintf(w, "%s: String\n", f)
	}
	roles := map[string]int{}
	for _, t := range x.tiles {
		roles[t.Role.String()]++
	}
	for _, role := range []string{"training", "validation", "apply", "excluded", "unassigned"} {
		if n := roles[role]; n > 0 {
			fmt.Fprintf(w, "  %s tiles: %d\n", role, n)
		}
	}
	return nil
}

// CopyStyle copies the layer style descriptor template verbatim next to the
// exported index.
func CopyStyle(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open style template: %w", err)
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create style file: %w", err)
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("copy style file: %w", err)
	}
	return nil
}

// extent returns the union bounds of all tiles.
func (x *TileIndex) extent() (b struct{ North, South, East, West float64 }) {
	if len(x.tiles) == 0 {
		return b
	}
	u := x.tiles[0].Bounds
	for _, t := range x.tiles[1:] {
		u = u.Union(t.Bounds)
	}
	b.North, b.South, b.East, b.West = u.North, u.South, u.East, u.West
	return b
}
