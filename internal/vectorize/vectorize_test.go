package vectorize

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/twpayne/go-geos"

	"tileprep/internal/raster"
	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

func testExtent(t *testing.T, size int) scene.Extent {
	t.Helper()
	ext, err := scene.NewExtent(geometry.Bounds{
		North: float64(size), South: 0, East: float64(size), West: 0,
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return ext
}

// halves returns a raster with class left in the west half and class right
// in the east half.
func halves(t *testing.T, size int, left, right float64) *raster.Grid {
	t.Helper()
	g := raster.New(testExtent(t, size))
	for row := 0; row < size; row++ {
		for col := 0; col < size; col++ {
			v := left
			if col >= size/2 {
				v = right
			}
			g.Set(row, col, v)
		}
	}
	return g
}

func classArea(fc *FeatureCollection, class int) float64 {
	total := 0.0
	for _, f := range fc.Features {
		if f.Class() == class {
			total += f.Geom.Area()
		}
	}
	return total
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

func TestVectorizeHalves(t *testing.T) {
	fc, err := Vectorize(halves(t, 10, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 2 {
		t.Fatalf("features = %d, want 2", len(fc.Features))
	}
	if got := fc.Classes(); len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("classes = %v, want [1 2]", got)
	}
	if a := classArea(fc, 1); !near(a, 50) {
		t.Errorf("class 1 area = %g, want 50", a)
	}
	if a := classArea(fc, 2); !near(a, 50) {
		t.Errorf("class 2 area = %g, want 50", a)
	}
}

func TestVectorizeSkipsNullCells(t *testing.T) {
	g := raster.New(testExtent(t, 10))
	g.Set(4, 4, 3)
	g.Set(4, 5, 3)
	fc, err := Vectorize(g)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 1 {
		t.Fatalf("features = %d, want 1", len(fc.Features))
	}
	if a := classArea(fc, 3); !near(a, 2) {
		t.Errorf("class 3 area = %g, want 2", a)
	}
}

func TestDissolveNeverIncreasesFeatureCount(t *testing.T) {
	square := func(x0, y0 float64) *geos.Geom {
		return geos.NewPolygon([][][]float64{{
			{x0, y0}, {x0 + 2, y0}, {x0 + 2, y0 + 2}, {x0, y0 + 2}, {x0, y0},
		}})
	}
	fc := &FeatureCollection{}
	for i, g := range []*geos.Geom{square(0, 0), square(5, 0), square(10, 0), square(0, 5)} {
		f := &Feature{Geom: g}
		if i < 3 {
			f.SetClass(1)
		} else {
			f.SetClass(2)
		}
		fc.Features = append(fc.Features, f)
	}

	dissolved, err := Dissolve(fc)
	if err != nil {
		t.Fatal(err)
	}
	if want := len(fc.Classes()); len(dissolved.Features) > want {
		t.Errorf("dissolved features = %d, more than %d classes", len(dissolved.Features), want)
	}
	if a := classArea(dissolved, 1); !near(a, 12) {
		t.Errorf("class 1 area after dissolve = %g, want 12", a)
	}
	if a := classArea(dissolved, 2); !near(a, 4) {
		t.Errorf("class 2 area after dissolve = %g, want 4", a)
	}
}

func TestCleanColumns(t *testing.T) {
	fc := &FeatureCollection{Features: []*Feature{{
		Attrs: map[string]any{
			"a_" + ClassColumn: 7,
			"b_" + ClassColumn: 3,
			"a_source":         "x",
			"kept":             "yes",
		},
	}}}
	fc.CleanColumns()
	attrs := fc.Features[0].Attrs
	if attrs[ClassColumn] != 7 {
		t.Errorf("%s = %v, want 7", ClassColumn, attrs[ClassColumn])
	}
	if attrs["kept"] != "yes" {
		t.Errorf("unprefixed column lost: %v", attrs)
	}
	for _, k := range []string{"a_" + ClassColumn, "b_" + ClassColumn, "a_source"} {
		if _, ok := attrs[k]; ok {
			t.Errorf("overlay column %s survived cleanup", k)
		}
	}
}

// Corner restoration must recover the full original coverage: smoothing cuts
// corners inward, and the overlay fills the lost area back in.
func TestRestoreCornersKeepsCoverage(t *testing.T) {
	fc, err := Vectorize(halves(t, 10, 1, 1))
	if err != nil {
		t.Fatal(err)
	}
	original, err := Dissolve(fc)
	if err != nil {
		t.Fatal(err)
	}
	smoothed, err := Smooth(original)
	if err != nil {
		t.Fatal(err)
	}
	if a := classArea(smoothed, 1); a >= 100 {
		t.Fatalf("smoothing did not cut corners, area = %g", a)
	}

	restored, err := RestoreCorners(smoothed, original)
	if err != nil {
		t.Fatal(err)
	}
	if a := classArea(restored, 1); !near(a, 100) {
		t.Errorf("restored area = %g, want 100", a)
	}
	lost := original.Features[0].Geom.Difference(restored.Features[0].Geom)
	if lost != nil && lost.Area() > 1e-6 {
		t.Errorf("restoration lost %g map units of original coverage", lost.Area())
	}

	// The tile corners cut by smoothing must reappear as vertices.
	var verts [][]float64
	for _, part := range explode(restored.Features[0].Geom) {
		verts = append(verts, ringFloats(part.ExteriorRing())...)
		for i := 0; i < part.NumInteriorRings(); i++ {
			verts = append(verts, ringFloats(part.InteriorRing(i))...)
		}
	}
	for _, corner := range [][2]float64{{0, 0}, {10, 0}, {10, 10}, {0, 10}} {
		found := false
		for _, v := range verts {
			if near(v[0], corner[0]) && near(v[1], corner[1]) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("corner (%g, %g) missing from restored geometry", corner[0], corner[1])
		}
	}
}

func TestReconcile(t *testing.T) {
	g := halves(t, 20, 1, 2)
	g.Set(10, 3, 7) // single-cell noise clump

	fc, err := Reconcile(g, Options{AreaThreshold: 2})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range fc.Classes() {
		if c == 7 {
			t.Error("noise class survived reconciliation")
		}
	}
	if a := classArea(fc, 1); !near(a, 200) {
		t.Errorf("class 1 area = %g, want 200", a)
	}
	if a := classArea(fc, 2); !near(a, 200) {
		t.Errorf("class 2 area = %g, want 200", a)
	}
}

func TestReconcileWithSmoothingPreservesTotalArea(t *testing.T) {
	g := halves(t, 20, 1, 2)
	fc, err := Reconcile(g, Options{Smooth: true, KeepCorners: true})
	if err != nil {
		t.Fatal(err)
	}
	total := 0.0
	for _, f := range fc.Features {
		total += f.Geom.Area()
	}
	if !near(total, 400) {
		t.Errorf("total area = %g, want 400", total)
	}
}

func TestSnapToReference(t *testing.T) {
	square := geos.NewPolygon([][][]float64{{
		{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0},
	}})
	classified := &FeatureCollection{Features: []*Feature{{Geom: square}}}
	classified.Features[0].SetClass(3)

	refPoly := geos.NewPolygon([][][]float64{{
		{0, 0}, {6, 0}, {6, 10}, {0, 10}, {0, 0},
	}})
	reference := &FeatureCollection{Features: []*Feature{{Geom: refPoly}}}
	reference.Features[0].SetClass(1)

	region := geometry.Bounds{North: 10, South: 0, East: 10, West: 0}
	out, err := SnapToReference(classified, reference, region, SnapOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if a := classArea(out, 3); !near(a, 60) {
		t.Errorf("reference-covered area = %g, want 60", a)
	}
	if a := classArea(out, DummyClass); !near(a, 40) {
		t.Errorf("dummy-class area = %g, want 40", a)
	}

	// A big outside threshold removes the uncovered part entirely.
	out, err = SnapToReference(classified, reference, region, SnapOptions{OutsideThreshold: 50})
	if err != nil {
		t.Fatal(err)
	}
	if a := classArea(out, DummyClass); a != 0 {
		t.Errorf("dummy-class area = %g, want dropped", a)
	}
	if a := classArea(out, 3); !near(a, 60) {
		t.Errorf("reference-covered area = %g, want 60", a)
	}
}

func TestGeoJSONRoundTrip(t *testing.T) {
	fc, err := Vectorize(halves(t, 10, 1, 2))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "classes.geojson")
	if err := fc.WriteGeoJSON(path, "25832"); err != nil {
		t.Fatal(err)
	}
	back, err := ReadGeoJSON(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(back.Features) != len(fc.Features) {
		t.Fatalf("features = %d, want %d", len(back.Features), len(fc.Features))
	}
	for i := range fc.Features {
		if back.Features[i].Class() != fc.Features[i].Class() {
			t.Errorf("feature %d class = %d, want %d",
				i, back.Features[i].Class(), fc.Features[i].Class())
		}
		if !near(back.Features[i].Geom.Area(), fc.Features[i].Geom.Area()) {
			t.Errorf("feature %d area changed in round trip", i)
		}
	}
}
