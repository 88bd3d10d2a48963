package scene

import (
	"testing"

	"tileprep/pkg/geometry"
)

func TestNewExtent(t *testing.T) {
	b := geometry.Bounds{North: 100, South: 0, East: 200, West: 0}
	ext, err := NewExtent(b, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if ext.Rows != 200 || ext.Cols != 400 {
		t.Errorf("got %dx%d cells, want 200x400", ext.Rows, ext.Cols)
	}
	if ext.CellArea() != 0.25 {
		t.Errorf("cell area = %g, want 0.25", ext.CellArea())
	}
}

func TestNewExtentRejectsBadInput(t *testing.T) {
	good := geometry.Bounds{North: 10, South: 0, East: 10, West: 0}
	if _, err := NewExtent(good, 0); err == nil {
		t.Error("zero resolution accepted")
	}
	if _, err := NewExtent(good, -1); err == nil {
		t.Error("negative resolution accepted")
	}
	bad := geometry.Bounds{North: 0, South: 10, East: 10, West: 0}
	if _, err := NewExtent(bad, 1); err == nil {
		t.Error("inverted bounds accepted")
	}
}

func TestRegionShrinkGrowRoundTrip(t *testing.T) {
	r := Region{Bounds: geometry.Bounds{North: 100, South: 0, East: 100, West: 0}, Res: 1}
	back := r.ShrinkBy(10).GrowBy(10)
	if !r.Equal(back) {
		t.Errorf("shrink+grow changed region: %s vs %s", r, back)
	}
}

func TestRegionRowsCols(t *testing.T) {
	r := Region{Bounds: geometry.Bounds{North: 100, South: 0, East: 180, West: 0}, Res: 1}
	rows, cols := r.RowsCols()
	if rows != 100 || cols != 180 {
		t.Errorf("got %dx%d, want 100x180", rows, cols)
	}
}

func TestRegionAlignTo(t *testing.T) {
	ext, err := NewExtent(geometry.Bounds{North: 100, South: 0, East: 100, West: 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	r := Region{Bounds: geometry.Bounds{North: 95.3, South: 10.7, East: 81.1, West: 20.9}, Res: 2}
	a := r.AlignTo(ext)
	// Edges snap outward onto the 2-unit lattice.
	want := geometry.Bounds{North: 96, South: 10, East: 82, West: 20}
	if a.Bounds != want {
		t.Errorf("aligned bounds = %+v, want %+v", a.Bounds, want)
	}
	if a.Bounds.North < r.Bounds.North || a.Bounds.South > r.Bounds.South ||
		a.Bounds.East < r.Bounds.East || a.Bounds.West > r.Bounds.West {
		t.Error("aligned region must contain the original region")
	}
}

func TestRegionEqualTolerance(t *testing.T) {
	r := Region{Bounds: geometry.Bounds{North: 100, South: 0, East: 100, West: 0}, Res: 1}
	drifted := r
	drifted.Bounds.North += 0.4
	if !r.Equal(drifted) {
		t.Error("drift below half a cell must compare equal")
	}
	moved := r
	moved.Bounds.North += 0.6
	if r.Equal(moved) {
		t.Error("drift above half a cell must compare unequal")
	}
	otherRes := r
	otherRes.Res = 2
	if r.Equal(otherRes) {
		t.Error("different resolutions must compare unequal")
	}
}
