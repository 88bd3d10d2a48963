package grid

import (
	"errors"
	"math"
	"testing"

	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

func testExtent(t *testing.T, rows, cols int, res float64) scene.Extent {
	t.Helper()
	ext, err := scene.NewExtent(geometry.Bounds{
		North: float64(rows) * res,
		South: 0,
		East:  float64(cols) * res,
		West:  0,
	}, res)
	if err != nil {
		t.Fatalf("extent: %v", err)
	}
	return ext
}

func TestPlanTileCount(t *testing.T) {
	tests := []struct {
		rows, cols    int
		size, overlap int
		wantRows      int
		wantCols      int
	}{
		{1000, 1000, 512, 128, 3, 3},
		{512, 512, 512, 0, 1, 1},
		{513, 512, 512, 0, 2, 1},
		{1000, 500, 512, 128, 3, 2},
		{384, 384, 512, 128, 1, 1},
		{100, 100, 10, 0, 10, 10},
	}
	for _, tc := range tests {
		ext := testExtent(t, tc.rows, tc.cols, 1)
		tiles, err := Plan(ext, Options{TileSize: tc.size, Overlap: tc.overlap})
		if err != nil {
			t.Fatalf("Plan(%dx%d, %d/%d): %v", tc.rows, tc.cols, tc.size, tc.overlap, err)
		}
		if got, want := len(tiles), tc.wantRows*tc.wantCols; got != want {
			t.Errorf("Plan(%dx%d, %d/%d) = %d tiles, want %d",
				tc.rows, tc.cols, tc.size, tc.overlap, got, want)
		}
	}
}

func TestPlanExactOverlap(t *testing.T) {
	ext := testExtent(t, 1000, 1000, 2)
	tiles, err := Plan(ext, Options{TileSize: 512, Overlap: 128})
	if err != nil {
		t.Fatal(err)
	}
	// 3x3 grid; horizontal neighbors share exactly overlap*res map units.
	a, b := tiles[0], tiles[1]
	shared := a.Bounds.East - b.Bounds.West
	if want := 128 * 2.0; math.Abs(shared-want) > 1e-9 {
		t.Errorf("horizontal overlap = %g, want %g", shared, want)
	}
	// Vertical neighbors likewise.
	c := tiles[3]
	shared = c.Bounds.North - (a.Bounds.North - 512*2.0)
	if want := 128 * 2.0; math.Abs(shared-want) > 1e-9 {
		t.Errorf("vertical overlap = %g, want %g", shared, want)
	}
}

func TestPlanRowMajorLayout(t *testing.T) {
	ext := testExtent(t, 1000, 1000, 1)
	tiles, err := Plan(ext, Options{TileSize: 512, Overlap: 128})
	if err != nil {
		t.Fatal(err)
	}
	// North decreases row by row, west increases column by column.
	if tiles[0].Bounds.North != tiles[1].Bounds.North {
		t.Error("tiles of one row must share their north edge")
	}
	if tiles[3].Bounds.North >= tiles[0].Bounds.North {
		t.Error("next row must start further south")
	}
	if tiles[1].Bounds.West <= tiles[0].Bounds.West {
		t.Error("next column must start further east")
	}
	step := 384.0
	if got := tiles[0].Bounds.West + step; tiles[1].Bounds.West != got {
		t.Errorf("column step = %g, want %g", tiles[1].Bounds.West-tiles[0].Bounds.West, step)
	}
}

func TestPlanRaggedLastTile(t *testing.T) {
	ext := testExtent(t, 1000, 1000, 1)
	tiles, err := Plan(ext, Options{TileSize: 512, Overlap: 128})
	if err != nil {
		t.Fatal(err)
	}
	last := tiles[len(tiles)-1]
	if last.Bounds.East <= ext.Bounds.East {
		t.Error("last column tile should extend past the extent")
	}
	if last.Bounds.South >= ext.Bounds.South {
		t.Error("last row tile should extend past the extent")
	}
}

func TestPlanNaming(t *testing.T) {
	ext := testExtent(t, 5000, 5000, 1)
	tiles, err := Plan(ext, Options{TileSize: 512, Overlap: 128, Suffix: "s2"})
	if err != nil {
		t.Fatal(err)
	}
	// 14 rows and columns: pad width 2.
	if got, want := tiles[0].Name, "tile_00_00_s2"; got != want {
		t.Errorf("first tile name = %q, want %q", got, want)
	}
	if got, want := tiles[0].ID, "0000"; got != want {
		t.Errorf("first tile id = %q, want %q", got, want)
	}
	last := tiles[len(tiles)-1]
	if got, want := last.Name, "tile_13_13_s2"; got != want {
		t.Errorf("last tile name = %q, want %q", got, want)
	}
}

func TestPlanConfigurationErrors(t *testing.T) {
	ext := testExtent(t, 100, 100, 1)
	cases := []Options{
		{TileSize: 0, Overlap: 0},
		{TileSize: -5, Overlap: 0},
		{TileSize: 100, Overlap: 100},
		{TileSize: 100, Overlap: 200},
		{TileSize: 100, Overlap: -1},
	}
	for _, opts := range cases {
		if _, err := Plan(ext, opts); !errors.Is(err, ErrConfiguration) {
			t.Errorf("Plan(size=%d overlap=%d) error = %v, want ErrConfiguration",
				opts.TileSize, opts.Overlap, err)
		}
	}
}
