package classify

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"tileprep/internal/dispatch"
	"tileprep/internal/grid"
	"tileprep/internal/raster"
	"tileprep/internal/scene"
	"tileprep/internal/workspace"
	"tileprep/pkg/geometry"
)

func testScene(t *testing.T, rows, cols int) (scene.Extent, *raster.Grid) {
	t.Helper()
	ext, err := scene.NewExtent(geometry.Bounds{
		North: float64(rows),
		South: 0,
		East:  float64(cols),
		West:  0,
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	return ext, raster.NewFilled(ext, 1)
}

func TestTaskOutputContract(t *testing.T) {
	ext, ref := testScene(t, 100, 100)
	ref.SetNull(10, 10)
	tiles, err := grid.Plan(ext, grid.Options{TileSize: 100, Overlap: 0})
	if err != nil {
		t.Fatal(err)
	}

	rc, err := workspace.NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	iso := workspace.NewIsolator(rc, scene.FromExtent(ext))
	ws, err := iso.Acquire(tiles[0].ID)
	if err != nil {
		t.Fatal(err)
	}

	task := &Task{Tile: tiles[0], Reference: ref}
	out, warnings, err := task.Run(ws)
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("For tile %s the number of null cells is: 1\n", tiles[0].ID)
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
	if len(warnings) != 0 {
		t.Errorf("unexpected warnings: %v", warnings)
	}
	if task.Result.NullCells != 1 {
		t.Errorf("null cells = %d, want 1", task.Result.NullCells)
	}
}

func TestEligibilityRules(t *testing.T) {
	full := Result{TileID: "a", NullCells: 0, Cells: 100}
	partial := Result{TileID: "b", NullCells: 40, Cells: 100}
	empty := Result{TileID: "c", NullCells: 100, Cells: 100}

	if !full.Eligible() || !full.HasData() {
		t.Error("fully covered tile must be eligible and have data")
	}
	if partial.Eligible() {
		t.Error("partially covered tile must not be eligible")
	}
	if !partial.HasData() {
		t.Error("partially covered tile must have data")
	}
	if empty.Eligible() || empty.HasData() {
		t.Error("empty tile must be neither eligible nor have data")
	}
}

// A 1000x1000 scene tiled at 512/128 yields a 3x3 grid. With the south-east
// corner of the scene missing, the corner tile has no data at all and every
// tile that touches the hole loses eligibility.
func TestCornerHoleScenario(t *testing.T) {
	ext, ref := testScene(t, 1000, 1000)
	// Null out the region covered only by the last tile. The last tile
	// starts at cell 768 in both directions.
	for row := 768; row < 1000; row++ {
		for col := 768; col < 1000; col++ {
			ref.SetNull(row, col)
		}
	}

	tiles, err := grid.Plan(ext, grid.Options{TileSize: 512, Overlap: 128})
	if err != nil {
		t.Fatal(err)
	}
	if len(tiles) != 9 {
		t.Fatalf("planned %d tiles, want 9", len(tiles))
	}

	rc, err := workspace.NewRunContext(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	iso := workspace.NewIsolator(rc, scene.FromExtent(ext))
	d := dispatch.New(4, iso)

	var dtasks []dispatch.Task
	var ctasks []*Task
	for _, tile := range tiles {
		ct := &Task{Tile: tile, Reference: ref}
		ctasks = append(ctasks, ct)
		dtasks = append(dtasks, ct)
	}
	if _, err := d.RunBatch(context.Background(), dtasks); err != nil {
		t.Fatal(err)
	}

	eligible := Apply(tiles, ResultMap(ctasks))

	// Ragged row/column 2 tiles extend past the extent and are never fully
	// covered; tile (1,1) clips the hole's corner. That leaves (0,0),
	// (0,1) and (1,0).
	if len(eligible) != 3 {
		ids := strings.Join(eligible, ",")
		t.Fatalf("eligible tiles = %d (%s), want 3", len(eligible), ids)
	}
	// The corner tile holds no data and is dropped later.
	corner := tiles[len(tiles)-1]
	if corner.HasData {
		t.Error("corner tile covering only the hole must not have data")
	}
	// A tile partially over the hole keeps its data but is not eligible.
	edge := tiles[5] // row 1, col 2: columns 768..1279
	if !edge.HasData {
		t.Error("edge tile must keep its data")
	}
	for _, id := range eligible {
		if id == edge.ID {
			t.Error("edge tile over the hole must not be eligible")
		}
	}
}
