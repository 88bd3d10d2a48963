// Package classify counts null cells per tile and derives tile eligibility.
// A tile qualifies for training only when it is completely covered by data;
// a tile with no data at all is dropped from the index.
package classify

import (
	"fmt"

	"tileprep/internal/grid"
	"tileprep/internal/raster"
	"tileprep/internal/workspace"
)

// Result is what a classification task reports back for one tile.
type Result struct {
	TileID    string
	NullCells int
	Cells     int
}

// Eligible reports whether the tile can serve as a training candidate.
func (r Result) Eligible() bool { return r.NullCells == 0 }

// HasData reports whether the tile contains at least one data cell.
func (r Result) HasData() bool { return r.NullCells != r.Cells }

// Task classifies one tile against the reference raster. It satisfies
// dispatch.Task.
type Task struct {
	Tile      grid.TileDescriptor
	Reference raster.Source

	Result Result
}

// ID returns the tile identifier.
func (t *Task) ID() string { return t.Tile.ID }

// Run windows the task's private region to the tile bounds, counts null
// cells in the reference raster and reports the count on the task output.
func (t *Task) Run(ws *workspace.Workspace) (string, []string, error) {
	ws.Region = ws.Region.SetBounds(t.Tile.Bounds)

	g, err := raster.Window(t.Reference, ws.Region)
	if err != nil {
		return "", nil, fmt.Errorf("window tile %s: %w", t.Tile.ID, err)
	}
	rows, cols := ws.Region.RowsCols()
	t.Result = Result{
		TileID:    t.Tile.ID,
		NullCells: g.NullCells(),
		Cells:     rows * cols,
	}
	out := fmt.Sprintf("For tile %s the number of null cells is: %d\n", t.Tile.ID, t.Result.NullCells)
	return out, nil, nil
}

// Apply folds classification results back into the tile set: tiles without
// data are marked for removal, full-coverage tiles become eligible
// candidates. It returns the IDs of eligible tiles.
func Apply(tiles []grid.TileDescriptor, results map[string]Result) (eligible []string) {
	for i := range tiles {
		r, ok := results[tiles[i].ID]
		if !ok {
			continue
		}
		tiles[i].HasData = r.HasData()
		if r.Eligible() {
			eligible = append(eligible, tiles[i].ID)
		}
	}
	return eligible
}

// ResultMap indexes task results by tile ID.
func ResultMap(tasks []*Task) map[string]Result {
	m := make(map[string]Result, len(tasks))
	for _, t := range tasks {
		m[t.Result.TileID] = t.Result
	}
	return m
}
