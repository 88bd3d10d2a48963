// Package grid plans the overlapping tile grid over a scene extent.
package grid

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/twpayne/go-geos"

	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

// ErrConfiguration marks invalid grid parameters, detected before any work
// starts.
var ErrConfiguration = errors.New("invalid configuration")

// Role classifies what a tile is used for.
type Role int

const (
	RoleUnassigned Role = iota
	RoleTraining
	RoleValidation
	RoleApply
	RoleExcluded
)

func (r Role) String() string {
	switch r {
	case RoleTraining:
		return "training"
	case RoleValidation:
		return "validation"
	case RoleApply:
		return "apply"
	case RoleExcluded:
		return "excluded"
	default:
		return "unassigned"
	}
}

// TileDescriptor describes one tile of the grid. ID is the row/column pair
// zero-padded so lexicographic order equals grid order. Role and OutputPath
// are assigned by the split and export stages; exactly one in-flight task
// owns a descriptor at any time, so no field is ever mutated concurrently.
type TileDescriptor struct {
	ID         string
	Name       string
	Bounds     geometry.Bounds
	Role       Role
	OutputPath string
	HasData    bool
}

// Options configures grid planning. Sizes are in cells of the scene extent.
type Options struct {
	TileSize int    // Edge length of each square tile
	Overlap  int    // Shared border between adjacent tiles
	Suffix   string // Optional suffix appended to tile names
}

// DefaultOptions returns the planning defaults.
func DefaultOptions() Options {
	return Options{
		TileSize: 512,
		Overlap:  128,
	}
}

// Plan computes the overlapping tile grid over an extent. The grid is
// row-major: north decreases row by row, west increases column by column,
// each advancing by (size - overlap) cells in map units. The last row and
// column may extend past the extent; ragged tiles are accepted and clipped
// by downstream windows. Plan is pure.
func Plan(ext scene.Extent, opts Options) ([]TileDescriptor, error) {
	if opts.TileSize <= 0 {
		return nil, fmt.Errorf("%w: tile size %d must be positive", ErrConfiguration, opts.TileSize)
	}
	if opts.Overlap >= opts.TileSize {
		return nil, fmt.Errorf("%w: tile overlap %d must be smaller than tile size %d",
			ErrConfiguration, opts.Overlap, opts.TileSize)
	}
	if opts.Overlap < 0 {
		return nil, fmt.Errorf("%w: tile overlap %d must not be negative", ErrConfiguration, opts.Overlap)
	}

	step := opts.TileSize - opts.Overlap
	numRows := ceilDiv(ext.Rows, step)
	numCols := ceilDiv(ext.Cols, step)
	pad := max(len(strconv.Itoa(numRows)), len(strconv.Itoa(numCols)))

	sizeMap := float64(opts.TileSize) * ext.Res
	stepMap := float64(step) * ext.Res

	tiles := make([]TileDescriptor, 0, numRows*numCols)
	north := ext.Bounds.North
	for row := 0; row < numRows; row++ {
		west := ext.Bounds.West
		for col := 0; col < numCols; col++ {
			rowStr := zfill(row, pad)
			colStr := zfill(col, pad)
			name := fmt.Sprintf("tile_%s_%s", rowStr, colStr)
			if opts.Suffix != "" {
				name += "_" + opts.Suffix
			}
			tiles = append(tiles, TileDescriptor{
				ID:   rowStr + colStr,
				Name: name,
				Bounds: geometry.Bounds{
					North: north,
					South: north - sizeMap,
					East:  west + sizeMap,
					West:  west,
				},
			})
			west += stepMap
		}
		north -= stepMap
	}
	return tiles, nil
}

// FilterByAOI keeps only the tiles whose bounds intersect the area of
// interest, buffered outward by the overlap width so border tiles survive.
// A nil AOI keeps every tile.
func FilterByAOI(tiles []TileDescriptor, aoi *geos.Geom, buffer float64) []TileDescriptor {
	if aoi == nil {
		return tiles
	}
	buffered := aoi.Buffer(buffer, 8)
	defer buffered.Destroy()

	kept := make([]TileDescriptor, 0, len(tiles))
	for _, t := range tiles {
		poly := geos.NewPolygon([][][]float64{t.Bounds.Ring()})
		if buffered.Intersects(poly) {
			kept = append(kept, t)
		}
		poly.Destroy()
	}
	return kept
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func zfill(n, width int) string {
	return fmt.Sprintf("%0*d", width, n)
}
