// Package split assigns tiles to the training and apply datasets. The
// requested percentage always refers to the full grid, not to the eligible
// subset, so a sparse scene yields fewer training tiles than asked for
// rather than silently shifting the ratio.
package split

import (
	"fmt"
	"math"
	"math/rand"

	"tileprep/internal/grid"
)

// Options controls the split.
type Options struct {
	// Percentage of all grid tiles requested for training, 0..100.
	Percentage float64
	// OnlyTraining marks every eligible tile for training.
	OnlyTraining bool
	// OnlyApply skips training selection entirely.
	OnlyApply bool
	// Rand drives the selection. Nil means a fixed-seed source so repeated
	// runs over the same scene pick the same tiles.
	Rand *rand.Rand
}

// Outcome reports what the splitter actually did.
type Outcome struct {
	Requested int
	Selected  int
	Warnings  []string
}

// Assign partitions tiles into training and apply roles in place. tiles is
// the full grid; eligible holds the IDs of tiles with complete data
// coverage. Eligible tiles not selected for training, and every other tile
// with data, become apply tiles. The two sets are disjoint by construction.
func Assign(tiles []grid.TileDescriptor, eligible []string, opts Options) (Outcome, error) {
	if opts.OnlyTraining && opts.OnlyApply {
		return Outcome{}, fmt.Errorf("%w: only-training and only-apply are mutually exclusive", grid.ErrConfiguration)
	}
	if opts.Percentage < 0 || opts.Percentage > 100 {
		return Outcome{}, fmt.Errorf("%w: training percentage %.1f out of range", grid.ErrConfiguration, opts.Percentage)
	}

	pct := opts.Percentage
	if opts.OnlyTraining {
		pct = 100
	}
	if opts.OnlyApply {
		pct = 0
	}

	var out Outcome
	want := int(math.Round(pct / 100 * float64(len(tiles))))
	out.Requested = want

	if want > len(eligible) {
		effective := 0.0
		if len(tiles) > 0 {
			effective = float64(len(eligible)) / float64(len(tiles)) * 100
		}
		out.Warnings = append(out.Warnings, fmt.Sprintf(
			"only %d of %d tiles are fully covered; training share reduced from %.1f%% to %.1f%%",
			len(eligible), len(tiles), pct, effective))
		want = len(eligible)
	}
	out.Selected = want

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	picked := make([]string, len(eligible))
	copy(picked, eligible)
	rng.Shuffle(len(picked), func(i, j int) { picked[i], picked[j] = picked[j], picked[i] })
	training := make(map[string]bool, want)
	for _, id := range picked[:want] {
		training[id] = true
	}

	for i := range tiles {
		switch {
		case training[tiles[i].ID]:
			tiles[i].Role = grid.RoleTraining
		case tiles[i].HasData:
			tiles[i].Role = grid.RoleApply
		default:
			tiles[i].Role = grid.RoleExcluded
		}
	}
	return out, nil
}

// Validation carves a validation subset out of the training tiles. share is
// a fraction of the training set, e.g. 0.2. At least one tile stays in
// training when any were assigned.
func Validation(tiles []grid.TileDescriptor, share float64, rng *rand.Rand) (Outcome, error) {
	if share < 0 || share >= 1 {
		return Outcome{}, fmt.Errorf("%w: validation share %.2f out of range", grid.ErrConfiguration, share)
	}
	var trainIdx []int
	for i := range tiles {
		if tiles[i].Role == grid.RoleTraining {
			trainIdx = append(trainIdx, i)
		}
	}
	want := int(math.Round(share * float64(len(trainIdx))))
	if want >= len(trainIdx) && len(trainIdx) > 0 {
		want = len(trainIdx) - 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	rng.Shuffle(len(trainIdx), func(i, j int) { trainIdx[i], trainIdx[j] = trainIdx[j], trainIdx[i] })
	for _, i := range trainIdx[:want] {
		tiles[i].Role = grid.RoleValidation
	}
	return Outcome{Requested: want, Selected: want}, nil
}
