package vectorize

import (
	"fmt"

	"tileprep/internal/raster"
)

// Options configures seam reconciliation.
type Options struct {
	// AreaThreshold removes clumps below this area, in map units squared,
	// before vectorization. Zero disables removal.
	AreaThreshold float64
	// Tolerance is the generalization tolerance in map units. Zero means
	// derive it from the raster resolution.
	Tolerance float64
	// Smooth rounds boundaries before straightening.
	Smooth bool
	// KeepCorners restores the pre-generalization geometry once more at
	// the very end.
	KeepCorners bool
}

// DefaultOptions returns the reconciliation defaults.
func DefaultOptions() Options {
	return Options{AreaThreshold: 0.0005}
}

// Reconcile turns a patched class raster into a clean vector layer. Small
// clumps are absorbed in the raster domain first, then the raster is
// vectorized, dissolved by class, optionally smoothed with corner
// restoration, and finally straightened in two passes.
func Reconcile(g *raster.Grid, opts Options) (*FeatureCollection, error) {
	tolerance := opts.Tolerance
	if tolerance == 0 {
		tolerance = g.Extent.Res
	}

	cleaned := g.RemoveSmallAreas(opts.AreaThreshold)

	fc, err := Vectorize(cleaned)
	if err != nil {
		return nil, fmt.Errorf("vectorize: %w", err)
	}
	fc, err = Dissolve(fc)
	if err != nil {
		return nil, fmt.Errorf("dissolve: %w", err)
	}

	if opts.Smooth {
		smoothed, err := Smooth(fc)
		if err != nil {
			return nil, fmt.Errorf("smooth: %w", err)
		}
		fc, err = RestoreCorners(smoothed, fc)
		if err != nil {
			return nil, fmt.Errorf("restore corners: %w", err)
		}
	}

	preFinal := fc
	fc, err = Generalize(fc, tolerance)
	if err != nil {
		return nil, fmt.Errorf("generalize: %w", err)
	}

	if opts.KeepCorners {
		fc, err = RestoreCorners(fc, preFinal)
		if err != nil {
			return nil, fmt.Errorf("restore corners: %w", err)
		}
	}
	return fc, nil
}
