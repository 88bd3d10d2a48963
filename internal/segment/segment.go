// Package segment produces class rasters from image bands by unsupervised
// clustering. It is the fallback classifier used when no trained model is
// available for a scene.
package segment

import (
	"fmt"
	"sort"

	"gocv.io/x/gocv"

	"tileprep/internal/raster"
)

// Options controls the clustering.
type Options struct {
	// Classes is the number of clusters to form.
	Classes int
	// Attempts is the number of k-means restarts; the best labeling wins.
	Attempts int
	// MinArea drops segments smaller than this many map units squared.
	// Zero keeps every segment.
	MinArea float64
}

// DefaultOptions returns sensible clustering parameters.
func DefaultOptions() Options {
	return Options{
		Classes:  5,
		Attempts: 10,
	}
}

// Classify clusters the given bands cell by cell and returns a class raster
// with values 1..Classes. Cells that are null in any band stay null. All
// bands must share the extent of the first.
func Classify(bands []*raster.Grid, opts Options) (*raster.Grid, error) {
	if len(bands) == 0 {
		return nil, fmt.Errorf("no bands to classify")
	}
	if opts.Classes < 2 {
		return nil, fmt.Errorf("need at least 2 classes, got %d", opts.Classes)
	}
	ext := bands[0].Extent
	for i, b := range bands[1:] {
		if b.Extent.Rows != ext.Rows || b.Extent.Cols != ext.Cols {
			return nil, fmt.Errorf("band %d extent mismatch", i+1)
		}
	}

	// Collect feature vectors for data cells only.
	type cell struct{ row, col int }
	var cells []cell
	for row := 0; row < ext.Rows; row++ {
		for col := 0; col < ext.Cols; col++ {
			ok := true
			for _, b := range bands {
				if _, has := b.Value(row, col); !has {
					ok = false
					break
				}
			}
			if ok {
				cells = append(cells, cell{row, col})
			}
		}
	}
	out := raster.New(ext)
	if len(cells) < opts.Classes {
		return out, nil
	}

	pixels := gocv.NewMatWithSize(len(cells), len(bands), gocv.MatTypeCV32F)
	defer pixels.Close()
	for i, c := range cells {
		for j, b := range bands {
			v, _ := b.Value(c.row, c.col)
			pixels.SetFloatAt(i, j, float32(v))
		}
	}

	labels := gocv.NewMat()
	defer labels.Close()
	centers := gocv.NewMat()
	defer centers.Close()

	attempts := opts.Attempts
	if attempts < 1 {
		attempts = 1
	}
	criteria := gocv.NewTermCriteria(gocv.EPS+gocv.MaxIter, 100, 0.2)
	gocv.KMeans(pixels, opts.Classes, &labels, criteria, attempts, gocv.KMeansRandomCenters, &centers)

	// Renumber clusters by ascending mean of the first band so class
	// values are stable across runs with the same data.
	order := clusterOrder(centers, opts.Classes)
	for i, c := range cells {
		cluster := int(labels.GetIntAt(i, 0))
		out.Set(c.row, c.col, float64(order[cluster]+1))
	}

	if opts.MinArea > 0 {
		out = out.RemoveSmallAreas(opts.MinArea)
	}
	return out, nil
}

// clusterOrder maps each cluster index to its rank by first-band center.
func clusterOrder(centers gocv.Mat, k int) []int {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		return centers.GetFloatAt(idx[a], 0) < centers.GetFloatAt(idx[b], 0)
	})
	order := make([]int, k)
	for rank, cluster := range idx {
		order[cluster] = rank
	}
	return order
}
