// Package training arranges exported tiles into the directory layout a
// model expects and rasterizes label layers into training masks. The model
// itself stays behind a narrow contract; orchestration never looks inside
// model files.
package training

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/twpayne/go-geos"

	"tileprep/internal/raster"
	"tileprep/internal/scene"
	"tileprep/internal/vectorize"
)

// Dataset directory names. Models consume this layout as-is.
const (
	DirTrainImages = "train_images"
	DirTrainMasks  = "train_masks"
	DirValImages   = "val_images"
	DirValMasks    = "val_masks"
	DirApply       = "apply"
)

// Layout creates the dataset directory skeleton under root.
func Layout(root string) error {
	for _, d := range []string{DirTrainImages, DirTrainMasks, DirValImages, DirValMasks, DirApply} {
		if err := os.MkdirAll(filepath.Join(root, d), 0755); err != nil {
			return fmt.Errorf("create %s: %w", d, err)
		}
	}
	return nil
}

// MaskOptions controls label rasterization.
type MaskOptions struct {
	// ClassValues are the allowed class numbers. Any other value in a
	// label layer is a fatal input error.
	ClassValues []int
	// NoClass is the background value written where no label covers.
	NoClass int
}

// CheckClassValues verifies that every feature carries an allowed class
// value. The check runs before any tile work is dispatched, so bad input
// fails the whole run instead of a random subset of tiles.
func CheckClassValues(fc *vectorize.FeatureCollection, opts MaskOptions) error {
	allowed := map[int]bool{opts.NoClass: true}
	for _, c := range opts.ClassValues {
		allowed[c] = true
	}
	var bad []int
	seen := map[int]bool{}
	for _, f := range fc.Features {
		c := f.Class()
		if !allowed[c] && !seen[c] {
			seen[c] = true
			bad = append(bad, c)
		}
	}
	if len(bad) > 0 {
		sort.Ints(bad)
		return fmt.Errorf("label layer contains unexpected class values %v, allowed are %v plus no-class %d",
			bad, opts.ClassValues, opts.NoClass)
	}
	return nil
}

// RasterizeMask burns a tile's label features into a mask raster over the
// given region. Cells covered by a feature get its class value; remaining
// cells get the no-class value. A layer carrying only no-class labels
// produces a uniform raster and a warning rather than an error.
func RasterizeMask(fc *vectorize.FeatureCollection, reg scene.Region, opts MaskOptions) (*raster.Grid, []string, error) {
	ext, err := scene.NewExtent(reg.Bounds, reg.Res)
	if err != nil {
		return nil, nil, fmt.Errorf("mask extent: %w", err)
	}
	mask := raster.NewFilled(ext, float64(opts.NoClass))

	var warnings []string
	onlyNoClass := true
	for _, f := range fc.Features {
		if f.Class() != opts.NoClass {
			onlyNoClass = false
			break
		}
	}
	if len(fc.Features) == 0 || onlyNoClass {
		warnings = append(warnings, "labels contain no class areas, mask is uniform background")
		return mask, warnings, nil
	}

	for _, f := range fc.Features {
		burnFeature(mask, f)
	}
	return mask, warnings, nil
}

// burnFeature sets every cell whose center lies inside the feature to the
// feature's class value. Bounds pre-filtering keeps the point-in-polygon
// tests to the feature's footprint.
func burnFeature(mask *raster.Grid, f *vectorize.Feature) {
	box := f.Geom.Bounds()
	ext := mask.Extent
	for row := 0; row < ext.Rows; row++ {
		for col := 0; col < ext.Cols; col++ {
			p := mask.CellCenter(row, col)
			if p.X < box.MinX || p.X > box.MaxX || p.Y < box.MinY || p.Y > box.MaxY {
				continue
			}
			pt := geos.NewPoint([]float64{p.X, p.Y})
			if f.Geom.Contains(pt) {
				mask.Set(row, col, float64(f.Class()))
			}
		}
	}
}

// SplitValidation moves a share of training tiles into the validation
// directories. A tile is one image_*.tif entry; its world-file sidecar and
// the matching mask pair travel along, so a tile is never split across the
// two sets. The same seed convention as the dataset splitter applies: nil
// means a fixed source. Returns the moved tile names.
func SplitValidation(root string, share float64, rng *rand.Rand) ([]string, error) {
	if share < 0 || share >= 1 {
		return nil, fmt.Errorf("validation share %.2f out of range", share)
	}
	entries, err := os.ReadDir(filepath.Join(root, DirTrainImages))
	if err != nil {
		return nil, fmt.Errorf("list training images: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), "image_") && strings.HasSuffix(e.Name(), ".tif") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	want := int(share*float64(len(names)) + 0.5)
	if want >= len(names) && len(names) > 0 {
		want = len(names) - 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	rng.Shuffle(len(names), func(i, j int) { names[i], names[j] = names[j], names[i] })

	moved := names[:want]
	for _, name := range moved {
		if err := moveWithSidecar(root, DirTrainImages, DirValImages, name); err != nil {
			return nil, err
		}
		if err := moveWithSidecar(root, DirTrainMasks, DirValMasks, maskName(name)); err != nil {
			return nil, err
		}
	}
	sort.Strings(moved)
	return moved, nil
}

// moveWithSidecar renames a raster file between dataset directories along
// with its world file, when one exists.
func moveWithSidecar(root, from, to, name string) error {
	if err := os.Rename(
		filepath.Join(root, from, name),
		filepath.Join(root, to, name),
	); err != nil {
		return fmt.Errorf("move %s: %w", name, err)
	}
	wld := strings.TrimSuffix(name, filepath.Ext(name)) + ".wld"
	src := filepath.Join(root, from, wld)
	if _, err := os.Stat(src); err != nil {
		return nil
	}
	if err := os.Rename(src, filepath.Join(root, to, wld)); err != nil {
		return fmt.Errorf("move %s: %w", wld, err)
	}
	return nil
}

// maskName maps an image file name to its mask counterpart.
func maskName(imageName string) string {
	const prefix = "image_"
	if len(imageName) > len(prefix) && imageName[:len(prefix)] == prefix {
		return "mask_" + imageName[len(prefix):]
	}
	return "mask_" + imageName
}
