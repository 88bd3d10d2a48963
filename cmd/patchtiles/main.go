// Command patchtiles merges per-tile classification rasters into one scene
// raster, trimming unreliable tile edges and filling the gaps from the
// neighbors' overlap.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"tileprep/internal/patch"
	"tileprep/internal/raster"
	"tileprep/internal/version"
)

func main() {
	inDir := flag.String("in", "", "Directory with per-tile classification TIFFs")
	pattern := flag.String("pattern", "*.tif", "Glob pattern for tile files")
	outPath := flag.String("out", "patched.tif", "Merged output TIFF")
	previewPath := flag.String("preview", "", "Also write a colored preview TIFF (optional)")
	edgeCut := flag.Int("edge-cut", 0, "Trim width per tile side in cells")
	areaThreshold := flag.Float64("area-threshold", 0.0005, "Small-clump removal threshold in map units squared (0 disables)")
	preserveBorders := flag.Bool("preserve-borders", false, "Fill scene-boundary pixels from untrimmed tiles")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *inDir == "" {
		fmt.Println("Usage: patchtiles -in <dir> [-edge-cut N] [-out patched.tif]")
		os.Exit(1)
	}

	matches, err := filepath.Glob(filepath.Join(*inDir, *pattern))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad pattern: %v\n", err)
		os.Exit(1)
	}
	if len(matches) == 0 {
		fmt.Fprintf(os.Stderr, "No tiles match %s in %s\n", *pattern, *inDir)
		os.Exit(1)
	}
	sort.Strings(matches)

	tiles := make([]*raster.Grid, 0, len(matches))
	for _, m := range matches {
		g, err := raster.ReadTIFF(m)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", m, err)
			os.Exit(1)
		}
		tiles = append(tiles, g)
	}
	fmt.Printf("Loaded %d tiles\n", len(tiles))

	merged, err := patch.Merge(tiles, patch.Options{
		EdgeCutCells:    *edgeCut,
		AreaThreshold:   *areaThreshold,
		PreserveBorders: *preserveBorders,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Patching failed: %v\n", err)
		os.Exit(1)
	}

	if err := raster.WriteTIFF(merged, *outPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		os.Exit(1)
	}

	fmt.Printf("Merged raster: %dx%d cells\n", merged.Extent.Rows, merged.Extent.Cols)
	fmt.Printf("%s\n", merged.Stats())
	fmt.Printf("Wrote %s\n", *outPath)

	if *previewPath != "" {
		if err := raster.WritePreviewTIFF(merged, *previewPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *previewPath, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *previewPath)
	}
}
