// Command vectorize turns a patched classification raster into a clean
// vector layer: small clumps removed, class polygons dissolved, boundaries
// generalized, optionally smoothed and snapped to a reference layer.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"tileprep/internal/engine"
	"tileprep/internal/raster"
	"tileprep/internal/vectorize"
	"tileprep/internal/version"
)

func main() {
	inPath := flag.String("in", "", "Patched classification TIFF")
	outPath := flag.String("out", "classification.geojson", "Output GeoJSON")
	shpPath := flag.String("shp", "", "Also write a shapefile (optional)")
	epsg := flag.String("epsg", "", "EPSG code of the scene")
	areaThreshold := flag.Float64("area-threshold", 0.0005, "Small-clump removal threshold in map units squared")
	tolerance := flag.Float64("tolerance", 0, "Generalization tolerance in map units (0 = cell size)")
	smooth := flag.Bool("smooth", false, "Round boundaries before straightening")
	keepCorners := flag.Bool("keep-corners", false, "Restore pre-generalization geometry at the end")
	refPath := flag.String("reference", "", "Reference layer GeoJSON to snap the result to (optional)")
	insideThreshold := flag.Float64("ref-inside-threshold", 0, "Sliver threshold inside reference coverage")
	outsideThreshold := flag.Float64("ref-outside-threshold", 0, "Sliver threshold outside reference coverage")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *inPath == "" || *epsg == "" {
		fmt.Println("Usage: vectorize -in <patched.tif> -epsg <code> [options]")
		os.Exit(1)
	}

	g, err := raster.ReadTIFF(*inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", *inPath, err)
		os.Exit(1)
	}
	fmt.Printf("Raster: %dx%d cells at %g map units\n", g.Extent.Rows, g.Extent.Cols, g.Extent.Res)

	eng := engine.NewNative()
	fc, err := eng.Reconcile(g, vectorize.Options{
		AreaThreshold: *areaThreshold,
		Tolerance:     *tolerance,
		Smooth:        *smooth,
		KeepCorners:   *keepCorners,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Vectorization failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Vectorized %d class features (classes %v)\n", len(fc.Features), fc.Classes())

	if *refPath != "" {
		ref, err := vectorize.ReadGeoJSON(*refPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read reference: %v\n", err)
			os.Exit(1)
		}
		fc, err = vectorize.SnapToReference(fc, ref, g.Extent.Bounds, vectorize.SnapOptions{
			InsideThreshold:  *insideThreshold,
			OutsideThreshold: *outsideThreshold,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Reference snapping failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Snapped to reference: %d features\n", len(fc.Features))
	}

	if err := fc.WriteGeoJSON(*outPath, *epsg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *outPath, err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *outPath)

	if *shpPath != "" {
		if !strings.HasSuffix(*shpPath, ".shp") {
			fmt.Fprintf(os.Stderr, "Shapefile output must end in .shp\n")
			os.Exit(1)
		}
		if err := fc.WriteShapefile(*shpPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", *shpPath, err)
			os.Exit(1)
		}
		fmt.Printf("Wrote %s\n", *shpPath)
	}
}
