// Command preparedata tiles a scene into overlapping training and apply
// tiles: it plans the tile grid, classifies tile coverage, splits the tiles
// into datasets, exports per-tile data and writes the tile index.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"strings"

	"github.com/twpayne/go-geos"

	"tileprep/internal/classify"
	"tileprep/internal/dispatch"
	"tileprep/internal/export"
	"tileprep/internal/grid"
	"tileprep/internal/index"
	"tileprep/internal/raster"
	"tileprep/internal/scene"
	"tileprep/internal/split"
	"tileprep/internal/vectorize"
	"tileprep/internal/version"
	"tileprep/internal/workspace"
)

func main() {
	images := flag.String("image", "", "Comma-separated image band TIFFs, first band is the coverage reference")
	dsmPath := flag.String("dsm", "", "Surface model TIFF (optional, with -dtm)")
	dtmPath := flag.String("dtm", "", "Terrain model TIFF (optional, with -dsm)")
	labelPath := flag.String("labels", "", "Reference label GeoJSON (optional)")
	aoiPath := flag.String("aoi", "", "Area of interest GeoJSON (optional)")
	outDir := flag.String("out", "tiles", "Output directory")
	tileSize := flag.Int("tile-size", 512, "Tile edge length in cells")
	overlap := flag.Int("overlap", 128, "Tile overlap in cells")
	suffix := flag.String("suffix", "", "Suffix appended to tile names")
	trainPct := flag.Float64("train-percent", 30, "Share of all tiles requested for training")
	onlyTraining := flag.Bool("only-training", false, "Mark every fully covered tile for training")
	onlyApply := flag.Bool("only-apply", false, "Skip training selection entirely")
	segmentFallback := flag.Bool("segment-fallback", false, "Derive labels by segmentation when -labels is not given")
	seed := flag.Int64("seed", 0, "Random seed for the dataset split (0 = fixed default)")
	workers := flag.Int("workers", 4, "Concurrent tile tasks")
	epsg := flag.String("epsg", "", "EPSG code of the scene")
	stylePath := flag.String("style", "", "Label style descriptor to copy next to the index (optional)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *images == "" || *epsg == "" {
		fmt.Println("Usage: preparedata -image <band.tif[,band2.tif...]> -epsg <code> [options]")
		os.Exit(1)
	}

	bandPaths := strings.Split(*images, ",")
	bands := make([]raster.Source, 0, len(bandPaths))
	var ext scene.Extent
	for i, p := range bandPaths {
		g, err := raster.ReadTIFF(strings.TrimSpace(p))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read band %s: %v\n", p, err)
			os.Exit(1)
		}
		if i == 0 {
			ext = g.Extent
		}
		bands = append(bands, g)
	}
	fmt.Printf("Scene: %dx%d cells at %g map units\n", ext.Rows, ext.Cols, ext.Res)

	var dsm, dtm raster.Source
	if *dsmPath != "" && *dtmPath != "" {
		var err error
		if dsm, err = raster.ReadTIFF(*dsmPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read surface model: %v\n", err)
			os.Exit(1)
		}
		if dtm, err = raster.ReadTIFF(*dtmPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read terrain model: %v\n", err)
			os.Exit(1)
		}
	}

	var labels *vectorize.FeatureCollection
	if *labelPath != "" {
		var err error
		labels, err = vectorize.ReadGeoJSON(*labelPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read labels: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Labels: %d features, classes %v\n", len(labels.Features), labels.Classes())
	}

	opts := grid.Options{TileSize: *tileSize, Overlap: *overlap, Suffix: *suffix}
	tiles, err := grid.Plan(ext, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Grid planning failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Planned %d tiles (%dx%d cells, overlap %d)\n", len(tiles), *tileSize, *tileSize, *overlap)

	if *aoiPath != "" {
		aoiFC, err := vectorize.ReadGeoJSON(*aoiPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read AOI: %v\n", err)
			os.Exit(1)
		}
		geoms := make([]*geos.Geom, 0, len(aoiFC.Features))
		for _, f := range aoiFC.Features {
			geoms = append(geoms, f.Geom)
		}
		aoi, err := vectorize.CascadedUnion(geoms)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to merge AOI: %v\n", err)
			os.Exit(1)
		}
		before := len(tiles)
		tiles = grid.FilterByAOI(tiles, aoi, float64(*overlap)*ext.Res)
		fmt.Printf("AOI filter kept %d of %d tiles\n", len(tiles), before)
	}

	rc, err := workspace.NewRunContext(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create run context: %v\n", err)
		os.Exit(1)
	}
	defer rc.Close()

	base := scene.FromExtent(ext)
	iso := workspace.NewIsolator(rc, base)
	d := dispatch.New(*workers, iso)
	ctx := context.Background()

	// Tile coverage. The apply-only path takes every tile as covered and
	// skips the batch.
	var eligible []string
	if *onlyApply {
		for i := range tiles {
			tiles[i].HasData = true
		}
	} else {
		fmt.Printf("\nClassifying tile coverage...\n")
		tasks := make([]dispatch.Task, 0, len(tiles))
		ctasks := make([]*classify.Task, 0, len(tiles))
		for _, t := range tiles {
			ct := &classify.Task{Tile: t, Reference: bands[0]}
			ctasks = append(ctasks, ct)
			tasks = append(tasks, ct)
		}
		results, err := d.RunBatch(ctx, tasks)
		// Completed tasks report even when the batch stopped early.
		for _, r := range results {
			fmt.Print(r.Output)
		}
		for _, w := range dispatch.CollectWarnings(results) {
			fmt.Printf("WARNING: %s\n", w)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Coverage batch failed: %v\n", err)
			os.Exit(1)
		}
		eligible = classify.Apply(tiles, classify.ResultMap(ctasks))
		fmt.Printf("%d of %d tiles fully covered\n", len(eligible), len(tiles))
	}

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewSource(*seed))
	}
	outcome, err := split.Assign(tiles, eligible, split.Options{
		Percentage:   *trainPct,
		OnlyTraining: *onlyTraining,
		OnlyApply:    *onlyApply,
		Rand:         rng,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Dataset split failed: %v\n", err)
		os.Exit(1)
	}
	for _, w := range outcome.Warnings {
		fmt.Printf("WARNING: %s\n", w)
	}
	fmt.Printf("Training tiles: %d of %d requested\n", outcome.Selected, outcome.Requested)

	// Export batch. Training tiles additionally carry a label layer.
	fmt.Printf("\nExporting tiles to %s...\n", *outDir)
	var etasks []dispatch.Task
	for i := range tiles {
		if tiles[i].Role == grid.RoleExcluded || tiles[i].Role == grid.RoleUnassigned {
			continue
		}
		in := export.Inputs{
			Bands:     bands,
			DSM:       dsm,
			DTM:       dtm,
			EPSG:      *epsg,
			OutputDir: *outDir,
		}
		if tiles[i].Role == grid.RoleTraining {
			in.Labels = labels
			in.SegmentFallback = *segmentFallback
		}
		tiles[i].OutputPath = filepath.Join(*outDir, "image_"+tiles[i].Name+".tif")
		etasks = append(etasks, &export.Task{Tile: tiles[i], Inputs: in})
	}
	results, err := d.RunBatch(ctx, etasks)
	for _, r := range results {
		fmt.Print(r.Output)
	}
	for _, w := range dispatch.CollectWarnings(results) {
		fmt.Printf("WARNING: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Export batch failed: %v\n", err)
		os.Exit(1)
	}

	idx, err := index.Build(*epsg, tiles)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Index build failed: %v\n", err)
		os.Exit(1)
	}
	if dropped := idx.Prune(); dropped > 0 {
		fmt.Printf("Dropped %d tiles without data from the index\n", dropped)
	}

	geojsonPath := filepath.Join(*outDir, "tindex.geojson")
	if err := idx.WriteGeoJSON(geojsonPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write tile index: %v\n", err)
		os.Exit(1)
	}
	shpPath := filepath.Join(*outDir, "tindex.shp")
	if err := idx.WriteShapefile(shpPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write index container: %v\n", err)
		os.Exit(1)
	}
	if *stylePath != "" {
		if err := index.CopyStyle(*stylePath, filepath.Join(*outDir, "tindex.qml")); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to copy style: %v\n", err)
			os.Exit(1)
		}
	}

	fmt.Printf("\nTile index:\n")
	idx.VerificationDump(os.Stdout, shpPath)
	fmt.Printf("\nDone: %d tiles indexed\n", idx.Len())
}
