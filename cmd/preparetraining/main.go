// Command preparetraining arranges exported tiles into the dataset layout a
// segmentation model consumes: training images with rasterized label masks,
// a validation split, and the apply set. Optionally it runs the model's
// train and evaluate steps through the external model contract.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tileprep/internal/raster"
	"tileprep/internal/scene"
	"tileprep/internal/training"
	"tileprep/internal/vectorize"
)

func main() {
	dataDir := flag.String("data", "tiles", "Directory with exported tiles")
	outRoot := flag.String("out", "dataset", "Dataset root directory")
	classList := flag.String("classes", "", "Comma-separated allowed class values")
	noClass := flag.Int("no-class", 0, "Background class value")
	valPct := flag.Float64("val-percent", 20, "Share of training tiles moved to validation")
	seed := flag.Int64("seed", 0, "Random seed for the validation split (0 = fixed default)")
	modelExe := flag.String("model", "", "External model executable (optional)")
	modelDirFlag := flag.String("model-dir", "", "Existing model directory; skips training")
	infer := flag.Bool("infer", false, "Classify the apply tiles with the model")
	classNames := flag.String("class-names", "", "Comma-separated class names for evaluation")
	flag.Parse()

	if *classList == "" {
		fmt.Println("Usage: preparetraining -classes <v1,v2,...> [options]")
		os.Exit(1)
	}
	classValues, err := parseInts(*classList)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Bad -classes value: %v\n", err)
		os.Exit(1)
	}
	maskOpts := training.MaskOptions{ClassValues: classValues, NoClass: *noClass}

	if err := training.Layout(*outRoot); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create dataset layout: %v\n", err)
		os.Exit(1)
	}

	entries, err := os.ReadDir(*dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to list %s: %v\n", *dataDir, err)
		os.Exit(1)
	}

	// Validate every label layer before any tile work: one bad class value
	// fails the whole run up front.
	type tile struct {
		name      string
		imagePath string
		labels    *vectorize.FeatureCollection
	}
	var tiles []tile
	for _, e := range entries {
		name, ok := strings.CutPrefix(e.Name(), "image_")
		if !ok || !strings.HasSuffix(name, ".tif") {
			continue
		}
		name = strings.TrimSuffix(name, ".tif")
		t := tile{name: name, imagePath: filepath.Join(*dataDir, e.Name())}
		labelPath := filepath.Join(*dataDir, "label_"+name+".geojson")
		if _, err := os.Stat(labelPath); err == nil {
			t.labels, err = vectorize.ReadGeoJSON(labelPath)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", labelPath, err)
				os.Exit(1)
			}
			if err := training.CheckClassValues(t.labels, maskOpts); err != nil {
				fmt.Fprintf(os.Stderr, "Tile %s: %v\n", name, err)
				os.Exit(1)
			}
		}
		tiles = append(tiles, t)
	}
	fmt.Printf("Found %d tiles in %s\n", len(tiles), *dataDir)

	trainCount, applyCount := 0, 0
	for _, t := range tiles {
		if t.labels == nil {
			if err := copyFile(t.imagePath, filepath.Join(*outRoot, training.DirApply, filepath.Base(t.imagePath))); err != nil {
				fmt.Fprintf(os.Stderr, "Failed to stage %s: %v\n", t.name, err)
				os.Exit(1)
			}
			applyCount++
			continue
		}

		img, err := raster.ReadTIFF(t.imagePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read %s: %v\n", t.imagePath, err)
			os.Exit(1)
		}
		mask, warnings, err := training.RasterizeMask(t.labels, scene.FromExtent(img.Extent), maskOpts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to rasterize %s: %v\n", t.name, err)
			os.Exit(1)
		}
		for _, w := range warnings {
			fmt.Printf("WARNING: tile %s: %s\n", t.name, w)
		}
		if err := copyFile(t.imagePath, filepath.Join(*outRoot, training.DirTrainImages, filepath.Base(t.imagePath))); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to stage %s: %v\n", t.name, err)
			os.Exit(1)
		}
		maskPath := filepath.Join(*outRoot, training.DirTrainMasks, "mask_"+t.name+".tif")
		if err := raster.WriteTIFF(mask, maskPath); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write %s: %v\n", maskPath, err)
			os.Exit(1)
		}
		trainCount++
	}
	fmt.Printf("Staged %d training and %d apply tiles\n", trainCount, applyCount)

	var rng *rand.Rand
	if *seed != 0 {
		rng = rand.New(rand.NewSource(*seed))
	}
	moved, err := training.SplitValidation(*outRoot, *valPct/100, rng)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation split failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Moved %d tiles to validation\n", len(moved))

	if *modelExe == "" {
		fmt.Printf("Done: dataset ready under %s\n", *outRoot)
		return
	}

	model := &training.ExternalModel{Executable: *modelExe}
	ctx := context.Background()
	numClasses := len(classValues) + 1

	modelDir := *modelDirFlag
	if modelDir == "" {
		fmt.Printf("\nTraining model...\n")
		trainedDir, metricsDir, err := model.Train(ctx, *outRoot, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Training failed: %v\n", err)
			os.Exit(1)
		}
		modelDir = trainedDir
		fmt.Printf("Model: %s\nTraining metrics: %s\n", modelDir, metricsDir)

		var names []string
		if *classNames != "" {
			names = strings.Split(*classNames, ",")
		}
		evalDir, err := model.Evaluate(ctx, *outRoot, modelDir, numClasses, names)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Evaluation failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Evaluation results: %s\n", evalDir)
	}

	if *infer {
		fmt.Printf("\nClassifying apply tiles...\n")
		resultDir, err := model.Infer(ctx, *outRoot, modelDir, numClasses)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Inference failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Classified tiles: %s\n", resultDir)
	}
}

func parseInts(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	// World file travels with the image.
	wld := strings.TrimSuffix(src, filepath.Ext(src)) + ".wld"
	if data, err := os.ReadFile(wld); err == nil {
		dstWld := strings.TrimSuffix(dst, filepath.Ext(dst)) + ".wld"
		if err := os.WriteFile(dstWld, data, 0644); err != nil {
			return err
		}
	}
	return nil
}
