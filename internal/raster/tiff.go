package raster

import (
	"bufio"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"

	"tileprep/internal/scene"
	"tileprep/pkg/geometry"
)

// File-backed tile artifacts are deflate-compressed TIFFs with an ESRI world
// file sidecar carrying the georeference. Categorical and byte-range bands
// are stored as 8-bit grayscale; band stacks of up to four bands as NRGBA.

// nullValue marks missing data in exported byte rasters. Classification
// tiles use small class numbers, so the top of the byte range is safe.
const nullValue = 255

// WriteTIFF writes a single-band grid as an 8-bit grayscale TIFF plus world
// file. Data cells must already be in [0, 254]; null cells become nullValue.
func WriteTIFF(g *Grid, path string) error {
	img := image.NewGray(image.Rect(0, 0, g.Cols(), g.Rows()))
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			v, ok := g.Value(row, col)
			if !ok {
				img.SetGray(col, row, color.Gray{Y: nullValue})
				continue
			}
			img.SetGray(col, row, color.Gray{Y: uint8(v)})
		}
	}
	if err := encodeTIFF(img, path); err != nil {
		return err
	}
	return writeWorldFile(worldFilePath(path), g.Extent)
}

// WriteStackTIFF writes up to four single-band grids as one interleaved
// NRGBA TIFF plus world file. All bands must share an extent. Missing bands
// pad with zero; a missing alpha band pads opaque.
func WriteStackTIFF(bands []*Grid, path string) error {
	if len(bands) == 0 || len(bands) > 4 {
		return fmt.Errorf("write stack: need 1-4 bands, got %d", len(bands))
	}
	ext := bands[0].Extent
	for _, b := range bands[1:] {
		if b.Extent != ext {
			return fmt.Errorf("write stack: band extents differ")
		}
	}

	img := image.NewNRGBA(image.Rect(0, 0, ext.Cols, ext.Rows))
	for row := 0; row < ext.Rows; row++ {
		for col := 0; col < ext.Cols; col++ {
			var px [4]uint8
			px[3] = 0xff
			for i, b := range bands {
				if v, ok := b.Value(row, col); ok {
					px[i] = uint8(v)
				}
			}
			img.SetNRGBA(col, row, color.NRGBA{R: px[0], G: px[1], B: px[2], A: px[3]})
		}
	}
	if err := encodeTIFF(img, path); err != nil {
		return err
	}
	return writeWorldFile(worldFilePath(path), ext)
}

func encodeTIFF(img image.Image, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// ReadTIFF reads a single-band grayscale TIFF with its world file back into
// a grid. Cells holding nullValue become null.
func ReadTIFF(path string) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	ext, err := readWorldFile(worldFilePath(path), img.Bounds().Dy(), img.Bounds().Dx())
	if err != nil {
		return nil, err
	}
	g := New(ext)
	b := img.Bounds()
	for row := 0; row < ext.Rows; row++ {
		for col := 0; col < ext.Cols; col++ {
			r, _, _, _ := img.At(b.Min.X+col, b.Min.Y+row).RGBA()
			v := float64(r >> 8)
			if v == nullValue {
				continue
			}
			g.Set(row, col, v)
		}
	}
	return g, nil
}

func worldFilePath(tiffPath string) string {
	return strings.TrimSuffix(tiffPath, filepath.Ext(tiffPath)) + ".wld"
}

// writeWorldFile writes the six-line ESRI world file for a north-up grid:
// x res, rotations (0), negative y res, and the center of the top-left cell.
func writeWorldFile(path string, ext scene.Extent) error {
	var sb strings.Builder
	center := geometry.Point2D{
		X: ext.Bounds.West + ext.Res/2,
		Y: ext.Bounds.North - ext.Res/2,
	}
	for _, v := range []float64{ext.Res, 0, 0, -ext.Res, center.X, center.Y} {
		fmt.Fprintf(&sb, "%.10f\n", v)
	}
	if err := os.WriteFile(path, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("write world file: %w", err)
	}
	return nil
}

func readWorldFile(path string, rows, cols int) (scene.Extent, error) {
	f, err := os.Open(path)
	if err != nil {
		return scene.Extent{}, fmt.Errorf("open world file: %w", err)
	}
	defer f.Close()

	var vals []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return scene.Extent{}, fmt.Errorf("parse world file %s: %w", path, err)
		}
		vals = append(vals, v)
	}
	if err := sc.Err(); err != nil {
		return scene.Extent{}, fmt.Errorf("read world file: %w", err)
	}
	if len(vals) != 6 {
		return scene.Extent{}, fmt.Errorf("world file %s: want 6 values, got %d", path, len(vals))
	}
	res := vals[0]
	west := vals[4] - res/2
	north := vals[5] + res/2
	bounds := geometry.Bounds{
		North: north,
		South: north - float64(rows)*res,
		East:  west + float64(cols)*res,
		West:  west,
	}
	return scene.NewExtent(bounds, res)
}
