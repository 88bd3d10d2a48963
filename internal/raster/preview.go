package raster

import (
	"image"
	"image/color"

	"tileprep/pkg/colorutil"
)

// WritePreviewTIFF renders a categorical grid as a colored TIFF for visual
// inspection. Each class value gets a stable palette color; null cells stay
// transparent. The world file travels along like any other export.
func WritePreviewTIFF(g *Grid, path string) error {
	img := image.NewNRGBA(image.Rect(0, 0, g.Cols(), g.Rows()))
	for row := 0; row < g.Rows(); row++ {
		for col := 0; col < g.Cols(); col++ {
			v, ok := g.Value(row, col)
			if !ok {
				img.SetNRGBA(col, row, color.NRGBA{})
				continue
			}
			c := colorutil.ClassColor(int(v))
			img.SetNRGBA(col, row, color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A})
		}
	}
	if err := encodeTIFF(img, path); err != nil {
		return err
	}
	return writeWorldFile(worldFilePath(path), g.Extent)
}
