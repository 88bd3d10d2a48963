// Package colorutil assigns display colors to class values for raster
// previews and style output.
package colorutil

import (
	"image/color"
	"math"
)

// Fixed colors for common mask values.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// ClassColor returns a stable, well-separated color for a class value.
// Hues advance by the golden angle so nearby class numbers stay visually
// distinct. Class 0 is background and renders black.
func ClassColor(class int) color.RGBA {
	if class <= 0 {
		return Black
	}
	h := math.Mod(float64(class-1)*137.508, 360)
	r, g, b := HSVToRGB(h, 0.85, 0.95)
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

// HSVToRGB converts H (0-360), S and V (0-1) to 8-bit RGB.
func HSVToRGB(h, s, v float64) (r, g, b uint8) {
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var rf, gf, bf float64
	switch {
	case h < 60:
		rf, gf, bf = c, x, 0
	case h < 120:
		rf, gf, bf = x, c, 0
	case h < 180:
		rf, gf, bf = 0, c, x
	case h < 240:
		rf, gf, bf = 0, x, c
	case h < 300:
		rf, gf, bf = x, 0, c
	default:
		rf, gf, bf = c, 0, x
	}
	return uint8((rf + m) * 255), uint8((gf + m) * 255), uint8((bf + m) * 255)
}

// RGBToHSV converts 8-bit RGB to H (0-360), S and V (0-1).
func RGBToHSV(r, g, b float64) (h, s, v float64) {
	r /= 255.0
	g /= 255.0
	b /= 255.0

	maxC := math.Max(r, math.Max(g, b))
	minC := math.Min(r, math.Min(g, b))
	diff := maxC - minC

	v = maxC
	if maxC > 0 {
		s = diff / maxC
	}

	switch {
	case diff == 0:
		h = 0
	case maxC == r:
		h = 60 * math.Mod((g-b)/diff, 6)
	case maxC == g:
		h = 60 * ((b-r)/diff + 2)
	default:
		h = 60 * ((r-g)/diff + 4)
	}
	if h < 0 {
		h += 360
	}
	return h, s, v
}
