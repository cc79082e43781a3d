package qr

import (
	"image"
	"image/color"

	xdraw "golang.org/x/image/draw"
)

// Symbol is an encoded QR code. Modules[y][x] is true for a dark module.
type Symbol struct {
	Content string
	Modules [][]bool
}

// Size returns the number of modules per side.
func (s *Symbol) Size() int {
	return len(s.Modules)
}

// Image rasterizes the symbol black on white with modulePx pixels per module.
// Values below 1 are treated as 1.
func (s *Symbol) Image(modulePx int) *image.Gray {
	n := s.Size()
	base := image.NewGray(image.Rect(0, 0, n, n))
	for y, row := range s.Modules {
		for x, dark := range row {
			c := color.Gray{Y: 0xff}
			if dark {
				c = color.Gray{Y: 0}
			}
			base.SetGray(x, y, c)
		}
	}
	if modulePx <= 1 {
		return base
	}
	scaled := image.NewGray(image.Rect(0, 0, n*modulePx, n*modulePx))
	xdraw.NearestNeighbor.Scale(scaled, scaled.Bounds(), base, base.Bounds(), xdraw.Src, nil)
	return scaled
}
