package qr

import (
	"fmt"
	"image"
	"image/png"
	"os"
)

const tempPattern = "qr-overlay-*.png"

// WithTempPNG writes img to a temporary PNG in dir (os.TempDir when empty),
// calls fn with its path and removes the file before returning, whether fn
// succeeds, fails or panics.
func WithTempPNG(dir string, img image.Image, fn func(path string) error) (err error) {
	f, err := os.CreateTemp(dir, tempPattern)
	if err != nil {
		return fmt.Errorf("qr: create temp raster: %w", err)
	}
	path := f.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) && err == nil {
			err = fmt.Errorf("qr: remove temp raster: %w", rmErr)
		}
	}()

	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("qr: write temp raster: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("qr: close temp raster: %w", err)
	}
	return fn(path)
}
