package compositor

import (
	"path/filepath"
	"time"
)

// DefaultOutputDir receives generated files when no output path is given.
const DefaultOutputDir = "pdfs"

const timestampLayout = "20060102_150405"

// TimestampedPath returns dir/price_overlay_YYYYMMDD_HHMMSS.pdf for t.
func TimestampedPath(dir string, t time.Time) string {
	return filepath.Join(dir, "price_overlay_"+t.Format(timestampLayout)+".pdf")
}
