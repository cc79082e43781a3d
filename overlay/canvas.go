package overlay

import (
	"io"
	"math"
	"time"

	"codeberg.org/go-pdf/fpdf"
)

// Canvas receives overlay drawing calls. Coordinates are PDF points with a
// bottom-left origin.
type Canvas interface {
	RegisterFont(family string, bold bool, data []byte) error
	DrawText(text string, x, y float64, opts TextOptions) error
	DrawImage(path string, x, y, width, height float64) error
	Output(w io.Writer) error
}

// TextOptions configures text drawing.
type TextOptions struct {
	Font     string
	Bold     bool
	FontSize float64
	Color    Color
}

// NewCanvasFunc creates a single-page canvas of the given size. now stamps
// the document dates.
type NewCanvasFunc func(page PageSize, now time.Time) Canvas

type fpdfCanvas struct {
	pdf    *fpdf.Fpdf
	height float64
}

// NewFpdfCanvas returns a Canvas backed by codeberg.org/go-pdf/fpdf.
func NewFpdfCanvas(page PageSize, now time.Time) Canvas {
	pdf := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: page.Width, Ht: page.Height},
	})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(now)
	pdf.SetModificationDate(now)
	pdf.AddPage()
	return &fpdfCanvas{pdf: pdf, height: page.Height}
}

func (c *fpdfCanvas) RegisterFont(family string, bold bool, data []byte) error {
	c.pdf.AddUTF8FontFromBytes(family, style(bold), data)
	return c.pdf.Error()
}

func (c *fpdfCanvas) DrawText(text string, x, y float64, opts TextOptions) error {
	c.pdf.SetFont(opts.Font, style(opts.Bold), opts.FontSize)
	c.pdf.SetTextColor(channel(opts.Color.R), channel(opts.Color.G), channel(opts.Color.B))
	c.pdf.Text(x, c.height-y, text)
	return c.pdf.Error()
}

func (c *fpdfCanvas) DrawImage(path string, x, y, width, height float64) error {
	top := c.height - y - height
	c.pdf.ImageOptions(path, x, top, width, height, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")
	return c.pdf.Error()
}

func (c *fpdfCanvas) Output(w io.Writer) error {
	return c.pdf.Output(w)
}

func style(bold bool) string {
	if bold {
		return "B"
	}
	return ""
}

func channel(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
