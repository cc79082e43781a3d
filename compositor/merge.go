package compositor

import (
	"bytes"
	"fmt"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/vainiusl-bpn/pdf-creator/overlay"
)

// stampDesc anchors the overlay at the page's bottom-left corner at its
// own size, unrotated.
const stampDesc = "pos:bl, scale:1 abs, rot:0"

func pdfConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// merge trims the template to its first page, stamps page 1 of the overlay
// on top of it and serializes the result with writeCanonical. The template
// page keeps its content, resources and annotations.
func merge(tpl *Template, page *overlay.Page, now time.Time) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("merge pages: %v", r)
		}
	}()

	var trimmed bytes.Buffer
	if err := api.Trim(bytes.NewReader(tpl.Data), &trimmed, []string{"1"}, pdfConfig()); err != nil {
		return nil, fmt.Errorf("extract first page: %w", err)
	}

	wm, err := api.PDFWatermarkForReadSeeker(page.Reader(), 1, stampDesc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("prepare stamp: %w", err)
	}
	var stamped bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(trimmed.Bytes()), &stamped, nil, wm, pdfConfig()); err != nil {
		return nil, fmt.Errorf("stamp overlay: %w", err)
	}

	ctx, err := api.ReadContext(bytes.NewReader(stamped.Bytes()), pdfConfig())
	if err != nil {
		return nil, fmt.Errorf("read stamped page: %w", err)
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, ctx, now); err != nil {
		return nil, fmt.Errorf("serialize: %w", err)
	}
	return buf.Bytes(), nil
}
