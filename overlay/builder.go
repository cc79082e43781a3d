package overlay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vainiusl-bpn/pdf-creator/fonts"
	"github.com/vainiusl-bpn/pdf-creator/observability"
	"github.com/vainiusl-bpn/pdf-creator/qr"
	"github.com/vainiusl-bpn/pdf-creator/recovery"
)

// Options configures a Builder. Zero values select the defaults.
type Options struct {
	Fields         []FieldSpec
	Layout         Layout
	FontCandidates []fonts.Candidate
	// FontStrategy is called once per Build so recorded failures never
	// carry over between documents. Nil selects a lenient strategy.
	FontStrategy func() recovery.Strategy
	Encoder      qr.Encoder
	// TempDir receives the transient QR raster; empty means os.TempDir.
	TempDir   string
	Now       func() time.Time
	NewCanvas NewCanvasFunc
	Logger    observability.Logger
}

// Builder renders the overlay page.
type Builder struct {
	opts Options
}

// NewBuilder fills unset options with defaults. A nil FontCandidates slice
// selects fonts.DefaultCandidates; an empty one goes straight to the fallback.
func NewBuilder(opts Options) *Builder {
	if opts.Fields == nil {
		opts.Fields = DefaultFieldSpecs()
	}
	if opts.Layout == (Layout{}) {
		opts.Layout = DefaultLayout()
	}
	if opts.FontCandidates == nil {
		opts.FontCandidates = fonts.DefaultCandidates()
	}
	if opts.FontStrategy == nil {
		opts.FontStrategy = func() recovery.Strategy { return recovery.NewLenientStrategy() }
	}
	if opts.Encoder == nil {
		opts.Encoder = qr.Skip2Encoder{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewCanvas == nil {
		opts.NewCanvas = NewFpdfCanvas
	}
	if opts.Logger == nil {
		opts.Logger = observability.NopLogger{}
	}
	return &Builder{opts: opts}
}

// Page is a finished in-memory overlay document.
type Page struct {
	Data []byte
	Size PageSize
	// Fonts records which font family was resolved for the text fields. It
	// is zero when no field is drawn.
	Fonts fonts.Resolution
	// Payload is the normalized QR payload; empty when no QR was drawn.
	Payload string
	// Drawn lists the keys of the text fields rendered on the page.
	Drawn []string
}

// Reader returns the document positioned at its start.
func (p *Page) Reader() io.ReadSeeker {
	return bytes.NewReader(p.Data)
}

// Build renders the enabled text fields and, when payload normalizes to a
// non-empty string, a QR code into a single transparent page.
func (b *Builder) Build(ctx context.Context, fields Fields, payload string) (*Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := b.opts.Logger

	values := make([]string, len(b.opts.Fields))
	for i, spec := range b.opts.Fields {
		values[i] = spec.value(fields)
	}

	var resolved fonts.Resolution
	if b.drawsText() {
		resolver := &fonts.Resolver{
			Candidates: b.opts.FontCandidates,
			Sample:     strings.Join(values, " "),
			Strategy:   b.opts.FontStrategy(),
			Logger:     log,
		}
		var err error
		resolved, err = resolver.Resolve()
		if err != nil {
			return nil, fmt.Errorf("overlay: resolve fonts: %w", err)
		}
	}

	layout := b.opts.Layout
	canvas := b.opts.NewCanvas(layout.Page, b.opts.Now())
	page := &Page{Size: layout.Page, Fonts: resolved}

	if err := b.drawFields(canvas, resolved, values, page); err != nil {
		return nil, err
	}

	page.Payload = qr.Normalize(payload)
	if page.Payload != "" {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := b.drawQR(canvas, page.Payload); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := canvas.Output(&buf); err != nil {
		return nil, fmt.Errorf("overlay: finalize page: %w", err)
	}
	page.Data = buf.Bytes()
	log.Debug("overlay built",
		observability.Int("bytes", len(page.Data)),
		observability.Int("fields", len(page.Drawn)),
		observability.Bool("qr", page.Payload != ""))
	return page, nil
}

func (b *Builder) drawsText() bool {
	for _, spec := range b.opts.Fields {
		if spec.Draw {
			return true
		}
	}
	return false
}

func (b *Builder) drawFields(canvas Canvas, resolved fonts.Resolution, values []string, page *Page) error {
	registered := false
	for i, spec := range b.opts.Fields {
		if !spec.Draw {
			continue
		}
		if !registered {
			if err := canvas.RegisterFont(resolved.Family, false, resolved.Regular.Data); err != nil {
				return fmt.Errorf("overlay: register font %s: %w", resolved.Family, err)
			}
			if err := canvas.RegisterFont(resolved.Family, true, resolved.Bold.Data); err != nil {
				return fmt.Errorf("overlay: register bold font %s: %w", resolved.Family, err)
			}
			registered = true
		}
		opts := TextOptions{
			Font:     resolved.Family,
			Bold:     spec.Bold,
			FontSize: spec.FontSize,
			Color:    spec.Color,
		}
		if err := canvas.DrawText(values[i], spec.X, spec.Y, opts); err != nil {
			return fmt.Errorf("overlay: draw field %s: %w", spec.Key, err)
		}
		page.Drawn = append(page.Drawn, spec.Key)
	}
	return nil
}

func (b *Builder) drawQR(canvas Canvas, payload string) error {
	sym, err := b.opts.Encoder.Encode(payload)
	if err != nil {
		return fmt.Errorf("overlay: %w", err)
	}
	rect := b.opts.Layout.QR
	err = qr.WithTempPNG(b.opts.TempDir, sym.Image(b.opts.Layout.QRModulePx), func(path string) error {
		return canvas.DrawImage(path, rect.X, rect.Y, rect.Width, rect.Height)
	})
	if err != nil {
		return fmt.Errorf("overlay: draw qr: %w", err)
	}
	b.opts.Logger.Debug("qr drawn",
		observability.String("payload", payload),
		observability.Int("modules", sym.Size()),
		observability.Float("x", rect.X),
		observability.Float("y", rect.Y))
	return nil
}
