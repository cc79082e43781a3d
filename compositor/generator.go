// Package compositor merges an overlay page onto the first page of a
// template PDF and writes the result.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/vainiusl-bpn/pdf-creator/observability"
	"github.com/vainiusl-bpn/pdf-creator/overlay"
)

// Config configures a Generator. Zero values select the defaults.
type Config struct {
	// TemplatePath defaults to PRICE.PDF next to the executable.
	TemplatePath string
	// OutputDir receives timestamped files; defaults to "pdfs".
	OutputDir string
	Overlay   overlay.Options
	Now       func() time.Time
	Logger    observability.Logger
	Tracer    observability.Tracer
	// Executable locates the running binary; defaults to os.Executable.
	Executable func() (string, error)
}

// Generator produces merged price sheets. It holds no per-call state.
type Generator struct {
	template string
	outDir   string
	builder  *overlay.Builder
	now      func() time.Time
	log      observability.Logger
	tracer   observability.Tracer
}

// New resolves the template path and fails with *TemplateNotFoundError when
// it is missing or a directory.
func New(cfg Config) (*Generator, error) {
	if cfg.Executable == nil {
		cfg.Executable = os.Executable
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = observability.NopLogger{}
	}
	if cfg.Tracer == nil {
		cfg.Tracer = observability.NopTracer()
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = DefaultOutputDir
	}

	path, err := resolveTemplatePath(cfg.TemplatePath, cfg.Executable)
	if err != nil {
		return nil, &TemplateNotFoundError{Path: DefaultTemplateName, Err: err}
	}
	if err := checkTemplate(path); err != nil {
		return nil, err
	}

	ov := cfg.Overlay
	if ov.Now == nil {
		ov.Now = cfg.Now
	}
	if ov.Logger == nil {
		ov.Logger = cfg.Logger
	}

	return &Generator{
		template: path,
		outDir:   cfg.OutputDir,
		builder:  overlay.NewBuilder(ov),
		now:      cfg.Now,
		log:      cfg.Logger.With(observability.String("template", path)),
		tracer:   cfg.Tracer,
	}, nil
}

// TemplatePath returns the resolved template path.
func (g *Generator) TemplatePath() string { return g.template }

// DefaultOutputPath returns a timestamped path in the output directory and
// creates that directory.
func (g *Generator) DefaultOutputPath() (string, error) {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	return TimestampedPath(g.outDir, g.now()), nil
}

// Generate renders the overlay for fields and payload, merges it onto the
// template and writes the single merged page to outputPath. An empty
// outputPath selects DefaultOutputPath. It returns the path written.
func (g *Generator) Generate(ctx context.Context, fields overlay.Fields, outputPath, payload string) (path string, err error) {
	ctx, span := g.tracer.StartSpan(ctx, observability.SpanGenerate)
	defer func() {
		if err != nil {
			span.SetError(err)
		}
		span.Finish()
	}()

	tpl, err := g.load(ctx)
	if err != nil {
		return "", stageErr(StageLoad, err)
	}

	page, err := g.build(ctx, fields, payload)
	if err != nil {
		return "", stageErr(StageOverlay, err)
	}

	data, err := g.merge(ctx, tpl, page)
	if err != nil {
		return "", stageErr(StageMerge, err)
	}

	path, err = g.write(ctx, outputPath, data)
	if err != nil {
		return "", stageErr(StageWrite, err)
	}
	span.SetTag("output", path)
	g.log.Info("pdf generated",
		observability.String("path", path),
		observability.Int("bytes", len(data)),
		observability.Bool("qr", page.Payload != ""))
	return path, nil
}

func (g *Generator) load(ctx context.Context) (*Template, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tpl, err := LoadTemplate(g.template)
	if err != nil {
		return nil, err
	}
	if tpl.Pages > 1 {
		g.log.Warn("template has extra pages, only the first is used", observability.Int("pages", tpl.Pages))
	}
	g.log.Debug("template loaded",
		observability.Float("width", tpl.Size.Width),
		observability.Float("height", tpl.Size.Height))
	return tpl, nil
}

func (g *Generator) build(ctx context.Context, fields overlay.Fields, payload string) (*overlay.Page, error) {
	ctx, span := g.tracer.StartSpan(ctx, observability.SpanBuild)
	defer span.Finish()
	page, err := g.builder.Build(ctx, fields, payload)
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	if page.Fonts.UsedFallback() && len(page.Drawn) > 0 {
		g.log.Warn("using built-in font", observability.String("family", page.Fonts.Family))
	}
	return page, nil
}

func (g *Generator) merge(ctx context.Context, tpl *Template, page *overlay.Page) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	_, span := g.tracer.StartSpan(ctx, observability.SpanMerge)
	defer span.Finish()
	data, err := merge(tpl, page, g.now())
	if err != nil {
		span.SetError(err)
		return nil, err
	}
	return data, nil
}

func (g *Generator) write(ctx context.Context, outputPath string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if outputPath == "" {
		p, err := g.DefaultOutputPath()
		if err != nil {
			return "", err
		}
		outputPath = p
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", outputPath, err)
	}
	return outputPath, nil
}

// IsTemplateNotFound reports whether err carries ErrTemplateNotFound.
func IsTemplateNotFound(err error) bool { return errors.Is(err, ErrTemplateNotFound) }
