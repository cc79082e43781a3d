package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/vainiusl-bpn/pdf-creator/compositor"
	"github.com/vainiusl-bpn/pdf-creator/config"
	"github.com/vainiusl-bpn/pdf-creator/observability"
	"github.com/vainiusl-bpn/pdf-creator/overlay"
	"github.com/vainiusl-bpn/pdf-creator/prompt"
)

const qrPrompt = "Enter QR code data (website/phone) or press Enter to skip"

type options struct {
	configPath string
	template   string
	output     string
	outDir     string
	qr         string
	qrSet      bool
	overrides  overlay.Fields
	drawText   bool
	encoder    string
	verbose    bool
}

type stdio struct {
	in       prompt.Driver
	out, err io.Writer
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "price-overlay: %v\n", err)
		os.Exit(2)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	std := stdio{in: prompt.New(os.Stdin, os.Stdout), out: os.Stdout, err: os.Stderr}
	if err := run(ctx, opts, std); err != nil {
		stop()
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	opts := options{overrides: overlay.Fields{}}
	fs := flag.NewFlagSet("price-overlay", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: price-overlay [flags]\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file")
	fs.StringVar(&opts.template, "template", "", "Template PDF (default PRICE.PDF next to the binary)")
	fs.StringVar(&opts.output, "o", "", "Output PDF path (default <out-dir>/price_overlay_<timestamp>.pdf)")
	fs.StringVar(&opts.outDir, "out-dir", "", "Directory for timestamped output files (default pdfs)")
	fs.StringVar(&opts.qr, "qr", "", "QR payload; skips the interactive prompt")
	phone := fs.String("phone", "", "Phone number value")
	term := fs.String("term", "", "Leasing term value")
	down := fs.String("down-payment", "", "Down payment value")
	fs.BoolVar(&opts.drawText, "draw-text", false, "Draw every text field")
	fs.StringVar(&opts.encoder, "encoder", "", "QR encoder: skip2 or boombuler")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() != 0 {
		fs.Usage()
		return options{}, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "qr":
			opts.qrSet = true
		case "phone":
			opts.overrides[overlay.FieldPhone] = *phone
		case "term":
			opts.overrides[overlay.FieldLeasingTerm] = *term
		case "down-payment":
			opts.overrides[overlay.FieldDownPayment] = *down
		}
	})
	return opts, nil
}

func run(ctx context.Context, opts options, std stdio) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		fmt.Fprintf(std.err, "Error: %v\n", err)
		return err
	}
	ov, err := cfg.Overlay()
	if err != nil {
		fmt.Fprintf(std.err, "Error: %v\n", err)
		return err
	}

	logger := newLogger(opts.verbose, std.err)
	gen, err := compositor.New(compositor.Config{
		TemplatePath: cfg.Template,
		OutputDir:    cfg.OutputDir,
		Overlay:      ov,
		Logger:       logger,
		Tracer:       observability.NewLogTracer(logger),
	})
	if errors.Is(err, compositor.ErrTemplateNotFound) {
		var nf *compositor.TemplateNotFoundError
		path := cfg.Template
		if errors.As(err, &nf) {
			path = nf.Path
		}
		fmt.Fprintf(std.err, "Error: template PDF not found at %s\n", path)
		return err
	}
	if err != nil {
		fmt.Fprintf(std.err, "Error: %v\n", err)
		return err
	}
	fmt.Fprintf(std.out, "Using %s as template\n", gen.TemplatePath())

	payload := opts.qr
	if !opts.qrSet {
		payload, err = std.in.Input(ctx, prompt.InputConfig{Message: qrPrompt})
		if err != nil {
			fmt.Fprintf(std.err, "Error: %v\n", err)
			return err
		}
	}
	payload = strings.TrimSpace(payload)

	fields := fieldValues(cfg, opts.overrides)
	path, err := gen.Generate(ctx, fields, opts.output, payload)
	if err != nil {
		fmt.Fprintf(std.err, "error generating PDF: %v\n", err)
		return err
	}
	fmt.Fprintf(std.out, "PDF generated: %s\n", path)
	return nil
}

func loadConfig(opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.template != "" {
		cfg.Template = opts.template
	}
	if opts.outDir != "" {
		cfg.OutputDir = opts.outDir
	}
	if opts.encoder != "" {
		cfg.QR.Encoder = opts.encoder
	}
	if opts.drawText {
		for i := range cfg.Fields {
			cfg.Fields[i].Draw = true
		}
	}
	return cfg, cfg.Validate()
}

// fieldValues starts from each field's default and applies the overrides.
func fieldValues(cfg config.Config, overrides overlay.Fields) overlay.Fields {
	fields := overlay.Fields{}
	for _, spec := range cfg.FieldSpecs() {
		fields[spec.Key] = spec.Default
	}
	for k, v := range overrides {
		fields[k] = v
	}
	return fields
}

func newLogger(verbose bool, w io.Writer) observability.Logger {
	l := logrus.New()
	l.SetOutput(w)
	l.SetLevel(logrus.WarnLevel)
	if verbose {
		l.SetLevel(logrus.DebugLevel)
	}
	return observability.NewLogrus(l)
}
