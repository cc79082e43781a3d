// Package config loads generator settings from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vainiusl-bpn/pdf-creator/fonts"
	"github.com/vainiusl-bpn/pdf-creator/overlay"
	"github.com/vainiusl-bpn/pdf-creator/qr"
	"github.com/vainiusl-bpn/pdf-creator/recovery"
)

var ErrInvalid = errors.New("config: invalid")

// Config mirrors the YAML document. Every key is optional; missing keys keep
// the values from Default.
type Config struct {
	Template  string  `yaml:"template"`
	OutputDir string  `yaml:"output_dir"`
	TempDir   string  `yaml:"temp_dir"`
	Page      Page    `yaml:"page"`
	QR        QR      `yaml:"qr"`
	Fonts     Fonts   `yaml:"fonts"`
	Fields    []Field `yaml:"fields"`
}

type Page struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

type QR struct {
	Encoder  string  `yaml:"encoder"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	Size     float64 `yaml:"size"`
	ModulePx int     `yaml:"module_px"`
}

type Fonts struct {
	// Strict aborts generation when a candidate fails to load instead of
	// moving on to the next one.
	Strict     bool   `yaml:"strict"`
	Candidates []Font `yaml:"candidates"`
}

type Font struct {
	Family  string `yaml:"family"`
	Regular string `yaml:"regular"`
	Bold    string `yaml:"bold"`
}

type Field struct {
	Key     string     `yaml:"key"`
	Default string     `yaml:"default"`
	X       float64    `yaml:"x"`
	Y       float64    `yaml:"y"`
	Size    float64    `yaml:"size"`
	Bold    bool       `yaml:"bold"`
	Color   [3]float64 `yaml:"color,flow"`
	Draw    bool       `yaml:"draw"`
}

// Default returns the built-in price sheet settings.
func Default() Config {
	layout := overlay.DefaultLayout()
	cfg := Config{
		OutputDir: "pdfs",
		Page:      Page{Width: layout.Page.Width, Height: layout.Page.Height},
		QR: QR{
			Encoder:  qr.EncoderSkip2,
			X:        layout.QR.X,
			Y:        layout.QR.Y,
			Size:     layout.QR.Width,
			ModulePx: layout.QRModulePx,
		},
	}
	for _, c := range fonts.DefaultCandidates() {
		cfg.Fonts.Candidates = append(cfg.Fonts.Candidates, Font{Family: c.Family, Regular: c.Regular, Bold: c.Bold})
	}
	for _, s := range overlay.DefaultFieldSpecs() {
		cfg.Fields = append(cfg.Fields, Field{
			Key:     s.Key,
			Default: s.Default,
			X:       s.X,
			Y:       s.Y,
			Size:    s.FontSize,
			Bold:    s.Bold,
			Color:   [3]float64{s.Color.R, s.Color.G, s.Color.B},
			Draw:    s.Draw,
		})
	}
	return cfg
}

// Load reads path onto Default. An empty path returns Default unchanged.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document onto Default and validates the result.
// Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("config: decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first offending key.
func (c Config) Validate() error {
	if c.Page.Width <= 0 || c.Page.Height <= 0 {
		return invalid("page", "width and height must be positive")
	}
	if _, err := qr.EncoderByName(c.QR.Encoder); err != nil {
		return invalid("qr.encoder", err.Error())
	}
	if c.QR.Size <= 0 {
		return invalid("qr.size", "must be positive")
	}
	if c.QR.ModulePx < 1 {
		return invalid("qr.module_px", "must be at least 1")
	}
	for i, f := range c.Fonts.Candidates {
		if f.Regular == "" || f.Bold == "" {
			return invalid(fmt.Sprintf("fonts.candidates[%d]", i), "regular and bold paths are required")
		}
	}
	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		key := fmt.Sprintf("fields[%d]", i)
		if strings.TrimSpace(f.Key) == "" {
			return invalid(key+".key", "must not be empty")
		}
		if seen[f.Key] {
			return invalid(key+".key", fmt.Sprintf("duplicate field %q", f.Key))
		}
		seen[f.Key] = true
		if f.Size <= 0 {
			return invalid(key+".size", "must be positive")
		}
		for _, v := range f.Color {
			if v < 0 || v > 1 {
				return invalid(key+".color", "components must be within [0, 1]")
			}
		}
	}
	return nil
}

func invalid(key, msg string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalid, key, msg)
}

// FieldSpecs converts the field list.
func (c Config) FieldSpecs() []overlay.FieldSpec {
	specs := make([]overlay.FieldSpec, 0, len(c.Fields))
	for _, f := range c.Fields {
		specs = append(specs, overlay.FieldSpec{
			Key:      f.Key,
			Default:  f.Default,
			X:        f.X,
			Y:        f.Y,
			FontSize: f.Size,
			Bold:     f.Bold,
			Color:    overlay.Color{R: f.Color[0], G: f.Color[1], B: f.Color[2]},
			Draw:     f.Draw,
		})
	}
	return specs
}

// Candidates converts the font list. An empty list skips straight to the
// built-in fonts.
func (c Config) Candidates() []fonts.Candidate {
	out := make([]fonts.Candidate, 0, len(c.Fonts.Candidates))
	for _, f := range c.Fonts.Candidates {
		out = append(out, fonts.Candidate{Family: f.Family, Regular: f.Regular, Bold: f.Bold})
	}
	return out
}

func (c Config) Layout() overlay.Layout {
	return overlay.Layout{
		Page:       overlay.PageSize{Width: c.Page.Width, Height: c.Page.Height},
		QR:         overlay.Rect{X: c.QR.X, Y: c.QR.Y, Width: c.QR.Size, Height: c.QR.Size},
		QRModulePx: c.QR.ModulePx,
	}
}

// FontStrategy returns a new strategy on every call.
func (c Config) FontStrategy() recovery.Strategy {
	if c.Fonts.Strict {
		return recovery.NewStrictStrategy()
	}
	return recovery.NewLenientStrategy()
}

// Overlay assembles builder options from the configuration.
func (c Config) Overlay() (overlay.Options, error) {
	enc, err := qr.EncoderByName(c.QR.Encoder)
	if err != nil {
		return overlay.Options{}, err
	}
	return overlay.Options{
		Fields:         c.FieldSpecs(),
		Layout:         c.Layout(),
		FontCandidates: c.Candidates(),
		FontStrategy:   c.FontStrategy,
		Encoder:        enc,
		TempDir:        c.TempDir,
	}, nil
}
