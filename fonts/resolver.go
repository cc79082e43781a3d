package fonts

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	gotext "github.com/go-text/typesetting/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/sfnt"

	"github.com/vainiusl-bpn/pdf-creator/observability"
	"github.com/vainiusl-bpn/pdf-creator/recovery"
)

// FallbackFamily names the font family compiled into the binary.
const FallbackFamily = "Go"

var (
	ErrEmptyFont    = errors.New("font data is empty")
	ErrMissingGlyph = errors.New("font has no glyph for")
)

// Candidate is one installed font family to try, in order.
type Candidate struct {
	Family  string
	Regular string
	Bold    string
}

// DefaultCandidates returns the DejaVu Sans family at its usual Debian
// location; it covers Lithuanian diacritics.
func DefaultCandidates() []Candidate {
	return []Candidate{{
		Family:  "DejaVuSans",
		Regular: "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		Bold:    "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
	}}
}

// Source reports which branch of the resolution produced the fonts.
type Source int

const (
	SourceCandidate Source = iota
	SourceFallback
)

func (s Source) String() string {
	if s == SourceFallback {
		return "fallback"
	}
	return "candidate"
}

// Face is a parsed font program ready to be embedded.
type Face struct {
	Name string
	Data []byte
}

// Resolution is the outcome of Resolver.Resolve.
type Resolution struct {
	Family    string
	Regular   Face
	Bold      Face
	Source    Source
	Candidate Candidate
	// Skipped holds one *CandidateError per rejected candidate.
	Skipped []error
}

func (r Resolution) UsedFallback() bool { return r.Source == SourceFallback }

// CandidateError explains why a candidate was rejected.
type CandidateError struct {
	Family string
	Path   string
	Err    error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("font %s (%s): %v", e.Family, e.Path, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }

// Fallback returns the built-in Go font family.
func Fallback() Resolution {
	return Resolution{
		Family:  FallbackFamily,
		Regular: Face{Name: "GoRegular", Data: goregular.TTF},
		Bold:    Face{Name: "GoBold", Data: gobold.TTF},
		Source:  SourceFallback,
	}
}

// Resolver picks the first candidate whose regular and bold files load,
// parse and cover Sample, and otherwise falls back to the Go fonts.
type Resolver struct {
	Candidates []Candidate
	// Sample lists the text the fonts must be able to render.
	Sample   string
	Strategy recovery.Strategy
	Logger   observability.Logger
	ReadFile func(name string) ([]byte, error)
}

// Resolve never fails unless Strategy answers ActionFail for a rejected
// candidate. The default strategy is lenient.
func (r *Resolver) Resolve() (Resolution, error) {
	strategy := r.Strategy
	if strategy == nil {
		strategy = recovery.NewLenientStrategy()
	}
	log := r.Logger
	if log == nil {
		log = observability.NopLogger{}
	}

	var skipped []error
	for _, c := range r.Candidates {
		res, err := r.load(c)
		if err == nil {
			res.Skipped = skipped
			log.Debug("font candidate selected", observability.String("family", res.Family), observability.String("path", c.Regular))
			return res, nil
		}
		switch strategy.OnError(err, recovery.Location{Component: "fonts", Path: pathOf(err)}) {
		case recovery.ActionFail:
			return Resolution{}, err
		case recovery.ActionWarn:
			log.Warn("font candidate rejected", observability.String("family", c.Family), observability.Error("error", err))
		}
		skipped = append(skipped, err)
	}

	res := Fallback()
	res.Skipped = skipped
	log.Debug("using built-in fonts", observability.String("family", res.Family), observability.Int("skipped", len(skipped)))
	return res, nil
}

func (r *Resolver) load(c Candidate) (Resolution, error) {
	regular, err := r.loadFace(c, c.Regular)
	if err != nil {
		return Resolution{}, err
	}
	bold, err := r.loadFace(c, c.Bold)
	if err != nil {
		return Resolution{}, err
	}
	family := strings.TrimSpace(c.Family)
	if family == "" {
		family = regular.Name
	}
	return Resolution{
		Family:    family,
		Regular:   regular,
		Bold:      bold,
		Source:    SourceCandidate,
		Candidate: c,
	}, nil
}

func (r *Resolver) loadFace(c Candidate, path string) (Face, error) {
	read := r.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return Face{}, &CandidateError{Family: c.Family, Path: path, Err: err}
	}
	face, err := parseFace(data, r.Sample)
	if err != nil {
		return Face{}, &CandidateError{Family: c.Family, Path: path, Err: err}
	}
	return face, nil
}

func parseFace(data []byte, sample string) (Face, error) {
	if len(data) == 0 {
		return Face{}, ErrEmptyFont
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return Face{}, fmt.Errorf("parse sfnt: %w", err)
	}
	if f.UnitsPerEm() == 0 {
		return Face{}, fmt.Errorf("invalid unitsPerEm")
	}
	name, _ := f.Name(&sfnt.Buffer{}, sfnt.NameIDPostScript)

	face, err := gotext.ParseTTF(bytes.NewReader(data))
	if err != nil {
		return Face{}, fmt.Errorf("parse ttf: %w", err)
	}
	for _, ch := range sample {
		if unicode.IsSpace(ch) || unicode.IsControl(ch) {
			continue
		}
		if _, ok := face.NominalGlyph(ch); !ok {
			return Face{}, fmt.Errorf("%w %q", ErrMissingGlyph, ch)
		}
	}
	return Face{Name: name, Data: data}, nil
}

func pathOf(err error) string {
	var ce *CandidateError
	if errors.As(err, &ce) {
		return ce.Path
	}
	return ""
}
