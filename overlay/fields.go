package overlay

// Field keys recognized by the default layout.
const (
	FieldPhone       = "phone"
	FieldLeasingTerm = "lizingo_laikotarpis"
	FieldDownPayment = "pradine_imoka"
)

// Fields maps a field key to its display value.
type Fields map[string]string

// DefaultFields returns the values used when the caller supplies none.
func DefaultFields() Fields {
	f := Fields{}
	for _, spec := range DefaultFieldSpecs() {
		f[spec.Key] = spec.Default
	}
	return f
}

// Color represents an RGB color with components in [0, 1].
type Color struct {
	R, G, B float64
}

// Black is the value color of every default field.
var Black = Color{}

// FieldSpec places one text field on the overlay. X and Y are PDF points
// from the bottom-left corner to the start of the baseline.
type FieldSpec struct {
	Key      string
	Default  string
	X        float64
	Y        float64
	FontSize float64
	Bold     bool
	Color    Color
	// Draw enables rendering; every default field ships disabled.
	Draw bool
}

// DefaultFieldSpecs returns the price sheet layout: phone number, leasing
// term and down payment.
func DefaultFieldSpecs() []FieldSpec {
	return []FieldSpec{
		{Key: FieldPhone, Default: "+370 656 61866", X: 145, Y: 563, FontSize: 20, Bold: true, Color: Black},
		{Key: FieldLeasingTerm, Default: "60 mėn.", X: 215, Y: 438, FontSize: 11, Color: Black},
		{Key: FieldDownPayment, Default: "30%", X: 215, Y: 423, FontSize: 11, Color: Black},
	}
}

// value returns the caller's value for the field, or its default when the key
// is absent.
func (s FieldSpec) value(fields Fields) string {
	if v, ok := fields[s.Key]; ok {
		return v
	}
	return s.Default
}

// Rect is a rectangle in PDF points with a bottom-left origin.
type Rect struct {
	X, Y          float64
	Width, Height float64
}

// PageSize is a page extent in PDF points.
type PageSize struct {
	Width, Height float64
}

// A4 is 210mm x 297mm.
var A4 = PageSize{Width: 595.28, Height: 841.89}

// Layout fixes the overlay geometry.
type Layout struct {
	Page PageSize
	QR   Rect
	// QRModulePx is the raster size of one QR module in pixels.
	QRModulePx int
}

func DefaultLayout() Layout {
	return Layout{
		Page:       A4,
		QR:         Rect{X: 211.5, Y: 241.5, Width: 120, Height: 120},
		QRModulePx: 1,
	}
}
