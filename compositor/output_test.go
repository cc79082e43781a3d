package compositor

import (
	"bytes"
	"context"
	"image"
	"image/draw"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/google/go-cmp/cmp"
	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"

	"github.com/vainiusl-bpn/pdf-creator/overlay"
)

// affine is a PDF transformation matrix [a b c d e f].
type affine [6]float64

// then returns m followed by n, the order in which cm operators nest.
func (m affine) then(n affine) affine {
	return affine{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

const num = `(-?[\d.]+)`

var (
	stampCall = regexp.MustCompile(`q ` + num + ` ` + num + ` ` + num + ` ` + num + ` ` + num + ` ` + num + ` cm /\S+ gs /(\S+) Do Q`)
	formCM    = regexp.MustCompile(`^\s*` + num + ` ` + num + ` ` + num + ` ` + num + ` ` + num + ` ` + num + ` cm`)
	imageCall = regexp.MustCompile(`q ` + num + ` ` + num + ` ` + num + ` ` + num + ` ` + num + ` ` + num + ` cm /(\S+) Do Q`)
)

func matrixOf(t *testing.T, groups []string) affine {
	t.Helper()
	var m affine
	for i := range m {
		v, err := strconv.ParseFloat(groups[i], 64)
		if err != nil {
			t.Fatalf("matrix entry %q: %v", groups[i], err)
		}
		m[i] = v
	}
	return m
}

// mergedPage reads the single page of a generated document.
type mergedPage struct {
	ctx  *model.Context
	dict types.Dict
}

func readMerged(t *testing.T, path string) *mergedPage {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	ctx, err := api.ReadContext(bytes.NewReader(data), pdfConfig())
	if err != nil {
		t.Fatalf("read context: %v", err)
	}
	d, _, _, err := ctx.PageDict(1, false)
	if err != nil || d == nil {
		t.Fatalf("page 1: %v", err)
	}
	return &mergedPage{ctx: ctx, dict: d}
}

func (p *mergedPage) content(t *testing.T) []byte {
	t.Helper()
	bb, err := p.ctx.PageContent(p.dict)
	if err != nil {
		t.Fatalf("page content: %v", err)
	}
	return bb
}

func (p *mergedPage) xobject(t *testing.T, res types.Object, name string) *types.StreamDict {
	t.Helper()
	rd, err := p.ctx.DereferenceDict(res)
	if err != nil || rd == nil {
		t.Fatalf("resources: %v", err)
	}
	xd, err := p.ctx.DereferenceDict(rd["XObject"])
	if err != nil || xd == nil {
		t.Fatalf("xobject dict: %v", err)
	}
	sd, _, err := p.ctx.DereferenceStreamDict(xd[name])
	if err != nil || sd == nil {
		t.Fatalf("xobject %s: %v", name, err)
	}
	return sd
}

// qrPlacement returns the effective image matrix of the stamped QR code
// along with its image stream.
func qrPlacement(t *testing.T, p *mergedPage) (affine, *types.StreamDict) {
	t.Helper()
	stamp := stampCall.FindSubmatch(p.content(t))
	if stamp == nil {
		t.Fatalf("page content does not draw the overlay form")
	}
	outer := matrixOf(t, bytesToStrings(stamp[1:7]))

	form := p.xobject(t, p.dict["Resources"], string(stamp[7]))
	if err := form.Decode(); err != nil {
		t.Fatalf("decode form: %v", err)
	}
	inner := formCM.FindSubmatch(form.Content)
	if inner == nil {
		t.Fatalf("form content has no leading transform")
	}
	img := imageCall.FindSubmatch(form.Content)
	if img == nil {
		t.Fatalf("form content does not draw an image")
	}
	m := matrixOf(t, bytesToStrings(img[1:7])).
		then(matrixOf(t, bytesToStrings(inner[1:7]))).
		then(outer)
	return m, p.xobject(t, form.Dict["Resources"], string(img[7]))
}

func bytesToStrings(bb [][]byte) []string {
	ss := make([]string, len(bb))
	for i, b := range bb {
		ss[i] = string(b)
	}
	return ss
}

// decodeImage reads an 8 bit DeviceGray image stream and decodes the QR
// code it carries.
func decodeImage(t *testing.T, sd *types.StreamDict) string {
	t.Helper()
	if err := sd.Decode(); err != nil {
		t.Fatalf("decode image: %v", err)
	}
	w, h := sd.IntEntry("Width"), sd.IntEntry("Height")
	if w == nil || h == nil || *w**h != len(sd.Content) {
		t.Fatalf("unexpected image geometry %v x %v for %d bytes", w, h, len(sd.Content))
	}
	src := &image.Gray{Pix: sd.Content, Stride: *w, Rect: image.Rect(0, 0, *w, *h)}

	const px, quiet = 8, 4
	pad := quiet * px
	padded := image.NewGray(image.Rect(0, 0, *w*px+2*pad, *h*px+2*pad))
	draw.Draw(padded, padded.Bounds(), image.White, image.Point{}, draw.Src)
	for y := 0; y < *h*px; y++ {
		for x := 0; x < *w*px; x++ {
			padded.SetGray(pad+x, pad+y, src.GrayAt(x/px, y/px))
		}
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(padded)
	if err != nil {
		t.Fatalf("binary bitmap: %v", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{gozxing.DecodeHintType_PURE_BARCODE: true}
	res, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		t.Fatalf("decode qr: %v", err)
	}
	return res.GetText()
}

func TestGenerate_OutputKeepsTemplateContent(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir, overlay.A4)
	g := newGenerator(t, tpl, nil)
	out := filepath.Join(dir, "out.pdf")
	if _, err := g.Generate(context.Background(), overlay.DefaultFields(), out, "https://mysite.lt"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	content := readMerged(t, out).content(t)
	if !bytes.Contains(content, []byte("(PRICE) Tj")) {
		t.Fatalf("template text missing from merged page:\n%s", content)
	}
}

func TestGenerate_QRPlacementAndPayload(t *testing.T) {
	cases := []struct {
		name    string
		size    overlay.PageSize
		payload string
		want    string
	}{
		{"a4 url", overlay.A4, "https://mysite.lt", "https://mysite.lt"},
		{"a4 bare host", overlay.A4, "  mysite.lt ", "https://mysite.lt"},
		{"letter phone", overlay.PageSize{Width: 612, Height: 792}, "+37060000000", "+37060000000"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			tpl := writeTemplate(t, dir, tc.size)
			g := newGenerator(t, tpl, nil)
			out := filepath.Join(dir, "qr.pdf")
			if _, err := g.Generate(context.Background(), nil, out, tc.payload); err != nil {
				t.Fatalf("generate: %v", err)
			}

			m, img := qrPlacement(t, readMerged(t, out))
			want := affine{120, 0, 0, 120, 211.5, 241.5}
			if diff := cmp.Diff(want, m, approx); diff != "" {
				t.Fatalf("qr placement mismatch (-want +got):\n%s", diff)
			}
			if got := decodeImage(t, img); got != tc.want {
				t.Fatalf("decoded %q, want %q", got, tc.want)
			}
		})
	}
}

func TestGenerate_XRefStreamTemplate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "plain.pdf")
	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: overlay.A4.Width, Ht: overlay.A4.Height}})
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 14)
	pdf.Text(72, 72, "PRICE")
	pdf.AddPage()
	pdf.Text(72, 72, "TERMS")
	if err := pdf.OutputFileAndClose(src); err != nil {
		t.Fatalf("write source: %v", err)
	}

	tpl := filepath.Join(dir, DefaultTemplateName)
	conf := pdfConfig()
	conf.WriteObjectStream = true
	conf.WriteXRefStream = true
	if err := api.OptimizeFile(src, tpl, conf); err != nil {
		t.Fatalf("optimize: %v", err)
	}
	raw, err := os.ReadFile(tpl)
	if err != nil {
		t.Fatalf("read template: %v", err)
	}
	for _, marker := range []string{"/XRef", "/ObjStm"} {
		if !bytes.Contains(raw, []byte(marker)) {
			t.Fatalf("template lacks %s", marker)
		}
	}

	g := newGenerator(t, tpl, nil)
	out := filepath.Join(dir, "out.pdf")
	if _, err := g.Generate(context.Background(), nil, out, "https://mysite.lt"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	n, size := inspect(t, out)
	if n != 1 {
		t.Fatalf("pages = %d, want 1", n)
	}
	if diff := cmp.Diff(overlay.A4, size, approx); diff != "" {
		t.Fatalf("page size mismatch (-want +got):\n%s", diff)
	}
	p := readMerged(t, out)
	content := p.content(t)
	if !bytes.Contains(content, []byte("(PRICE) Tj")) || bytes.Contains(content, []byte("(TERMS) Tj")) {
		t.Fatalf("merged page should carry only the first template page:\n%s", content)
	}
	if _, img := qrPlacement(t, p); decodeImage(t, img) != "https://mysite.lt" {
		t.Fatalf("qr payload lost")
	}
}

func TestGenerate_KeepsTemplateLinks(t *testing.T) {
	dir := t.TempDir()
	pdf := fpdf.NewCustom(&fpdf.InitType{UnitStr: "pt", Size: fpdf.SizeType{Wd: overlay.A4.Width, Ht: overlay.A4.Height}})
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", 14)
	pdf.Text(72, 72, "PRICE")
	pdf.LinkString(72, 80, 200, 20, "https://example.com/terms")
	tpl := filepath.Join(dir, DefaultTemplateName)
	if err := pdf.OutputFileAndClose(tpl); err != nil {
		t.Fatalf("write template: %v", err)
	}

	g := newGenerator(t, tpl, nil)
	out := filepath.Join(dir, "out.pdf")
	if _, err := g.Generate(context.Background(), nil, out, "https://mysite.lt"); err != nil {
		t.Fatalf("generate: %v", err)
	}

	p := readMerged(t, out)
	annots, err := p.ctx.DereferenceArray(p.dict["Annots"])
	if err != nil || len(annots) == 0 {
		t.Fatalf("merged page has no annotations: %v", err)
	}
	var uris []string
	for _, o := range annots {
		d, err := p.ctx.DereferenceDict(o)
		if err != nil || d == nil || d.Subtype() == nil || *d.Subtype() != "Link" {
			continue
		}
		action, err := p.ctx.DereferenceDict(d["A"])
		if err != nil || action == nil {
			continue
		}
		if s := action.StringEntry("URI"); s != nil {
			uris = append(uris, *s)
		}
	}
	if diff := cmp.Diff([]string{"https://example.com/terms"}, uris); diff != "" {
		t.Fatalf("link annotations mismatch (-want +got):\n%s", diff)
	}
}
