package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/google/go-cmp/cmp"

	"github.com/vainiusl-bpn/pdf-creator/compositor"
	"github.com/vainiusl-bpn/pdf-creator/config"
	"github.com/vainiusl-bpn/pdf-creator/overlay"
	"github.com/vainiusl-bpn/pdf-creator/prompt"
)

func writeTemplate(t *testing.T, dir string) string {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.AddPage()
	path := filepath.Join(dir, "PRICE.PDF")
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return path
}

func testStdio(input string) (stdio, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return stdio{in: prompt.NewLineDriver(strings.NewReader(input), &out), out: &out, err: &errOut}, &out, &errOut
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{"-template", "t.pdf", "-qr", "", "-phone", "+370 600 00000", "-draw-text"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !opts.qrSet || opts.qr != "" {
		t.Fatalf("explicit empty -qr should mark the flag as set")
	}
	if diff := cmp.Diff(overlay.Fields{overlay.FieldPhone: "+370 600 00000"}, opts.overrides); diff != "" {
		t.Fatalf("overrides mismatch (-want +got):\n%s", diff)
	}
	if !opts.drawText || opts.template != "t.pdf" {
		t.Fatalf("unexpected options %+v", opts)
	}
}

func TestParseFlags_RejectsArguments(t *testing.T) {
	if _, err := parseFlags([]string{"extra"}); err == nil {
		t.Fatalf("positional arguments should be rejected")
	}
}

func TestFieldValues(t *testing.T) {
	got := fieldValues(config.Default(), overlay.Fields{overlay.FieldDownPayment: "10%"})
	want := overlay.Fields{
		overlay.FieldPhone:       "+370 656 61866",
		overlay.FieldLeasingTerm: "60 mėn.",
		overlay.FieldDownPayment: "10%",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_PromptedPayload(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	out := filepath.Join(dir, "result.pdf")
	std, stdout, _ := testStdio("mysite.lt\n")

	err := run(context.Background(), options{template: tpl, output: out}, std)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(stdout.String(), qrPrompt) {
		t.Fatalf("prompt not shown: %q", stdout.String())
	}
	if !strings.Contains(stdout.String(), "PDF generated: "+out) {
		t.Fatalf("success message missing: %q", stdout.String())
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output missing: %v", err)
	}
}

func TestRun_FlagSkipsPrompt(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	std, stdout, _ := testStdio("")
	opts := options{template: tpl, outDir: filepath.Join(dir, "pdfs"), qrSet: true}

	if err := run(context.Background(), opts, std); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stdout.String(), qrPrompt) {
		t.Fatalf("prompt should be skipped when -qr is set")
	}
	entries, err := os.ReadDir(filepath.Join(dir, "pdfs"))
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one timestamped output, got %d (%v)", len(entries), err)
	}
	if !strings.HasPrefix(entries[0].Name(), "price_overlay_") {
		t.Fatalf("unexpected output name %q", entries[0].Name())
	}
}

func TestRun_VerboseLogsSpans(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	std, _, stderr := testStdio("")
	opts := options{template: tpl, output: filepath.Join(dir, "v.pdf"), qr: "mysite.lt", qrSet: true, verbose: true}

	if err := run(context.Background(), opts, std); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, span := range []string{"span=overlay.build", "span=overlay.merge", "span=overlay.generate"} {
		if !strings.Contains(stderr.String(), span) {
			t.Fatalf("stderr lacks %s:\n%s", span, stderr.String())
		}
	}
}

func TestRun_QuietByDefault(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	std, _, stderr := testStdio("")
	opts := options{template: tpl, output: filepath.Join(dir, "q.pdf"), qrSet: true}

	if err := run(context.Background(), opts, std); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Contains(stderr.String(), "span=") {
		t.Fatalf("spans should only be logged with -v:\n%s", stderr.String())
	}
}

func TestRun_MissingTemplate(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "PRICE.PDF")
	out := filepath.Join(dir, "out.pdf")
	std, _, stderr := testStdio("")

	err := run(context.Background(), options{template: missing, output: out, qrSet: true}, std)
	if !errors.Is(err, compositor.ErrTemplateNotFound) {
		t.Fatalf("err = %v, want ErrTemplateNotFound", err)
	}
	if !strings.Contains(stderr.String(), "template PDF not found at "+missing) {
		t.Fatalf("stderr = %q", stderr.String())
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatalf("no output should be written")
	}
}

func TestRun_GenerateFailure(t *testing.T) {
	dir := t.TempDir()
	tpl := writeTemplate(t, dir)
	std, _, stderr := testStdio("")
	opts := options{template: tpl, output: filepath.Join(dir, "missing", "out.pdf"), qrSet: true}

	if err := run(context.Background(), opts, std); err == nil {
		t.Fatalf("expected write failure")
	}
	if !strings.Contains(stderr.String(), "error generating PDF: ") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}

func TestRun_InvalidEncoder(t *testing.T) {
	std, _, stderr := testStdio("")
	if err := run(context.Background(), options{encoder: "zxing", qrSet: true}, std); err == nil {
		t.Fatalf("unknown encoder should fail")
	}
	if !strings.Contains(stderr.String(), "qr.encoder") {
		t.Fatalf("stderr = %q", stderr.String())
	}
}
