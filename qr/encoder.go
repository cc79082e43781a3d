package qr

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/boombuler/barcode"
	bqr "github.com/boombuler/barcode/qr"
	qrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyPayload   = errors.New("qr: empty payload")
	ErrUnknownEncoder = errors.New("qr: unknown encoder")
)

// Encoder turns a payload into a QR symbol with low error correction and no
// quiet zone.
type Encoder interface {
	Encode(content string) (*Symbol, error)
}

// Encoder names accepted by EncoderByName.
const (
	EncoderSkip2     = "skip2"
	EncoderBoombuler = "boombuler"
)

// EncoderByName returns the encoder registered under name. The empty name
// selects the default skip2 encoder.
func EncoderByName(name string) (Encoder, error) {
	switch name {
	case "", EncoderSkip2:
		return Skip2Encoder{}, nil
	case EncoderBoombuler:
		return BoombulerEncoder{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEncoder, name)
	}
}

// Skip2Encoder encodes with github.com/skip2/go-qrcode.
type Skip2Encoder struct{}

func (Skip2Encoder) Encode(content string) (*Symbol, error) {
	if content == "" {
		return nil, ErrEmptyPayload
	}
	q, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	q.DisableBorder = true
	return &Symbol{Content: content, Modules: q.Bitmap()}, nil
}

// BoombulerEncoder encodes with github.com/boombuler/barcode/qr.
type BoombulerEncoder struct{}

func (BoombulerEncoder) Encode(content string) (*Symbol, error) {
	if content == "" {
		return nil, ErrEmptyPayload
	}
	code, err := bqr.Encode(content, bqr.L, bqr.Auto)
	if err != nil {
		return nil, fmt.Errorf("qr: encode: %w", err)
	}
	return &Symbol{Content: content, Modules: modulesOf(code)}, nil
}

func modulesOf(code barcode.Barcode) [][]bool {
	b := code.Bounds()
	modules := make([][]bool, b.Dy())
	for y := range modules {
		row := make([]bool, b.Dx())
		for x := range row {
			gray := color.GrayModel.Convert(code.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			row[x] = gray.Y < 0x80
		}
		modules[y] = row
	}
	return modules
}
