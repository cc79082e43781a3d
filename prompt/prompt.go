// Package prompt asks the operator for single-line input.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"golang.org/x/term"
)

// ErrInterrupted signals the operator aborted input (Ctrl+C).
var ErrInterrupted = errors.New("prompt: interrupted")

// InputConfig configures a single-line text prompt.
type InputConfig struct {
	Message string
	Default string
	Help    string
}

// Driver asks for input. Implementations return the raw answer; callers trim.
type Driver interface {
	Input(ctx context.Context, cfg InputConfig) (string, error)
}

// New returns a survey driver when in is a terminal and a line reader
// otherwise. A nil in reads as end of input.
func New(in, out *os.File) Driver {
	if in == nil {
		return NewLineDriver(strings.NewReader(""), out)
	}
	if out != nil && term.IsTerminal(int(in.Fd())) {
		return &SurveyDriver{In: in, Out: out}
	}
	return NewLineDriver(in, out)
}

// SurveyDriver prompts through github.com/AlecAivazis/survey/v2.
type SurveyDriver struct {
	In  terminal.FileReader
	Out terminal.FileWriter
}

func (d *SurveyDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	var out string
	p := &survey.Input{
		Message: cfg.Message,
		Help:    cfg.Help,
		Default: cfg.Default,
	}
	var opts []survey.AskOpt
	if d.In != nil && d.Out != nil {
		opts = append(opts, survey.WithStdio(d.In, d.Out, os.Stderr))
	}
	if err := survey.AskOne(p, &out, opts...); err != nil {
		return "", translateSurveyErr(err)
	}
	return out, nil
}

func translateSurveyErr(err error) error {
	if errors.Is(err, terminal.InterruptErr) {
		return ErrInterrupted
	}
	return err
}

// LineDriver prints the message and reads one line. It serves piped input.
type LineDriver struct {
	r   *bufio.Reader
	out io.Writer
}

func NewLineDriver(in io.Reader, out io.Writer) *LineDriver {
	if f, ok := out.(*os.File); ok && f == nil {
		out = nil
	}
	if out == nil {
		out = io.Discard
	}
	return &LineDriver{r: bufio.NewReader(in), out: out}
}

// Input returns the next line without its line ending. End of input counts
// as an empty answer; the default applies to empty answers.
func (d *LineDriver) Input(ctx context.Context, cfg InputConfig) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprint(d.out, cfg.Message+": "); err != nil {
		return "", err
	}
	line, err := d.r.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("prompt: read: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return cfg.Default, nil
	}
	return line, nil
}
