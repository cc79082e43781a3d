package compositor

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/vainiusl-bpn/pdf-creator/overlay"
)

// DefaultTemplateName is looked up next to the executable when no template
// path is configured.
const DefaultTemplateName = "PRICE.PDF"

var errNoPages = errors.New("template has no pages")

func init() {
	api.DisableConfigDir()
}

// Template is a loaded template document.
type Template struct {
	Path  string
	Data  []byte
	Pages int
	// Size is the extent of the first page.
	Size overlay.PageSize
}

func resolveTemplatePath(path string, executable func() (string, error)) (string, error) {
	if path != "" {
		return path, nil
	}
	exe, err := executable()
	if err != nil {
		return "", fmt.Errorf("locate executable: %w", err)
	}
	return filepath.Join(filepath.Dir(exe), DefaultTemplateName), nil
}

func checkTemplate(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &TemplateNotFoundError{Path: path, Err: err}
	}
	if info.IsDir() {
		return &TemplateNotFoundError{Path: path, Err: errors.New("is a directory")}
	}
	return nil
}

// LoadTemplate reads the template and inspects its first page.
func LoadTemplate(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &TemplateNotFoundError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("read template: %w", err)
	}
	return inspectTemplate(path, data)
}

func inspectTemplate(path string, data []byte) (*Template, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	count, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", path, err)
	}
	if count < 1 {
		return nil, fmt.Errorf("parse template %s: %w", path, errNoPages)
	}
	dims, err := api.PageDims(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("page dimensions of %s: %w", path, err)
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("page dimensions of %s: %w", path, errNoPages)
	}
	return &Template{
		Path:  path,
		Data:  data,
		Pages: count,
		Size:  overlay.PageSize{Width: dims[0].Width, Height: dims[0].Height},
	}, nil
}
