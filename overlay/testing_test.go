package overlay

import (
	"testing"

	"golang.org/x/image/font/gofont/goregular"
)

func goRegular(t *testing.T) []byte {
	t.Helper()
	return goregular.TTF
}
