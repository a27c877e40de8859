// Package fonts locates a TrueType font able to render Latin and Arabic text.
package fonts

import (
	"os"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/goregular"

	apperrors "github.com/feedny/backend/internal/errors"
)

var (
	fallbackFont *truetype.Font
	fallbackOnce sync.Once
)

// Fallback returns the built-in Go Regular font. It has no Arabic glyphs.
func Fallback() *truetype.Font {
	fallbackOnce.Do(func() {
		f, err := truetype.Parse(goregular.TTF)
		if err != nil {
			panic("fonts: embedded Go Regular font is invalid: " + err.Error())
		}
		fallbackFont = f
	})
	return fallbackFont
}

// FallbackTTF returns the raw bytes of the built-in font.
func FallbackTTF() []byte {
	return goregular.TTF
}

// Load reads and parses the TrueType font at path.
func Load(path string) (*truetype.Font, error) {
	f, _, err := read(path)
	return f, err
}

// ReadTTF returns the bytes of the TrueType font at path after checking
// that they parse.
func ReadTTF(path string) ([]byte, error) {
	_, data, err := read(path)
	return data, err
}

func read(path string) (*truetype.Font, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrFontUnavailable, "read font "+path, err)
	}
	f, err := truetype.Parse(data)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrFontUnavailable, "parse font "+path, err)
	}
	return f, data, nil
}

// LoadOrFallback loads path, or returns the built-in font when path is
// empty or unreadable.
func LoadOrFallback(path string) *truetype.Font {
	if path == "" {
		return Fallback()
	}
	f, err := Load(path)
	if err != nil {
		return Fallback()
	}
	return f
}

// valid reports whether path holds a parseable TrueType font.
func valid(path string) bool {
	_, err := Load(path)
	return err == nil
}
