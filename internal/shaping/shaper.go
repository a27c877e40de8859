// Package shaping prepares Arabic text for renderers that draw glyphs left
// to right without complex script support: letters are replaced by their
// contextual presentation forms and the result is put in visual order.
package shaping

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/feedny/backend/internal/analysis"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
)

// Config controls reshaping.
type Config struct {
	// Ligatures fuses lam followed by alef into one glyph.
	Ligatures bool
	// DeleteHarakat drops diacritics.
	DeleteHarakat bool
	// DeleteTatweel drops the elongation character U+0640.
	DeleteTatweel bool
	// SkipReorder leaves the reshaped text in logical order.
	SkipReorder bool
}

// DefaultConfig returns ligatures on, harakat removed, tatweel kept.
func DefaultConfig() Config {
	return Config{Ligatures: true, DeleteHarakat: true}
}

// Shaper is safe for concurrent use.
type Shaper struct {
	cfg Config
}

// New creates a Shaper.
func New(cfg Config) *Shaper {
	return &Shaper{cfg: cfg}
}

// Config returns the shaper configuration.
func (s *Shaper) Config() Config {
	return s.cfg
}

// Shape returns token ready for a left-to-right rasterizer. Tokens without
// Arabic are returned unchanged, and so is any token that fails to shape.
func (s *Shaper) Shape(token string) string {
	if !analysis.HasArabic(token) {
		return token
	}
	out, err := s.shape(token)
	if err != nil {
		logging.Debug("token left unshaped", map[string]interface{}{
			"code":  string(apperrors.ErrShapingFailed),
			"error": err.Error(),
		})
		return token
	}
	return out
}

// ShapeLine shapes a paragraph mixing scripts, line by line.
func (s *Shaper) ShapeLine(line string) string {
	if !analysis.HasArabic(line) {
		return line
	}
	parts := strings.Split(line, "\n")
	for i, p := range parts {
		parts[i] = s.Shape(p)
	}
	return strings.Join(parts, "\n")
}

// ShapeTable shapes every key of t. Keys that collide after shaping have
// their frequencies summed.
func (s *Shaper) ShapeTable(t analysis.FrequencyTable) analysis.FrequencyTable {
	out := make(analysis.FrequencyTable, len(t))
	for tok, f := range t {
		out[s.Shape(tok)] += f
	}
	return out
}

func (s *Shaper) shape(token string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.New(apperrors.ErrShapingFailed, fmt.Sprintf("panic: %v", r))
		}
	}()

	if !utf8.ValidString(token) {
		return "", apperrors.New(apperrors.ErrShapingFailed, "invalid UTF-8")
	}

	shaped := reshape(token, s.cfg)
	if s.cfg.SkipReorder {
		return shaped, nil
	}
	visual, err := visualOrder(shaped)
	if err != nil {
		return "", apperrors.Wrap(apperrors.ErrShapingFailed, "bidi reorder", err)
	}
	return visual, nil
}
