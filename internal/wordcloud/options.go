// Package wordcloud lays out weighted terms on a canvas and encodes the
// result as PNG.
package wordcloud

import (
	"math"

	"github.com/feedny/backend/internal/config"
)

// Options controls the rasterizer.
type Options struct {
	Width  int
	Height int
	// MaxTerms keeps only the most frequent terms.
	MaxTerms int
	// HorizontalBias is the probability that a term is drawn horizontally.
	HorizontalBias float64
	Palette        string
	Seed           int64
	// RelativeScaling blends rank-based (0) and frequency-proportional (1)
	// font sizes.
	RelativeScaling float64
	MinFontSize     float64
	// MaxFontSize of 0 means 45% of the canvas height.
	MaxFontSize float64
	FontStep    float64
	// Margin is the free space kept around every term, in pixels.
	Margin     int
	Background string
}

// DefaultOptions returns an 800x400 white canvas with up to 100 terms.
func DefaultOptions() Options {
	return Options{
		Width:           800,
		Height:          400,
		MaxTerms:        100,
		HorizontalBias:  0.9,
		Palette:         "tab20",
		Seed:            42,
		RelativeScaling: 0.5,
		MinFontSize:     10,
		FontStep:        2,
		Margin:          4,
		Background:      "#ffffff",
	}
}

// OptionsFromConfig overlays the wordcloud configuration on the defaults.
func OptionsFromConfig(cfg config.WordcloudConfig) Options {
	o := DefaultOptions()
	o.Width = cfg.Width
	o.Height = cfg.Height
	o.MaxTerms = cfg.MaxWords
	o.HorizontalBias = cfg.PreferHorizontal
	o.Palette = cfg.Palette
	o.Seed = cfg.Seed
	o.RelativeScaling = cfg.RelativeScaling
	o.MinFontSize = cfg.MinFontSize
	o.MaxFontSize = cfg.MaxFontSize
	if cfg.Background != "" {
		o.Background = cfg.Background
	}
	return o.normalized()
}

// normalized replaces values that cannot be drawn with defaults.
func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.Width <= 0 {
		o.Width = d.Width
	}
	if o.Height <= 0 {
		o.Height = d.Height
	}
	if o.MaxTerms <= 0 {
		o.MaxTerms = d.MaxTerms
	}
	o.HorizontalBias = math.Max(0, math.Min(1, o.HorizontalBias))
	o.RelativeScaling = math.Max(0, math.Min(1, o.RelativeScaling))
	if o.MinFontSize <= 0 {
		o.MinFontSize = 1
	}
	if o.MaxFontSize <= 0 {
		o.MaxFontSize = math.Floor(float64(o.Height) * 0.45)
	}
	if o.MaxFontSize < o.MinFontSize {
		o.MaxFontSize = o.MinFontSize
	}
	if o.FontStep <= 0 {
		o.FontStep = d.FontStep
	}
	if o.Margin < 0 {
		o.Margin = 0
	}
	if o.Palette == "" {
		o.Palette = d.Palette
	}
	if o.Background == "" {
		o.Background = d.Background
	}
	return o
}
