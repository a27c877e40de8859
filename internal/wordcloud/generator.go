package wordcloud

import (
	"strings"

	"github.com/feedny/backend/internal/analysis"
	"github.com/feedny/backend/internal/models"
	"github.com/feedny/backend/internal/shaping"
)

// Generator turns raw feedback into a wordcloud: tokens are extracted,
// shaped for display, then rasterized.
type Generator struct {
	raster  *Rasterizer
	shaper  *shaping.Shaper
	stop    *analysis.StopwordSet
	opts    Options
	extract analysis.ExtractOptions
}

// NewGenerator wires the pipeline stages. A nil shaper uses the default
// configuration; a nil stopword set uses analysis.DefaultStopwords.
func NewGenerator(raster *Rasterizer, shaper *shaping.Shaper, stop *analysis.StopwordSet, opts Options) *Generator {
	if raster == nil {
		raster = NewRasterizer(nil)
	}
	if shaper == nil {
		shaper = shaping.New(shaping.DefaultConfig())
	}
	if stop == nil {
		stop = analysis.DefaultStopwords()
	}
	return &Generator{raster: raster, shaper: shaper, stop: stop, opts: opts}
}

// WithSentimentWeighting returns a copy of g where fragment sentiment
// scales token counts. g itself is unchanged.
func (g *Generator) WithSentimentWeighting(on bool) *Generator {
	c := *g
	c.extract.WeightBySentiment = on
	return &c
}

// Options returns the rasterizer options in use.
func (g *Generator) Options() Options {
	return g.opts
}

// Prepare extracts and shapes the frequency table of frags.
func (g *Generator) Prepare(frags []models.Fragment) analysis.FrequencyTable {
	return g.shaper.ShapeTable(analysis.ExtractFragments(frags, g.stop, g.extract))
}

// PrepareText extracts and shapes the frequency table of text.
func (g *Generator) PrepareText(text string) analysis.FrequencyTable {
	return g.shaper.ShapeTable(analysis.ExtractFrequencies(text, g.stop, g.extract.Pattern))
}

// FromText renders text. Blank text yields the empty artifact.
func (g *Generator) FromText(text string) *models.RenderedArtifact {
	if strings.TrimSpace(text) == "" {
		return models.EmptyArtifact()
	}
	return g.raster.Rasterize(g.PrepareText(text), g.opts)
}

// FromFragments renders a set of fragments.
func (g *Generator) FromFragments(frags []models.Fragment) *models.RenderedArtifact {
	return g.raster.Rasterize(g.Prepare(frags), g.opts)
}

// Rasterizer returns the underlying rasterizer.
func (g *Generator) Rasterizer() *Rasterizer {
	return g.raster
}
