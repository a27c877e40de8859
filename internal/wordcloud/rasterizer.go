package wordcloud

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"math/rand"
	"time"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"

	"github.com/feedny/backend/internal/analysis"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/fonts"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/models"
)

// Placement is where one term landed on the canvas.
type Placement struct {
	Token    string
	FontSize float64
	Vertical bool
	Box      image.Rectangle
	Color    color.Color
}

// Rasterizer draws frequency tables. It is safe for concurrent use.
type Rasterizer struct {
	font *truetype.Font
}

// NewRasterizer creates a Rasterizer drawing with f, or with the built-in
// font when f is nil.
func NewRasterizer(f *truetype.Font) *Rasterizer {
	if f == nil {
		f = fonts.Fallback()
	}
	return &Rasterizer{font: f}
}

// Rasterize renders table into a PNG. It never fails: an empty table, a
// canvas too small for any term, or an internal error all produce the
// empty artifact.
func (r *Rasterizer) Rasterize(table analysis.FrequencyTable, opts Options) (art *models.RenderedArtifact) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("wordcloud rasterization panicked", fmt.Errorf("%v", rec), map[string]interface{}{
				"code": string(apperrors.ErrRasterizationFailed),
			})
			art = models.EmptyArtifact()
		}
	}()

	start := time.Now()
	art, placements, err := r.render(table, opts)
	if err != nil {
		logging.Error("wordcloud rasterization failed", err, map[string]interface{}{
			"code":  string(apperrors.ErrRasterizationFailed),
			"terms": len(table),
		})
		return models.EmptyArtifact()
	}
	if !art.Empty() {
		logging.Debug("wordcloud rendered", map[string]interface{}{
			"terms":       len(art.Frequencies),
			"placed":      len(placements),
			"bytes":       len(art.Image),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
	return art
}

// Layout returns the placements Rasterize would draw, without encoding.
func (r *Rasterizer) Layout(table analysis.FrequencyTable, opts Options) ([]Placement, error) {
	_, placements, err := r.render(table, opts)
	return placements, err
}

func (r *Rasterizer) render(table analysis.FrequencyTable, opts Options) (*models.RenderedArtifact, []Placement, error) {
	opts = opts.normalized()
	terms := selectTerms(table, opts.MaxTerms)
	if len(terms) == 0 {
		return models.EmptyArtifact(), nil, nil
	}

	dc := gg.NewContext(opts.Width, opts.Height)
	dc.SetColor(parseBackground(opts.Background))
	dc.Clear()

	placements := r.layout(dc, terms, opts)
	if len(placements) == 0 {
		return nil, nil, apperrors.Newf(apperrors.ErrRasterizationFailed,
			"no term fits a %dx%d canvas", opts.Width, opts.Height)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.PNG); err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrRasterizationFailed, "encode png", err)
	}

	var total float64
	for _, t := range terms {
		total += t.Frequency
	}
	freqs := make(map[string]float64, len(terms))
	weights := make(map[string]float64, len(terms))
	for _, t := range terms {
		freqs[t.Token] = t.Frequency
		weights[t.Token] = t.Frequency / total
	}

	return &models.RenderedArtifact{
		Image:       buf.Bytes(),
		Width:       opts.Width,
		Height:      opts.Height,
		Frequencies: freqs,
		Weights:     weights,
	}, placements, nil
}

// selectTerms keeps the top n terms with a positive finite frequency.
func selectTerms(table analysis.FrequencyTable, n int) []analysis.Term {
	clean := make(analysis.FrequencyTable, len(table))
	for tok, f := range table {
		if tok != "" && f > 0 && !math.IsInf(f, 0) && !math.IsNaN(f) {
			clean[tok] = f
		}
	}
	return clean.Top(n)
}

// layout places terms largest first. Each term keeps the previous term's
// font size scaled by their frequency ratio, is tried in its drawn
// orientation, then the other one, then shrinks until it fits or drops
// below the minimum size, which ends the layout.
func (r *Rasterizer) layout(dc *gg.Context, terms []analysis.Term, opts Options) []Placement {
	rng := rand.New(rand.NewSource(opts.Seed))
	occ := newOccupancy(opts.Width, opts.Height)
	palette := Palette(opts.Palette)
	faces := map[float64]font.Face{}

	canvas := dc.Image().(*image.RGBA)
	var bg [4]uint8
	copy(bg[:], canvas.Pix[0:4])

	rs := opts.RelativeScaling
	size := opts.MaxFontSize
	lastFreq := terms[0].Frequency
	var placements []Placement

	for _, t := range terms {
		if rs != 0 {
			size = math.Round((rs*t.Frequency/lastFreq + (1 - rs)) * size)
		}
		vertical := rng.Float64() >= opts.HorizontalBias
		triedOther := false

		var (
			x, y, bw, bh int
			tw, asc, th  float64
			found        bool
		)
		for size >= opts.MinFontSize {
			face := faceFor(faces, r.font, size)
			dc.SetFontFace(face)
			tw, _ = dc.MeasureString(t.Token)
			m := face.Metrics()
			asc = float64(m.Ascent) / 64
			th = asc + float64(m.Descent)/64

			bw = int(math.Ceil(tw)) + opts.Margin
			bh = int(math.Ceil(th)) + opts.Margin
			if vertical {
				bw, bh = bh, bw
			}
			if x, y, found = occ.sample(bw, bh, rng); found {
				break
			}
			if !triedOther && opts.HorizontalBias < 1 {
				vertical = !vertical
				triedOther = true
				continue
			}
			size -= opts.FontStep
			vertical = false
		}
		if !found {
			break
		}

		c := palette[rng.Intn(len(palette))]
		cx := float64(x) + float64(bw)/2
		cy := float64(y) + float64(bh)/2

		dc.SetColor(c)
		if vertical {
			dc.Push()
			dc.RotateAbout(gg.Radians(-90), cx, cy)
		}
		dc.DrawString(t.Token, cx-tw/2, cy-th/2+asc)
		if vertical {
			dc.Pop()
		}

		box := image.Rect(x, y, x+bw, y+bh)
		occ.markFrom(canvas, box, bg)
		placements = append(placements, Placement{
			Token:    t.Token,
			FontSize: size,
			Vertical: vertical,
			Box:      box,
			Color:    c,
		})
		lastFreq = t.Frequency
	}
	return placements
}

func faceFor(cache map[float64]font.Face, f *truetype.Font, size float64) font.Face {
	if face, ok := cache[size]; ok {
		return face
	}
	face := truetype.NewFace(f, &truetype.Options{Size: size})
	cache[size] = face
	return face
}
