// Package document composes the exported analysis PDF: a title block, the
// wordcloud image and the analysis prose.
package document

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"time"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/feedny/backend/internal/analysis"
	"github.com/feedny/backend/internal/config"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/fonts"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/models"
	"github.com/feedny/backend/internal/shaping"
)

// DefaultTitle is used when a request carries no title.
const DefaultTitle = "Feedny - Analyse des Feedbacks"

// Fixed labels of the document.
const (
	SectionWordcloud = "Nuage de mots"
	SectionAnalysis  = "Analyse IA"
	ImagePlaceholder = "(Image non disponible)"
)

const (
	pageMargin = 15.0 // mm
	ttfFamily  = "feedny"
	coreFamily = "Helvetica"
	pxToMM     = 25.4 / 96
)

// BlockKind identifies how a block is drawn.
type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockDate
	BlockContext
	BlockSection
	BlockImage
	BlockPlaceholder
	BlockHeading
	BlockBody
)

func (k BlockKind) String() string {
	switch k {
	case BlockTitle:
		return "title"
	case BlockDate:
		return "date"
	case BlockContext:
		return "context"
	case BlockSection:
		return "section"
	case BlockImage:
		return "image"
	case BlockPlaceholder:
		return "placeholder"
	case BlockHeading:
		return "heading"
	case BlockBody:
		return "body"
	default:
		return "unknown"
	}
}

// Block is one laid-out element in logical (unshaped) text.
type Block struct {
	Kind BlockKind
	Text string
	// RTL marks text whose dominant direction is right-to-left; it is
	// right-aligned.
	RTL bool
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithHeadingClassifier replaces the heading heuristic.
func WithHeadingClassifier(fn HeadingClassifier) Option {
	return func(c *Compositor) {
		if fn != nil {
			c.classify = fn
		}
	}
}

// WithHeadingKeywords uses the default heuristic with other keywords.
func WithHeadingKeywords(keywords ...string) Option {
	return func(c *Compositor) {
		if len(keywords) > 0 {
			c.classify = NewHeadingClassifier(keywords)
		}
	}
}

// WithImageHeightFraction caps the image height to a fraction of the page
// content height.
func WithImageHeightFraction(f float64) Option {
	return func(c *Compositor) {
		if f > 0 && f <= 1 {
			c.imageFraction = f
		}
	}
}

// WithDefaultTitle sets the title used when a request has none.
func WithDefaultTitle(title string) Option {
	return func(c *Compositor) {
		if strings.TrimSpace(title) != "" {
			c.defaultTitle = title
		}
	}
}

// WithClock sets the time source for requests without GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Compositor) {
		if now != nil {
			c.now = now
		}
	}
}

// OptionsFromConfig maps the document configuration to options.
func OptionsFromConfig(cfg config.DocumentConfig) []Option {
	return []Option{
		WithDefaultTitle(cfg.Title),
		WithHeadingKeywords(cfg.HeadingKeywords...),
		WithImageHeightFraction(cfg.ImageHeightFraction),
	}
}

// Compositor renders CompositionRequests to PDF. It is safe for concurrent
// use.
type Compositor struct {
	ttf           []byte
	shaper        *shaping.Shaper
	classify      HeadingClassifier
	imageFraction float64
	defaultTitle  string
	now           func() time.Time
}

// NewCompositor creates a Compositor embedding the font at fontPath. An
// empty or unusable path falls back to the core Helvetica font, which only
// covers Windows-1252.
func NewCompositor(fontPath string, shaper *shaping.Shaper, opts ...Option) *Compositor {
	if shaper == nil {
		shaper = shaping.New(shaping.DefaultConfig())
	}
	c := &Compositor{
		shaper:        shaper,
		classify:      DefaultHeadingClassifier(),
		imageFraction: 0.45,
		defaultTitle:  DefaultTitle,
		now:           time.Now,
	}
	if fontPath != "" {
		data, err := fonts.ReadTTF(fontPath)
		if err != nil {
			logging.Warn("document font unusable, using core font", map[string]interface{}{
				"code":  string(apperrors.ErrDegradedRendering),
				"path":  fontPath,
				"error": err.Error(),
			})
		} else {
			c.ttf = data
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbedsFont reports whether a TrueType font is embedded.
func (c *Compositor) EmbedsFont() bool {
	return c.ttf != nil
}

// Layout classifies the content of req into blocks, in drawing order.
func (c *Compositor) Layout(req models.CompositionRequest) []Block {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = c.defaultTitle
	}
	at := req.GeneratedAt
	if at.IsZero() {
		at = c.now()
	}

	blocks := []Block{
		textBlock(BlockTitle, title),
		{Kind: BlockDate, Text: "Généré le " + at.Format("02/01/2006 à 15:04")},
	}
	if ctx := strings.TrimSpace(req.Context); ctx != "" {
		blocks = append(blocks, textBlock(BlockContext, "Contexte : "+ctx))
	}

	blocks = append(blocks, Block{Kind: BlockSection, Text: SectionWordcloud})
	if _, _, ok := imageSize(req.Image); ok {
		blocks = append(blocks, Block{Kind: BlockImage})
	} else {
		blocks = append(blocks, Block{Kind: BlockPlaceholder, Text: ImagePlaceholder})
	}

	blocks = append(blocks, Block{Kind: BlockSection, Text: SectionAnalysis})
	for _, line := range strings.Split(req.AnalysisText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if c.classify(line) {
			if h := stripHeading(line); h != "" {
				blocks = append(blocks, textBlock(BlockHeading, h))
			}
			continue
		}
		if body := StripMarkdown(line); body != "" {
			blocks = append(blocks, textBlock(BlockBody, body))
		}
	}
	return blocks
}

func textBlock(kind BlockKind, text string) Block {
	return Block{Kind: kind, Text: text, RTL: analysis.DominantDirection(text) == analysis.RightToLeft}
}

// Compose renders req to PDF bytes. When the embedded font or the image
// cannot be used the document is rebuilt without them.
func (c *Compositor) Compose(req models.CompositionRequest) ([]byte, error) {
	blocks := c.Layout(req)

	type attempt struct{ ttf, image bool }
	attempts := []attempt{{c.ttf != nil, true}}
	if c.ttf != nil {
		attempts = append(attempts, attempt{false, true})
	}
	attempts = append(attempts, attempt{false, false})

	var lastErr error
	for i, a := range attempts {
		if i > 0 && !a.image && !hasBlock(blocks, BlockImage) {
			continue
		}
		out, err := c.render(blocks, req.Image, a.ttf, a.image)
		if err == nil {
			if i > 0 {
				logging.Warn("document composed in degraded mode", map[string]interface{}{
					"code":      string(apperrors.ErrDegradedRendering),
					"embed_ttf": a.ttf,
					"image":     a.image,
					"error":     lastErr.Error(),
				})
			}
			return out, nil
		}
		lastErr = err
	}
	return nil, apperrors.Wrap(apperrors.ErrCompositionFailed, "compose pdf", lastErr)
}

func hasBlock(blocks []Block, kind BlockKind) bool {
	for _, b := range blocks {
		if b.Kind == kind {
			return true
		}
	}
	return false
}

// renderer draws blocks on one fpdf document.
type renderer struct {
	pdf     *fpdf.Fpdf
	family  string
	utf8    bool
	shaper  *shaping.Shaper
	width   float64 // content width
	imgMaxH float64
}

func (c *Compositor) render(blocks []Block, img []byte, useTTF, useImage bool) (out []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out, err = nil, fmt.Errorf("pdf rendering panicked: %v", rec)
		}
	}()

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(true, pageMargin)

	r := &renderer{pdf: pdf, family: coreFamily, shaper: c.shaper}
	if useTTF {
		for _, style := range []string{"", "B", "I"} {
			pdf.AddUTF8FontFromBytes(ttfFamily, style, c.ttf)
		}
		r.family = ttfFamily
		r.utf8 = true
	}
	pdf.SetFooterFunc(func() {
		pdf.SetY(-pageMargin + 3)
		pdf.SetFont(r.family, "", 8)
		pdf.SetTextColor(150, 150, 150)
		pdf.CellFormat(0, 5, fmt.Sprintf("%d", pdf.PageNo()), "", 0, "C", false, 0, "")
	})
	if pdf.Err() {
		return nil, pdf.Error()
	}

	pdf.AddPage()
	pageW, pageH := pdf.GetPageSize()
	r.width = pageW - 2*pageMargin
	r.imgMaxH = (pageH - 2*pageMargin) * c.imageFraction

	for _, b := range blocks {
		if b.Kind == BlockImage && !useImage {
			b = Block{Kind: BlockPlaceholder, Text: ImagePlaceholder}
		}
		r.draw(b, img)
		if pdf.Err() {
			return nil, pdf.Error()
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	if buf.Len() == 0 {
		return nil, fmt.Errorf("empty pdf output")
	}
	return buf.Bytes(), nil
}

func (r *renderer) draw(b Block, img []byte) {
	pdf := r.pdf
	switch b.Kind {
	case BlockTitle:
		pdf.SetFont(r.family, "B", 18)
		pdf.SetTextColor(0, 0, 0)
		r.paragraph(b, 9, "C")
		pdf.Ln(1)
	case BlockDate:
		pdf.SetFont(r.family, "", 10)
		pdf.SetTextColor(128, 128, 128)
		r.paragraph(b, 5, "C")
		pdf.Ln(1)
	case BlockContext:
		pdf.SetFont(r.family, "I", 11)
		pdf.SetTextColor(90, 90, 90)
		r.paragraph(b, 6, "C")
		pdf.Ln(3)
	case BlockSection:
		pdf.Ln(3)
		pdf.SetFont(r.family, "B", 13)
		pdf.SetTextColor(0, 0, 0)
		r.paragraph(b, 7, "L")
		y := pdf.GetY()
		pdf.SetDrawColor(211, 211, 211)
		pdf.Line(pageMargin, y, pageMargin+r.width, y)
		pdf.Ln(2)
	case BlockImage:
		r.image(img)
	case BlockPlaceholder:
		pdf.SetFont(r.family, "I", 10)
		pdf.SetTextColor(128, 128, 128)
		r.paragraph(b, 5, "C")
	case BlockHeading:
		pdf.Ln(2)
		pdf.SetFont(r.family, "B", 12)
		pdf.SetTextColor(0, 0, 0)
		r.paragraph(b, 6, "L")
		pdf.Ln(1)
	case BlockBody:
		pdf.SetFont(r.family, "", 10)
		pdf.SetTextColor(0, 0, 0)
		r.paragraph(b, 5, "L")
	}
}

// paragraph writes wrapped text. Right-to-left text is wrapped in logical
// order and each line shaped separately so wrapping keeps reading order.
func (r *renderer) paragraph(b Block, lineH float64, align string) {
	if !analysis.HasArabic(b.Text) {
		r.pdf.MultiCell(0, lineH, r.encode(b.Text), "", align, false)
		return
	}
	if !b.RTL {
		r.pdf.MultiCell(0, lineH, r.encode(r.shaper.ShapeLine(b.Text)), "", align, false)
		return
	}
	if align == "L" {
		align = "R"
	}
	for _, line := range r.wrapLogical(b.Text) {
		r.pdf.CellFormat(0, lineH, r.encode(r.shaper.ShapeLine(line)), "", 1, align, false, 0, "")
	}
}

func (r *renderer) wrapLogical(text string) []string {
	var lines []string
	cur := ""
	for _, word := range strings.Fields(text) {
		candidate := word
		if cur != "" {
			candidate = cur + " " + word
		}
		if cur != "" && r.pdf.GetStringWidth(r.encode(r.shaper.ShapeLine(candidate))) > r.width {
			lines = append(lines, cur)
			cur = word
			continue
		}
		cur = candidate
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func (r *renderer) image(data []byte) {
	pw, ph, ok := imageSize(data)
	if !ok {
		return
	}
	w, h := FitImage(float64(pw)*pxToMM, float64(ph)*pxToMM, r.width, r.imgMaxH)

	_, format, _ := image.DecodeConfig(bytes.NewReader(data))
	opts := fpdf.ImageOptions{ImageType: imageType(format)}
	name := "wordcloud"
	r.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
	if r.pdf.Err() {
		return
	}
	x := pageMargin + (r.width-w)/2
	r.pdf.ImageOptions(name, x, 0, w, h, true, opts, 0, "")
	r.pdf.Ln(2)
}

func (r *renderer) encode(s string) string {
	if r.utf8 {
		return s
	}
	return toWindows1252(s)
}

// FitImage scales w x h to fit maxW x maxH, preserving the aspect ratio and
// never enlarging.
func FitImage(w, h, maxW, maxH float64) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 0, 0
	}
	scale := math.Min(math.Min(maxW/w, maxH/h), 1)
	return w * scale, h * scale
}

// imageSize decodes the header of a supported image.
func imageSize(data []byte) (int, int, bool) {
	if len(data) == 0 {
		return 0, 0, false
	}
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil || imageType(format) == "" || cfg.Width <= 0 || cfg.Height <= 0 {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

func imageType(format string) string {
	switch format {
	case "png":
		return "PNG"
	case "jpeg":
		return "JPG"
	case "gif":
		return "GIF"
	default:
		return ""
	}
}

// toWindows1252 encodes s for the core PDF fonts. Runes outside the code
// page become '?'.
func toWindows1252(s string) string {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.Windows1252.EncodeRune(r); ok {
			out = append(out, b)
			continue
		}
		out = append(out, '?')
	}
	return string(out)
}
