package document

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feedny/backend/internal/config"
	"github.com/feedny/backend/internal/fonts"
	"github.com/feedny/backend/internal/models"
)

func TestMain(m *testing.M) {
	api.DisableConfigDir()
	os.Exit(m.Run())
}

var fixedTime = time.Date(2025, 3, 5, 14, 7, 0, 0, time.UTC)

func pageCount(t *testing.T, pdf []byte) int {
	t.Helper()
	n, err := api.PageCount(bytes.NewReader(pdf), nil)
	require.NoError(t, err)
	return n
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, imaging.New(w, h, color.NRGBA{R: 31, G: 119, B: 180, A: 255}), imaging.PNG))
	return buf.Bytes()
}

func testFontPath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "GoRegular.ttf")
	require.NoError(t, os.WriteFile(path, fonts.FallbackTTF(), 0o644))
	return path
}

func kinds(blocks []Block) []BlockKind {
	out := make([]BlockKind, len(blocks))
	for i, b := range blocks {
		out[i] = b.Kind
	}
	return out
}

// TestCompose_placeholderScenario verifies a document without image still
// renders its heading and body lines.
func TestCompose_placeholderScenario(t *testing.T) {
	c := NewCompositor("", nil)
	req := models.CompositionRequest{
		Title:        "Title",
		AnalysisText: "1. Résumé\nBon cours",
		GeneratedAt:  fixedTime,
	}

	blocks := c.Layout(req)
	assert.Equal(t, []BlockKind{
		BlockTitle, BlockDate, BlockSection, BlockPlaceholder, BlockSection, BlockHeading, BlockBody,
	}, kinds(blocks))
	assert.Equal(t, "Title", blocks[0].Text)
	assert.Equal(t, ImagePlaceholder, blocks[3].Text)
	assert.Equal(t, "1. Résumé", blocks[5].Text)
	assert.Equal(t, "Bon cours", blocks[6].Text)

	out, err := c.Compose(req)
	require.NoError(t, err)
	require.NotEmpty(t, out)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Equal(t, 1, pageCount(t, out))
}

// TestLayout_header verifies title defaults, the date line and the context line.
func TestLayout_header(t *testing.T) {
	c := NewCompositor("", nil, WithClock(func() time.Time { return fixedTime }))

	blocks := c.Layout(models.CompositionRequest{Context: "  Cours de Go  "})
	assert.Equal(t, DefaultTitle, blocks[0].Text)
	assert.Equal(t, "Généré le 05/03/2025 à 14:07", blocks[1].Text)
	assert.Equal(t, BlockContext, blocks[2].Kind)
	assert.Equal(t, "Contexte : Cours de Go", blocks[2].Text)

	blocks = c.Layout(models.CompositionRequest{Context: "   "})
	for _, b := range blocks {
		assert.NotEqual(t, BlockContext, b.Kind)
	}
}

// TestLayout_analysisLines verifies heading detection and markdown cleanup.
func TestLayout_analysisLines(t *testing.T) {
	c := NewCompositor("", nil)
	text := strings.Join([]string{
		"## Points positifs",
		"**Très bon** rythme",
		"",
		"- *exercices* utiles",
		"Le `code` est clair",
		"---",
		"Recommandations :",
		"ملاحظات جيدة جدا",
	}, "\n")

	var got []Block
	for _, b := range c.Layout(models.CompositionRequest{AnalysisText: text, GeneratedAt: fixedTime}) {
		if b.Kind == BlockHeading || b.Kind == BlockBody {
			got = append(got, b)
		}
	}
	require.Len(t, got, 6)
	assert.Equal(t, Block{Kind: BlockHeading, Text: "Points positifs"}, got[0])
	assert.Equal(t, Block{Kind: BlockBody, Text: "Très bon rythme"}, got[1])
	assert.Equal(t, Block{Kind: BlockBody, Text: "• exercices utiles"}, got[2])
	assert.Equal(t, Block{Kind: BlockBody, Text: "Le code est clair"}, got[3])
	assert.Equal(t, Block{Kind: BlockHeading, Text: "Recommandations :"}, got[4])
	assert.Equal(t, BlockBody, got[5].Kind)
	assert.True(t, got[5].RTL)
}

// TestHeadingClassifier verifies the default and injected heuristics.
func TestHeadingClassifier(t *testing.T) {
	def := DefaultHeadingClassifier()
	tests := []struct {
		line string
		want bool
	}{
		{"1. Résumé général", true},
		{"12. Suite", true},
		{"RÉSUMÉ", true},
		{"Points à améliorer", true},
		{"# Titre", true},
		{"#hashtag", false},
		{"Bon cours", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, def(tt.line), tt.line)
	}

	custom := NewHeadingClassifier([]string{"Strengths", " "})
	assert.True(t, custom("Key strengths"))
	assert.False(t, custom("Résumé"))

	c := NewCompositor("", nil, WithHeadingClassifier(func(string) bool { return false }))
	for _, b := range c.Layout(models.CompositionRequest{AnalysisText: "1. Résumé"}) {
		assert.NotEqual(t, BlockHeading, b.Kind)
	}
}

// TestOptionsFromConfig verifies configured keywords replace the defaults.
func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default().Document
	cfg.Title = "Rapport"
	cfg.HeadingKeywords = []string{"synthèse"}

	c := NewCompositor("", nil, OptionsFromConfig(cfg)...)
	blocks := c.Layout(models.CompositionRequest{AnalysisText: "Synthèse\nPoints positifs"})
	assert.Equal(t, "Rapport", blocks[0].Text)
	last := blocks[len(blocks)-2:]
	assert.Equal(t, BlockHeading, last[0].Kind)
	assert.Equal(t, BlockBody, last[1].Kind)
}

func TestStripMarkdown(t *testing.T) {
	assert.Equal(t, "gras et italique", StripMarkdown("**gras** et _italique_"))
	assert.Equal(t, "• point", StripMarkdown("* point"))
	assert.Equal(t, "lien", StripMarkdown("[lien](https://example.com)"))
	assert.Equal(t, "", StripMarkdown("***"))
	assert.Equal(t, "reste", StripMarkdown("reste*"))
}

func TestFitImage(t *testing.T) {
	w, h := FitImage(200, 100, 100, 100)
	assert.Equal(t, 100.0, w)
	assert.Equal(t, 50.0, h)

	w, h = FitImage(50, 20, 100, 100)
	assert.Equal(t, 50.0, w, "never enlarged")
	assert.Equal(t, 20.0, h)

	w, h = FitImage(100, 200, 190, 100)
	assert.Equal(t, 50.0, w)
	assert.Equal(t, 100.0, h)

	w, h = FitImage(0, 10, 100, 100)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

// TestCompose_withImage verifies a valid PNG replaces the placeholder.
func TestCompose_withImage(t *testing.T) {
	c := NewCompositor("", nil)
	req := models.CompositionRequest{
		Title:        "Title",
		Image:        testPNG(t, 800, 400),
		AnalysisText: "Résumé\nTout va bien",
		GeneratedAt:  fixedTime,
	}
	assert.Contains(t, kinds(c.Layout(req)), BlockImage)

	out, err := c.Compose(req)
	require.NoError(t, err)
	assert.Equal(t, 1, pageCount(t, out))

	req.Image = []byte("not an image")
	assert.Contains(t, kinds(c.Layout(req)), BlockPlaceholder)
	_, err = c.Compose(req)
	require.NoError(t, err)
}

// TestCompose_portraitA4 verifies every page is single-column A4 portrait.
func TestCompose_portraitA4(t *testing.T) {
	out, err := NewCompositor("", nil).Compose(models.CompositionRequest{
		Image:        testPNG(t, 800, 400),
		AnalysisText: "1. Résumé\nBon cours",
		GeneratedAt:  fixedTime,
	})
	require.NoError(t, err)

	dims, err := api.PageDims(bytes.NewReader(out), nil)
	require.NoError(t, err)
	require.NotEmpty(t, dims)
	for _, d := range dims {
		assert.InDelta(t, 595.28, d.Width, 0.5)
		assert.InDelta(t, 841.89, d.Height, 0.5)
	}
}

// TestCompose_paginates verifies long analyses flow onto further pages.
func TestCompose_paginates(t *testing.T) {
	lines := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		lines = append(lines, "Les participants ont apprécié les exercices pratiques et le rythme.")
	}
	out, err := NewCompositor("", nil).Compose(models.CompositionRequest{
		Image:        testPNG(t, 800, 400),
		AnalysisText: strings.Join(lines, "\n"),
	})
	require.NoError(t, err)
	assert.Greater(t, pageCount(t, out), 1)
}

// TestCompose_embeddedFont verifies UTF-8 text with Arabic composes with a
// TrueType font and that a broken font path degrades to the core font.
func TestCompose_embeddedFont(t *testing.T) {
	c := NewCompositor(testFontPath(t), nil)
	require.True(t, c.EmbedsFont())

	req := models.CompositionRequest{
		Title:        "Feedny",
		Context:      "دورة البرمجة",
		Image:        testPNG(t, 120, 60),
		AnalysisText: "1. Résumé\nGreat course! دورة رائعة\nملاحظات جيدة جدا",
	}
	out, err := c.Compose(req)
	require.NoError(t, err)
	assert.Equal(t, 1, pageCount(t, out))

	bad := filepath.Join(t.TempDir(), "broken.ttf")
	require.NoError(t, os.WriteFile(bad, []byte("nope"), 0o644))
	degraded := NewCompositor(bad, nil)
	assert.False(t, degraded.EmbedsFont())
	out, err = degraded.Compose(req)
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestToWindows1252(t *testing.T) {
	assert.Equal(t, "\xe9t\xe9 \x80", toWindows1252("été €"))
	assert.Equal(t, "??", toWindows1252("دو"))
	assert.Equal(t, "\x95 a", toWindows1252("• a"))
}
