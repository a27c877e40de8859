package wordcloud

import (
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// qualitative palettes are used as-is.
var qualitative = map[string][]string{
	"tab20": {
		"#1f77b4", "#aec7e8", "#ff7f0e", "#ffbb78", "#2ca02c",
		"#98df8a", "#d62728", "#ff9896", "#9467bd", "#c5b0d5",
		"#8c564b", "#c49c94", "#e377c2", "#f7b6d2", "#7f7f7f",
		"#c7c7c7", "#bcbd22", "#dbdb8d", "#17becf", "#9edae5",
	},
	"tab10": {
		"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
		"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
	},
}

// sequential palettes are anchors interpolated in Luv space.
var sequential = map[string][]string{
	"viridis": {"#440154", "#482878", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"},
	"plasma":  {"#0d0887", "#46039f", "#7201a8", "#9c179e", "#bd3786", "#d8576b", "#ed7953", "#fb9f3a", "#fdca26", "#f0f921"},
	"ocean":   {"#023858", "#045a8d", "#0570b0", "#3690c0", "#74a9cf", "#41b6c4", "#1d91c0"},
}

const gradientSteps = 20

// Palette returns the colors of a named palette. Unknown names fall back
// to tab20.
func Palette(name string) []color.Color {
	name = strings.ToLower(strings.TrimSpace(name))
	if hexes, ok := qualitative[name]; ok {
		return parseAll(hexes)
	}
	if anchors, ok := sequential[name]; ok {
		return gradient(parseAll(anchors), gradientSteps)
	}
	return parseAll(qualitative["tab20"])
}

// PaletteNames lists the supported palettes.
func PaletteNames() []string {
	names := make([]string, 0, len(qualitative)+len(sequential))
	for n := range qualitative {
		names = append(names, n)
	}
	for n := range sequential {
		names = append(names, n)
	}
	return names
}

func parseAll(hexes []string) []color.Color {
	out := make([]color.Color, 0, len(hexes))
	for _, h := range hexes {
		c, err := colorful.Hex(h)
		if err != nil {
			continue
		}
		out = append(out, c)
	}
	return out
}

// gradient samples n evenly spaced colors along the anchor polyline.
func gradient(anchors []color.Color, n int) []color.Color {
	if len(anchors) < 2 {
		return anchors
	}
	out := make([]color.Color, n)
	segments := float64(len(anchors) - 1)
	for i := 0; i < n; i++ {
		pos := float64(i) / float64(n-1) * segments
		seg := int(pos)
		if seg >= len(anchors)-1 {
			seg = len(anchors) - 2
		}
		a := anchors[seg].(colorful.Color)
		b := anchors[seg+1].(colorful.Color)
		out[i] = a.BlendLuv(b, pos-float64(seg)).Clamped()
	}
	return out
}

// parseBackground parses a hex color, falling back to white.
func parseBackground(hex string) colorful.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	return c
}
