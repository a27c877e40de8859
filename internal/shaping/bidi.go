package shaping

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/bidi"
)

// baseDirection applies the first-strong-character rule.
func baseDirection(s string) bidi.Direction {
	for _, r := range s {
		props, _ := bidi.LookupRune(r)
		switch props.Class() {
		case bidi.L:
			return bidi.LeftToRight
		case bidi.R, bidi.AL:
			return bidi.RightToLeft
		}
	}
	return bidi.LeftToRight
}

var errMultipleParagraphs = errors.New("text holds more than one bidi paragraph")

type run struct {
	text string
	rtl  bool
}

// visualOrder reorders one paragraph from logical to visual order so that a
// renderer drawing left to right displays it correctly.
func visualOrder(s string) (string, error) {
	if s == "" {
		return s, nil
	}
	base := baseDirection(s)

	var p bidi.Paragraph
	var opts []bidi.Option
	if base == bidi.RightToLeft {
		opts = append(opts, bidi.DefaultDirection(bidi.RightToLeft))
	}
	n, err := p.SetString(s, opts...)
	if err != nil {
		return "", err
	}
	if n != len(s) {
		return "", errMultipleParagraphs
	}
	o, err := p.Order()
	if err != nil {
		return "", err
	}

	runs := make([]run, o.NumRuns())
	for i := range runs {
		r := o.Run(i)
		runs[i] = run{text: r.String(), rtl: r.Direction() == bidi.RightToLeft}
	}

	var b strings.Builder
	b.Grow(len(s))
	if base == bidi.RightToLeft {
		writeReversed(&b, runs)
		return b.String(), nil
	}

	for i := 0; i < len(runs); {
		if !runs[i].rtl {
			b.WriteString(runs[i].text)
			i++
			continue
		}
		// Weak left-to-right runs (digits) sandwiched between right-to-left
		// runs belong to the same embedding and move with it.
		j := i
		for j+2 < len(runs) && !runs[j+1].rtl && !hasStrongLTR(runs[j+1].text) && runs[j+2].rtl {
			j += 2
		}
		writeReversed(&b, runs[i:j+1])
		i = j + 1
	}
	return b.String(), nil
}

// writeReversed writes runs in reverse order, reversing right-to-left runs.
func writeReversed(b *strings.Builder, runs []run) {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].rtl {
			b.WriteString(reverseClusters(runs[i].text))
		} else {
			b.WriteString(runs[i].text)
		}
	}
}

func hasStrongLTR(s string) bool {
	for _, r := range s {
		if props, _ := bidi.LookupRune(r); props.Class() == bidi.L {
			return true
		}
	}
	return false
}

// reverseClusters reverses s by grapheme-like clusters: combining marks stay
// after their base rune. Paired brackets are mirrored.
func reverseClusters(s string) string {
	runes := []rune(s)
	var clusters [][]rune
	for _, r := range runes {
		if unicode.Is(unicode.Mn, r) && len(clusters) > 0 {
			last := len(clusters) - 1
			clusters[last] = append(clusters[last], r)
			continue
		}
		if m, ok := mirrored[r]; ok {
			r = m
		}
		clusters = append(clusters, []rune{r})
	}

	out := make([]rune, 0, len(runes))
	for i := len(clusters) - 1; i >= 0; i-- {
		out = append(out, clusters[i]...)
	}
	return string(out)
}
