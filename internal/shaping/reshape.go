package shaping

// glyph is one joining unit: a letter, a lam-alef ligature or a rune that
// does not take part in joining, followed by its diacritics.
type glyph struct {
	r      rune
	alef   rune // non-zero when r is a lam fused with this alef
	marks  []rune
	joiner bool
}

func (g *glyph) joinsPrev() bool {
	if !g.joiner {
		return false
	}
	if g.alef != 0 {
		return true
	}
	return letterForms[g.r][final] != 0
}

func (g *glyph) joinsNext() bool {
	return g.joiner && g.alef == 0 && letterForms[g.r][initial] != 0
}

// reshape replaces the Arabic letters of s with their contextual
// presentation forms. Runes outside the letter table pass through and break
// joining.
func reshape(s string, cfg Config) string {
	runes := []rune(s)
	glyphs := make([]*glyph, 0, len(runes))

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		switch {
		case isHaraka(r):
			if cfg.DeleteHarakat {
				continue
			}
			if n := len(glyphs); n > 0 && glyphs[n-1].joiner {
				glyphs[n-1].marks = append(glyphs[n-1].marks, r)
				continue
			}
			glyphs = append(glyphs, &glyph{r: r})
			continue
		case r == tatweel && cfg.DeleteTatweel:
			continue
		}

		if _, ok := letterForms[r]; !ok {
			glyphs = append(glyphs, &glyph{r: r})
			continue
		}

		g := &glyph{r: r, joiner: true}
		if r == lam && cfg.Ligatures {
			if j, alef := nextLetter(runes, i+1); alef != 0 {
				if _, ok := lamAlef[alef]; ok {
					g.alef = alef
					// marks between lam and alef stay on the ligature
					for _, m := range runes[i+1 : j] {
						if !cfg.DeleteHarakat {
							g.marks = append(g.marks, m)
						}
					}
					i = j
				}
			}
		}
		glyphs = append(glyphs, g)
	}

	out := make([]rune, 0, len(runes))
	for i, g := range glyphs {
		if !g.joiner {
			out = append(out, g.r)
			out = append(out, g.marks...)
			continue
		}

		prev := i > 0 && glyphs[i-1].joinsNext() && g.joinsPrev()
		next := i < len(glyphs)-1 && g.joinsNext() && glyphs[i+1].joinsPrev()

		if g.alef != 0 {
			forms := lamAlef[g.alef]
			if prev {
				out = append(out, forms[1])
			} else {
				out = append(out, forms[0])
			}
			out = append(out, g.marks...)
			continue
		}

		forms := letterForms[g.r]
		slot := isolated
		switch {
		case prev && next:
			slot = medial
		case prev:
			slot = final
		case next:
			slot = initial
		}
		if forms[slot] == 0 {
			slot = isolated
		}
		out = append(out, forms[slot])
		out = append(out, g.marks...)
	}
	return string(out)
}

// nextLetter returns the index and rune of the first non-haraka rune at or
// after i, or (len, 0) when there is none.
func nextLetter(runes []rune, i int) (int, rune) {
	for ; i < len(runes); i++ {
		if !isHaraka(runes[i]) {
			return i, runes[i]
		}
	}
	return len(runes), 0
}
