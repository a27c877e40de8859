// Package analysis provides tokenization, stopword filtering and script
// detection for feedback text.
package analysis

import "unicode"

// Direction is the dominant writing direction of a text.
type Direction int

const (
	// Neutral means no strong letters were found.
	Neutral Direction = iota
	// LeftToRight is Latin-dominant text.
	LeftToRight
	// RightToLeft is Arabic-dominant text.
	RightToLeft
)

// String returns a short label for logs.
func (d Direction) String() string {
	switch d {
	case LeftToRight:
		return "ltr"
	case RightToLeft:
		return "rtl"
	default:
		return "neutral"
	}
}

// IsArabicRune reports whether r lies in the Arabic, Arabic Supplement or
// Arabic Extended-A blocks.
func IsArabicRune(r rune) bool {
	return (r >= 0x0600 && r <= 0x06FF) ||
		(r >= 0x0750 && r <= 0x077F) ||
		(r >= 0x08A0 && r <= 0x08FF)
}

// HasArabic reports whether any rune of text is Arabic.
func HasArabic(text string) bool {
	for _, r := range text {
		if IsArabicRune(r) {
			return true
		}
	}
	return false
}

// DominantDirection counts letters per script and returns the majority
// direction. Ties go to right-to-left so mixed Arabic lines stay readable.
func DominantDirection(text string) Direction {
	rtl, ltr := 0, 0
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		if IsArabicRune(r) {
			rtl++
		} else {
			ltr++
		}
	}

	switch {
	case rtl == 0 && ltr == 0:
		return Neutral
	case rtl >= ltr:
		return RightToLeft
	default:
		return LeftToRight
	}
}
