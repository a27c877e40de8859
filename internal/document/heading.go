package document

import (
	"regexp"
	"strings"
)

// HeadingClassifier reports whether a line of analysis prose is a section
// heading.
type HeadingClassifier func(line string) bool

// DefaultHeadingKeywords are the section names of the generated analysis.
var DefaultHeadingKeywords = []string{
	"résumé",
	"points positifs",
	"points à améliorer",
	"recommandations",
}

var (
	numberedHeading = regexp.MustCompile(`^[0-9]+\.`)
	atxHeading      = regexp.MustCompile(`^#{1,6}(\s|$)`)
)

// NewHeadingClassifier matches lines that start with "N.", are markdown
// ATX headings, or contain one of keywords (case-insensitive).
func NewHeadingClassifier(keywords []string) HeadingClassifier {
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			lowered = append(lowered, k)
		}
	}
	return func(line string) bool {
		line = strings.TrimSpace(line)
		if line == "" {
			return false
		}
		if numberedHeading.MatchString(line) || atxHeading.MatchString(line) {
			return true
		}
		l := strings.ToLower(line)
		for _, k := range lowered {
			if strings.Contains(l, k) {
				return true
			}
		}
		return false
	}
}

// DefaultHeadingClassifier uses DefaultHeadingKeywords.
func DefaultHeadingClassifier() HeadingClassifier {
	return NewHeadingClassifier(DefaultHeadingKeywords)
}
