package document

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

var md = goldmark.New()

// StripMarkdown reduces one line of generated prose to plain text: emphasis
// and code markers are dropped, list items get a bullet, links keep their
// label. Any asterisk left over is removed.
func StripMarkdown(line string) string {
	source := []byte(line)
	node := md.Parser().Parse(text.NewReader(source))

	var b strings.Builder
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n.Kind() {
		case ast.KindText:
			t := n.(*ast.Text)
			b.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				b.WriteByte(' ')
			}
		case ast.KindString:
			b.Write(n.(*ast.String).Value)
		case ast.KindAutoLink:
			b.Write(n.(*ast.AutoLink).Label(source))
		case ast.KindListItem:
			b.WriteString("• ")
		case ast.KindRawHTML, ast.KindHTMLBlock:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	// thematic breaks and raw HTML leave nothing
	return strings.TrimSpace(strings.ReplaceAll(b.String(), "*", ""))
}

// stripHeading removes ATX markers and emphasis from a heading line.
func stripHeading(line string) string {
	line = strings.TrimSpace(line)
	if atxHeading.MatchString(line) {
		line = strings.TrimSpace(strings.TrimLeft(line, "#"))
		line = strings.TrimSpace(strings.TrimRight(line, "#"))
	}
	return strings.TrimSpace(strings.ReplaceAll(line, "*", ""))
}
