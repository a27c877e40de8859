package summary

import (
	"context"
	"fmt"
	"strings"

	"github.com/feedny/backend/internal/analysis"
	"github.com/feedny/backend/internal/analysis/textrank"
)

// Sentiment bounds splitting praise from criticism.
const (
	positiveFrom = 7
	negativeUpTo = 4
)

// OfflineSummarizer builds the four-section analysis from TextRank
// keywords and representative fragments, without any network call.
type OfflineSummarizer struct {
	stop *analysis.StopwordSet
}

// NewOfflineSummarizer creates an OfflineSummarizer. A nil stop uses the
// default stopwords.
func NewOfflineSummarizer(stop *analysis.StopwordSet) *OfflineSummarizer {
	if stop == nil {
		stop = analysis.DefaultStopwords()
	}
	return &OfflineSummarizer{stop: stop}
}

// Summarize never fails on valid input.
func (s *OfflineSummarizer) Summarize(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	var all, positive, negative []string
	var scoreSum, scored int
	for _, f := range req.Fragments {
		if f.IsBlank() {
			continue
		}
		text := strings.TrimSpace(f.Text)
		all = append(all, text)
		if v, ok := f.SentimentValue(); ok {
			scoreSum += v
			scored++
			switch {
			case v >= positiveFrom:
				positive = append(positive, text)
			case v <= negativeUpTo:
				negative = append(negative, text)
			}
		}
	}

	ext := textrank.NewExtractor(s.stop).SetNumKeywords(5)
	keywords := words(ext.Extract(strings.Join(all, "\n")))

	var b strings.Builder
	b.WriteString("1. Résumé général\n")
	fmt.Fprintf(&b, "%d retours analysés.", len(all))
	if len(keywords) > 0 {
		fmt.Fprintf(&b, " Thèmes principaux : %s.", strings.Join(keywords, ", "))
	}
	if scored > 0 {
		fmt.Fprintf(&b, " Émotion moyenne : %.1f/10.", float64(scoreSum)/float64(scored))
	}
	b.WriteString("\n\n2. Points positifs principaux\n")
	if scored == 0 {
		positive = all
	}
	writeItems(&b, ext.ExtractSentences(strings.Join(positive, "\n"), 3), "Aucun point positif marquant.")

	b.WriteString("\n3. Points à améliorer\n")
	writeItems(&b, ext.ExtractSentences(strings.Join(negative, "\n"), 3), "Aucun point négatif marquant.")

	b.WriteString("\n4. Recommandations pour l'enseignant\n")
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "- Approfondir les thèmes les plus cités : %s.\n", strings.Join(keywords, ", "))
	}
	if len(negative) > 0 {
		b.WriteString("- Revenir sur les points soulevés par les retours les moins favorables.\n")
	} else {
		b.WriteString("- Conserver l'approche actuelle.\n")
	}
	return strings.TrimSpace(b.String()), nil
}

func writeItems(b *strings.Builder, items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintf(b, "- %s\n", empty)
		return
	}
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}

func words(kws []textrank.Keyword) []string {
	out := make([]string, len(kws))
	for i, k := range kws {
		out[i] = k.Word
	}
	return out
}
