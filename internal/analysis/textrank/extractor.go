// Package textrank ranks keywords and sentences of feedback text with
// TextRank (Mihalcea & Tarau, 2004).
package textrank

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/feedny/backend/internal/analysis"
)

// Keyword is a ranked term.
type Keyword struct {
	Word  string
	Score float64
}

// Extractor ranks terms on a co-occurrence graph.
type Extractor struct {
	windowSize           int
	dampingFactor        float64
	convergenceThreshold float64
	maxIterations        int
	numKeywords          int
	stop                 *analysis.StopwordSet
}

// NewExtractor creates an Extractor filtering with stop.
// A nil stop keeps every token.
func NewExtractor(stop *analysis.StopwordSet) *Extractor {
	return &Extractor{
		windowSize:           4,
		dampingFactor:        0.85,
		convergenceThreshold: 0.0001,
		maxIterations:        100,
		numKeywords:          10,
		stop:                 stop,
	}
}

// SetWindowSize sets the co-occurrence window, counted in tokens.
func (e *Extractor) SetWindowSize(size int) *Extractor {
	if size >= 2 {
		e.windowSize = size
	}
	return e
}

// SetNumKeywords sets the number of keywords to return.
func (e *Extractor) SetNumKeywords(num int) *Extractor {
	if num > 0 {
		e.numKeywords = num
	}
	return e
}

// Extract returns the top keywords of text, best first. Co-occurrence
// windows stay inside a sentence and edges count how often two terms meet.
func (e *Extractor) Extract(text string) []Keyword {
	g := make(graph)
	for _, sentence := range SplitSentences(text) {
		tokens := analysis.Tokenize(sentence, e.stop, nil)
		for _, tok := range tokens {
			if g[tok] == nil {
				g[tok] = make(map[string]float64)
			}
		}
		for i := range tokens {
			for j := i + 1; j < len(tokens) && j < i+e.windowSize; j++ {
				if tokens[i] == tokens[j] {
					continue
				}
				g[tokens[i]][tokens[j]]++
				g[tokens[j]][tokens[i]]++
			}
		}
	}
	if len(g) == 0 {
		return []Keyword{}
	}

	scores := e.pageRank(g)
	return topKeywords(scores, e.numKeywords)
}

// ExtractSentences returns up to n sentences of text ranked by their
// word-overlap centrality, in their original order.
func (e *Extractor) ExtractSentences(text string, n int) []string {
	sentences := SplitSentences(text)
	if len(sentences) <= n || n <= 0 {
		return sentences
	}

	bags := make([]map[string]bool, len(sentences))
	for i, s := range sentences {
		bags[i] = make(map[string]bool)
		for _, tok := range analysis.Tokenize(s, e.stop, nil) {
			bags[i][tok] = true
		}
	}

	g := make(graph)
	ids := make([]string, len(sentences))
	for i := range sentences {
		ids[i] = sentenceID(i)
		g[ids[i]] = make(map[string]float64)
	}
	for i := range sentences {
		for j := i + 1; j < len(sentences); j++ {
			if w := overlap(bags[i], bags[j]); w > 0 {
				g[ids[i]][ids[j]] = w
				g[ids[j]][ids[i]] = w
			}
		}
	}

	scores := e.pageRank(g)
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[ids[order[a]]] > scores[ids[order[b]]]
	})
	picked := order[:n]
	sort.Ints(picked)

	out := make([]string, 0, n)
	for _, i := range picked {
		out = append(out, sentences[i])
	}
	return out
}

var sentenceEnd = regexp.MustCompile(`[.!?؟…]+\s+|\n+`)

// SplitSentences splits text on sentence punctuation and line breaks.
func SplitSentences(text string) []string {
	var out []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func sentenceID(i int) string {
	return fmt.Sprintf("s%06d", i)
}

// overlap is the normalized shared-word similarity of two sentences.
func overlap(a, b map[string]bool) float64 {
	if len(a) < 2 || len(b) < 2 {
		return 0
	}
	shared := 0
	for w := range a {
		if b[w] {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	return float64(shared) / (math.Log(float64(len(a))) + math.Log(float64(len(b))))
}

// graph is a weighted adjacency map.
type graph map[string]map[string]float64

// pageRank runs weighted PageRank. Nodes are visited in sorted order so
// results do not depend on map iteration.
func (e *Extractor) pageRank(g graph) map[string]float64 {
	if len(g) == 0 {
		return nil
	}

	nodes := make([]string, 0, len(g))
	for node := range g {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	outWeight := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		for _, w := range g[node] {
			outWeight[node] += w
		}
	}

	n := float64(len(nodes))
	scores := make(map[string]float64, len(nodes))
	for _, node := range nodes {
		scores[node] = 1 / n
	}

	for iter := 0; iter < e.maxIterations; iter++ {
		next := make(map[string]float64, len(nodes))
		maxChange := 0.0
		for _, node := range nodes {
			sum := 0.0
			for _, nb := range sortedNeighbors(g[node]) {
				if ow := outWeight[nb]; ow > 0 {
					sum += g[nb][node] / ow * scores[nb]
				}
			}
			score := (1-e.dampingFactor)/n + e.dampingFactor*sum
			next[node] = score
			if d := math.Abs(score - scores[node]); d > maxChange {
				maxChange = d
			}
		}
		scores = next
		if maxChange < e.convergenceThreshold {
			break
		}
	}
	return scores
}

func sortedNeighbors(m map[string]float64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func topKeywords(scores map[string]float64, n int) []Keyword {
	out := make([]Keyword, 0, len(scores))
	for w, s := range scores {
		out = append(out, Keyword{Word: w, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Word < out[j].Word
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ExtractKeywords ranks the keywords of text with the default stopwords.
func ExtractKeywords(text string, numKeywords int) []string {
	kws := NewExtractor(analysis.DefaultStopwords()).SetNumKeywords(numKeywords).Extract(text)
	words := make([]string, len(kws))
	for i, k := range kws {
		words[i] = k.Word
	}
	return words
}
