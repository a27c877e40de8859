package analysis

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/feedny/backend/internal/models"
)

// DefaultTokenPattern matches runs of letters, combining marks, digits,
// underscores and apostrophes. Arabic letters, harakat and tatweel fall in
// the letter and mark classes.
var DefaultTokenPattern = regexp.MustCompile(`[\p{L}\p{M}\p{N}_'\x{2019}]+`)

// FrequencyTable maps a token to its non-negative frequency.
type FrequencyTable map[string]float64

// Term is one entry of a FrequencyTable.
type Term struct {
	Token     string
	Frequency float64
}

// Total returns the sum of all frequencies.
func (t FrequencyTable) Total() float64 {
	var sum float64
	for _, f := range t {
		sum += f
	}
	return sum
}

// Top returns up to n terms by descending frequency, ties broken by token.
// n <= 0 returns every term.
func (t FrequencyTable) Top(n int) []Term {
	terms := make([]Term, 0, len(t))
	for tok, f := range t {
		terms = append(terms, Term{Token: tok, Frequency: f})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Frequency != terms[j].Frequency {
			return terms[i].Frequency > terms[j].Frequency
		}
		return terms[i].Token < terms[j].Token
	})
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

// ExtractFrequencies tokenizes text and counts the tokens that survive
// stopword filtering. A nil pattern means DefaultTokenPattern.
func ExtractFrequencies(text string, stop *StopwordSet, pattern *regexp.Regexp) FrequencyTable {
	table := FrequencyTable{}
	addTokens(table, text, stop, pattern, 1)
	return table
}

// ExtractOptions configures ExtractFragments.
type ExtractOptions struct {
	Pattern *regexp.Regexp
	// WeightBySentiment scales each fragment's counts by sentiment/5.5 so
	// an average score counts about once. Unscored fragments count 1.
	WeightBySentiment bool
}

// ExtractFragments aggregates the frequencies of every fragment.
func ExtractFragments(frags []models.Fragment, stop *StopwordSet, opts ExtractOptions) FrequencyTable {
	table := FrequencyTable{}
	for _, f := range frags {
		if f.IsBlank() {
			continue
		}
		weight := 1.0
		if s, ok := f.SentimentValue(); ok && opts.WeightBySentiment {
			weight = float64(s) / 5.5
		}
		addTokens(table, f.Text, stop, opts.Pattern, weight)
	}
	return table
}

// Tokenize returns the normalized tokens of text in order, stopwords removed.
func Tokenize(text string, stop *StopwordSet, pattern *regexp.Regexp) []string {
	if pattern == nil {
		pattern = DefaultTokenPattern
	}
	var tokens []string
	for _, raw := range pattern.FindAllString(text, -1) {
		if tok, ok := normalizeToken(raw, stop); ok {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

func addTokens(table FrequencyTable, text string, stop *StopwordSet, pattern *regexp.Regexp, weight float64) {
	if strings.TrimSpace(text) == "" || weight <= 0 {
		return
	}
	for _, tok := range Tokenize(text, stop, pattern) {
		table[tok] += weight
	}
}

func normalizeToken(raw string, stop *StopwordSet) (string, bool) {
	tok := strings.ToLower(strings.ReplaceAll(raw, "’", "'"))
	tok = strings.Trim(tok, "'")
	if utf8.RuneCountInString(tok) < 2 || isNumeric(tok) {
		return "", false
	}
	if stop.Contains(tok) {
		return "", false
	}
	return tok, true
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsNumber(r) {
			return false
		}
	}
	return true
}
