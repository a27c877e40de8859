// Package models provides the values exchanged by the analysis pipeline.
package models

import (
	"fmt"
	"strings"
)

// Sentiment bounds accepted on a Fragment.
const (
	MinSentiment = 1
	MaxSentiment = 10
)

// Fragment is one respondent's feedback text as handed to an analysis run.
// Fragments are read-only inputs; the pipeline never mutates them.
type Fragment struct {
	Text      string `json:"text"`
	Sentiment *int   `json:"sentiment,omitempty"` // 1-10, optional
}

// NewFragment creates a Fragment without sentiment.
func NewFragment(text string) Fragment {
	return Fragment{Text: text}
}

// NewScoredFragment creates a Fragment tagged with a sentiment score.
func NewScoredFragment(text string, sentiment int) Fragment {
	s := sentiment
	return Fragment{Text: text, Sentiment: &s}
}

// SentimentValue returns the sentiment and whether one was supplied.
func (f Fragment) SentimentValue() (int, bool) {
	if f.Sentiment == nil {
		return 0, false
	}
	return *f.Sentiment, true
}

// Validate checks the sentiment range.
func (f Fragment) Validate() error {
	if s, ok := f.SentimentValue(); ok && (s < MinSentiment || s > MaxSentiment) {
		return fmt.Errorf("sentiment %d out of range [%d, %d]", s, MinSentiment, MaxSentiment)
	}
	return nil
}

// IsBlank reports whether the fragment carries no text.
func (f Fragment) IsBlank() bool {
	return strings.TrimSpace(f.Text) == ""
}

// JoinFragments aggregates fragment texts into one blob, space separated.
func JoinFragments(frags []Fragment) string {
	return strings.Join(Texts(frags), " ")
}

// Texts returns the non-blank texts of frags in order.
func Texts(frags []Fragment) []string {
	out := make([]string, 0, len(frags))
	for _, f := range frags {
		if f.IsBlank() {
			continue
		}
		out = append(out, strings.TrimSpace(f.Text))
	}
	return out
}
