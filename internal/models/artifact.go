package models

import (
	"encoding/base64"
	"sort"
	"time"
)

// RenderedArtifact is the output of one wordcloud rasterization.
// A nil Image means "nothing to render"; callers check Empty().
type RenderedArtifact struct {
	Image       []byte             `json:"-"`
	Width       int                `json:"width,omitempty"`
	Height      int                `json:"height,omitempty"`
	Frequencies map[string]float64 `json:"frequencies"`
	Weights     map[string]float64 `json:"weights"`
}

// EmptyArtifact returns the explicit "no artifact" value.
func EmptyArtifact() *RenderedArtifact {
	return &RenderedArtifact{
		Frequencies: map[string]float64{},
		Weights:     map[string]float64{},
	}
}

// Empty reports whether the artifact carries no image.
func (a *RenderedArtifact) Empty() bool {
	return a == nil || len(a.Image) == 0
}

// Base64 returns the image as standard base64, or "" when empty.
func (a *RenderedArtifact) Base64() string {
	if a.Empty() {
		return ""
	}
	return base64.StdEncoding.EncodeToString(a.Image)
}

// WordWeight pairs a term with its normalized weight.
type WordWeight struct {
	Word   string  `json:"word"`
	Weight float64 `json:"weight"`
}

// TopWords returns up to n terms by descending weight, ties broken by term.
func (a *RenderedArtifact) TopWords(n int) []WordWeight {
	if a == nil {
		return nil
	}
	out := make([]WordWeight, 0, len(a.Weights))
	for w, v := range a.Weights {
		out = append(out, WordWeight{Word: w, Weight: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Word < out[j].Word
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// CompositionRequest carries everything the document compositor lays out.
type CompositionRequest struct {
	Title        string
	Context      string
	AnalysisText string
	Image        []byte // PNG, nil for the placeholder
	GeneratedAt  time.Time
}

// Summary sources recorded on an AnalysisResult.
const (
	SummarySourceLLM     = "llm"
	SummarySourceOffline = "offline"
)

// AnalysisResult is the joined outcome of one analysis run.
type AnalysisResult struct {
	RunID         string            `json:"run_id"`
	Artifact      *RenderedArtifact `json:"wordcloud"`
	Summary       string            `json:"summary"`
	SummarySource string            `json:"summary_source"`
	FragmentCount int               `json:"fragment_count"`
	CreatedAt     int64             `json:"created_at"`
}

// CreatedAtTime returns the CreatedAt as time.Time.
func (r *AnalysisResult) CreatedAtTime() time.Time {
	return time.Unix(r.CreatedAt, 0)
}
