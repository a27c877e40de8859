// Package analysis provides unit tests for script detection, stopwords and
// frequency extraction.
package analysis

import (
	"math"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/feedny/backend/internal/models"
)

func frenchFallback() *StopwordSet {
	return BuildStopwords([]Language{French}, WithSources(FallbackSource{}))
}

// TestHasArabic verifies detection across the three Arabic blocks.
func TestHasArabic(t *testing.T) {
	tests := []struct {
		text string
		want bool
	}{
		{"", false},
		{"Bonjour le monde", false},
		{"Great course! دورة رائعة", true},
		{"ݐ", true},
		{"ࢠ", true},
		{"א", false}, // Hebrew
	}
	for _, tt := range tests {
		if got := HasArabic(tt.text); got != tt.want {
			t.Errorf("HasArabic(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

// TestDominantDirection verifies the letter majority rule.
func TestDominantDirection(t *testing.T) {
	tests := []struct {
		text string
		want Direction
	}{
		{"", Neutral},
		{"123 !?", Neutral},
		{"Great course", LeftToRight},
		{"دورة رائعة جدا", RightToLeft},
		{"ok دورة", RightToLeft},
	}
	for _, tt := range tests {
		if got := DominantDirection(tt.text); got != tt.want {
			t.Errorf("DominantDirection(%q) = %v, want %v", tt.text, got, tt.want)
		}
	}
}

// TestExtractFrequencies_french verifies the canonical French example.
func TestExtractFrequencies_french(t *testing.T) {
	got := ExtractFrequencies("Le chat est beau et le chat est noir", frenchFallback(), nil)

	want := FrequencyTable{"chat": 2, "beau": 1, "noir": 1}
	if len(got) != len(want) {
		t.Fatalf("ExtractFrequencies() = %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("freq[%q] = %v, want %v", k, got[k], v)
		}
	}
}

// TestExtractFrequencies_empty verifies blank input yields an empty table.
func TestExtractFrequencies_empty(t *testing.T) {
	for _, text := range []string{"", "   \n\t"} {
		got := ExtractFrequencies(text, nil, nil)
		if got == nil || len(got) != 0 {
			t.Errorf("ExtractFrequencies(%q) = %v, want empty table", text, got)
		}
	}
}

// TestExtractFrequencies_stopwordsOnly verifies an all-stopword text is empty.
func TestExtractFrequencies_stopwordsOnly(t *testing.T) {
	got := ExtractFrequencies("le la les et ou", frenchFallback(), nil)
	if len(got) != 0 {
		t.Errorf("expected empty table, got %v", got)
	}
}

// TestExtractFrequencies_normalization verifies case folding, apostrophes,
// single runes and numbers.
func TestExtractFrequencies_normalization(t *testing.T) {
	got := ExtractFrequencies("L’école, l'école 'Cours' x 2024 A", nil, nil)

	if got["l'école"] != 2 {
		t.Errorf("freq[l'école] = %v, want 2 (got %v)", got["l'école"], got)
	}
	if got["cours"] != 1 {
		t.Errorf("freq[cours] = %v, want 1", got["cours"])
	}
	for _, dropped := range []string{"x", "a", "2024"} {
		if _, ok := got[dropped]; ok {
			t.Errorf("token %q should be dropped", dropped)
		}
	}
}

// TestExtractFrequencies_arabic verifies Arabic tokens and stopwords.
func TestExtractFrequencies_arabic(t *testing.T) {
	stop := BuildStopwords([]Language{Arabic}, WithSources(FallbackSource{}))
	got := ExtractFrequencies("دورة رائعة في الجامعة، دورة مفيدة", stop, nil)

	if got["دورة"] != 2 {
		t.Errorf("freq[دورة] = %v, want 2 (got %v)", got["دورة"], got)
	}
	if _, ok := got["في"]; ok {
		t.Error("Arabic stopword survived")
	}
	if _, ok := got["الجامعة"]; !ok {
		t.Error("Arabic comma should not be part of the token")
	}
}

// TestExtractFrequencies_customPattern verifies a caller-supplied pattern.
func TestExtractFrequencies_customPattern(t *testing.T) {
	got := ExtractFrequencies("foo-bar foo-bar baz", nil, regexp.MustCompile(`[a-z-]+`))
	if got["foo-bar"] != 2 || got["baz"] != 1 {
		t.Errorf("unexpected table %v", got)
	}
}

// TestExtractFragments_sentimentWeight verifies weighting by sentiment.
func TestExtractFragments_sentimentWeight(t *testing.T) {
	frags := []models.Fragment{
		models.NewScoredFragment("cours", 10),
		models.NewFragment("cours"),
		models.NewFragment("   "),
	}

	plain := ExtractFragments(frags, nil, ExtractOptions{})
	if plain["cours"] != 2 {
		t.Errorf("unweighted freq = %v, want 2", plain["cours"])
	}

	weighted := ExtractFragments(frags, nil, ExtractOptions{WeightBySentiment: true})
	want := 10/5.5 + 1
	if math.Abs(weighted["cours"]-want) > 1e-9 {
		t.Errorf("weighted freq = %v, want %v", weighted["cours"], want)
	}
}

// TestFrequencyTable_Top verifies ordering and truncation.
func TestFrequencyTable_Top(t *testing.T) {
	table := FrequencyTable{"noir": 1, "chat": 2, "beau": 1}

	top := table.Top(2)
	if len(top) != 2 || top[0].Token != "chat" || top[1].Token != "beau" {
		t.Errorf("Top(2) = %+v", top)
	}
	if len(table.Top(0)) != 3 {
		t.Error("Top(0) should return all terms")
	}
	if table.Total() != 4 {
		t.Errorf("Total() = %v, want 4", table.Total())
	}
}

// TestBuildStopwords_directoryWins verifies the directory source takes precedence.
func TestBuildStopwords_directoryWins(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fr.txt"), []byte("# custom\nCours\n\nformateur\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	set := BuildStopwords([]Language{French}, WithSources(DirectorySource{Dir: dir}, FallbackSource{}))
	if !set.Contains("cours") || !set.Contains("FORMATEUR") {
		t.Error("directory words missing")
	}
	if set.Contains("le") {
		t.Error("fallback should not be consulted once the directory loads")
	}
	if set.Len() != 2 {
		t.Errorf("Len() = %d, want 2", set.Len())
	}
}

// TestBuildStopwords_fallbackOnFailure verifies a failing source falls through.
func TestBuildStopwords_fallbackOnFailure(t *testing.T) {
	set := BuildStopwords([]Language{French, English},
		WithStopwordDir(t.TempDir()), WithSources(FallbackSource{}))
	if !set.Contains("le") || !set.Contains("the") {
		t.Error("fallback lists missing")
	}
}

// TestBuildStopwords_languagesIndependent verifies an unknown language does
// not affect the others.
func TestBuildStopwords_languagesIndependent(t *testing.T) {
	set := BuildStopwords([]Language{"xx", Arabic}, WithSources(FallbackSource{}))
	if !set.Contains("في") {
		t.Error("Arabic list should load despite the unknown language")
	}
}

// TestBuildStopwords_extra verifies extra words are added.
func TestBuildStopwords_extra(t *testing.T) {
	set := BuildStopwords(nil, WithExtraStopwords("Feedny"))
	if !set.Contains("feedny") {
		t.Error("extra stopword missing")
	}
}

// TestLibrarySource verifies the library predicate for the sentinel words.
func TestLibrarySource(t *testing.T) {
	for lang, sentinel := range librarySentinels {
		set, err := LibrarySource{}.Load(lang)
		if err != nil {
			t.Logf("library source unavailable for %s: %v", lang, err)
			continue
		}
		if !set.Contains(sentinel) {
			t.Errorf("%s: sentinel %q not matched", lang, sentinel)
		}
	}

	if _, err := (LibrarySource{}).Load("xx"); err == nil {
		t.Error("expected an error for an unknown language")
	}
}

// TestDefaultStopwords verifies the cached set is shared.
func TestDefaultStopwords(t *testing.T) {
	a, b := DefaultStopwords(), DefaultStopwords()
	if a != b {
		t.Error("DefaultStopwords() should return the same set")
	}
	if !a.Contains("le") || !a.Contains("the") || !a.Contains("في") {
		t.Error("default set is missing a language")
	}
}

// TestParseLanguages verifies unknown codes are skipped.
func TestParseLanguages(t *testing.T) {
	got := ParseLanguages([]string{"FR", " en", "de", "ar"})
	if len(got) != 3 || got[0] != French || got[1] != English || got[2] != Arabic {
		t.Errorf("ParseLanguages() = %v", got)
	}
}

// TestStopwordSet_nil verifies a nil set contains nothing.
func TestStopwordSet_nil(t *testing.T) {
	var s *StopwordSet
	if s.Contains("le") || s.Len() != 0 {
		t.Error("nil set should be empty")
	}
}
