package analysis

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bbalet/stopwords"

	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
)

// Language is an ISO 639-1 code with stopword support.
type Language string

const (
	French  Language = "fr"
	English Language = "en"
	Arabic  Language = "ar"
)

// DefaultLanguages are the languages of the feedback corpus.
var DefaultLanguages = []Language{French, English, Arabic}

// ParseLanguages converts config codes, skipping unknown ones.
func ParseLanguages(codes []string) []Language {
	out := make([]Language, 0, len(codes))
	for _, c := range codes {
		switch l := Language(strings.ToLower(strings.TrimSpace(c))); l {
		case French, English, Arabic:
			out = append(out, l)
		}
	}
	return out
}

// StopwordSet is an immutable lowercase stopword membership test.
// It combines explicit word lists with predicate matchers.
type StopwordSet struct {
	words    map[string]struct{}
	matchers []func(string) bool
}

// NewStopwordSet creates a set from explicit words.
func NewStopwordSet(words ...string) *StopwordSet {
	s := &StopwordSet{words: make(map[string]struct{}, len(words))}
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			s.words[w] = struct{}{}
		}
	}
	return s
}

// Contains reports whether word is a stopword. A nil set contains nothing.
func (s *StopwordSet) Contains(word string) bool {
	if s == nil {
		return false
	}
	word = strings.ToLower(word)
	if _, ok := s.words[word]; ok {
		return true
	}
	for _, m := range s.matchers {
		if m(word) {
			return true
		}
	}
	return false
}

// Len returns the number of explicit words. Predicate matchers are not counted.
func (s *StopwordSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.words)
}

func (s *StopwordSet) merge(other *StopwordSet) {
	for w := range other.words {
		s.words[w] = struct{}{}
	}
	s.matchers = append(s.matchers, other.matchers...)
}

// StopwordSource loads the stopwords of one language.
type StopwordSource interface {
	Name() string
	Load(lang Language) (*StopwordSet, error)
}

// DirectorySource reads <Dir>/<lang>.txt, one word per line. Lines starting
// with # are comments.
type DirectorySource struct {
	Dir string
}

func (d DirectorySource) Name() string { return "directory" }

func (d DirectorySource) Load(lang Language) (*StopwordSet, error) {
	if d.Dir == "" {
		return nil, apperrors.New(apperrors.ErrStopwordsUnavailable, "no stopword directory configured")
	}
	path := filepath.Join(d.Dir, string(lang)+".txt")
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStopwordsUnavailable, "open "+path, err)
	}
	defer f.Close()

	var words []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrStopwordsUnavailable, "read "+path, err)
	}
	if len(words) == 0 {
		return nil, apperrors.Newf(apperrors.ErrStopwordsUnavailable, "%s is empty", path)
	}
	return NewStopwordSet(words...), nil
}

// librarySentinels are words each language's canonical list must contain.
var librarySentinels = map[Language]string{
	French:  "le",
	English: "the",
	Arabic:  "في",
}

// LibrarySource exposes the bbalet/stopwords lists as a membership predicate.
// The library does not export its lists, so a word is a stopword when
// cleaning it leaves nothing behind.
type LibrarySource struct{}

func (LibrarySource) Name() string { return "library" }

func (LibrarySource) Load(lang Language) (set *StopwordSet, err error) {
	defer func() {
		if r := recover(); r != nil {
			set = nil
			err = apperrors.Newf(apperrors.ErrStopwordsUnavailable, "stopword library panicked: %v", r)
		}
	}()

	code := string(lang)
	match := func(word string) bool {
		return strings.TrimSpace(stopwords.CleanString(word, code, false)) == ""
	}

	sentinel, ok := librarySentinels[lang]
	if !ok || !match(sentinel) {
		return nil, apperrors.Newf(apperrors.ErrStopwordsUnavailable, "stopword library has no %q list", code)
	}
	return &StopwordSet{words: map[string]struct{}{}, matchers: []func(string) bool{match}}, nil
}

// FallbackSource serves the built-in lists.
type FallbackSource struct{}

func (FallbackSource) Name() string { return "fallback" }

func (FallbackSource) Load(lang Language) (*StopwordSet, error) {
	words, ok := fallbackStopwords[lang]
	if !ok {
		return nil, apperrors.Newf(apperrors.ErrStopwordsUnavailable, "no built-in list for %q", lang)
	}
	return NewStopwordSet(words...), nil
}

type stopwordOptions struct {
	sources []StopwordSource
	extra   []string
}

// StopwordOption configures BuildStopwords.
type StopwordOption func(*stopwordOptions)

// WithStopwordDir prepends a DirectorySource reading from dir.
func WithStopwordDir(dir string) StopwordOption {
	return func(o *stopwordOptions) {
		if dir != "" {
			o.sources = append([]StopwordSource{DirectorySource{Dir: dir}}, o.sources...)
		}
	}
}

// WithSources replaces the source chain.
func WithSources(sources ...StopwordSource) StopwordOption {
	return func(o *stopwordOptions) {
		o.sources = sources
	}
}

// WithExtraStopwords adds words to every built set.
func WithExtraStopwords(words ...string) StopwordOption {
	return func(o *stopwordOptions) {
		o.extra = append(o.extra, words...)
	}
}

// BuildStopwords unions the stopwords of langs. Each language walks the
// source chain independently; the first source that loads wins.
func BuildStopwords(langs []Language, opts ...StopwordOption) *StopwordSet {
	o := &stopwordOptions{sources: []StopwordSource{LibrarySource{}, FallbackSource{}}}
	for _, opt := range opts {
		opt(o)
	}

	set := NewStopwordSet(o.extra...)
	for _, lang := range langs {
		loaded := false
		for _, src := range o.sources {
			s, err := src.Load(lang)
			if err != nil {
				logging.Warn("stopword source unavailable", map[string]interface{}{
					"code":     string(apperrors.ErrDegradedRendering),
					"language": string(lang),
					"source":   src.Name(),
					"error":    err.Error(),
				})
				continue
			}
			set.merge(s)
			loaded = true
			logging.Debug("stopwords loaded", map[string]interface{}{
				"language": string(lang),
				"source":   src.Name(),
			})
			break
		}
		if !loaded {
			logging.Warn("no stopwords for language", map[string]interface{}{
				"code":     string(apperrors.ErrStopwordsUnavailable),
				"language": string(lang),
			})
		}
	}
	return set
}

var (
	defaultStopwords     *StopwordSet
	defaultStopwordsOnce sync.Once
)

// DefaultStopwords returns the process-wide French, English and Arabic set.
func DefaultStopwords() *StopwordSet {
	defaultStopwordsOnce.Do(func() {
		defaultStopwords = BuildStopwords(DefaultLanguages)
	})
	return defaultStopwords
}

var fallbackStopwords = map[Language][]string{
	French: {
		"le", "la", "les", "un", "une", "des", "du", "de", "au", "aux",
		"il", "elle", "on", "nous", "vous", "ils", "elles", "je", "tu",
		"et", "ou", "or", "mais", "où", "dont", "que", "qui", "qu'",
		"l'", "d'", "n'", "s'", "j'", "c'", "t'", "m'",
		"en", "pour", "avec", "sur", "dans", "par", "chez", "sans",
		"être", "avoir", "ai", "as", "a", "avons", "avez", "ont",
		"suis", "es", "est", "sommes", "êtes", "sont", "été",
		"faire", "dire", "aller", "voir", "savoir", "pouvoir", "vouloir",
		"ce", "cet", "cette", "ces", "cela", "ça",
		"son", "sa", "ses", "mon", "ma", "mes", "notre", "nos",
		"votre", "vos", "leur", "leurs",
		"très", "plus", "moins", "bien", "mal", "non", "oui", "si",
		"tout", "tous", "toute", "toutes", "aucun", "aucune",
		"autre", "autres", "même", "mêmes", "tel", "tels", "telle", "telles",
		"chaque", "certains", "certaines", "quelque", "quelques",
	},
	English: {
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "will", "with", "this",
		"but", "they", "have", "had", "what", "when", "where", "who",
		"which", "why", "how", "all", "each", "every", "both", "few",
		"more", "most", "other", "some", "such", "no", "nor", "not",
		"only", "own", "same", "so", "than", "too", "very", "just",
		"can", "about", "into", "through", "during", "before", "after",
		"above", "below", "between", "under", "again", "further", "then",
		"once", "here", "there", "any", "get", "got", "getting", "gotten",
		"i", "me", "my", "we", "our", "you", "your", "she", "her", "his",
		"him", "them", "their", "were", "been", "do", "does", "did",
		"would", "could", "should", "if", "or", "because", "while",
	},
	Arabic: {
		"في", "من", "على", "إلى", "الى", "عن", "مع", "هذا", "هذه", "ذلك",
		"تلك", "التي", "الذي", "الذين", "هو", "هي", "هم", "هن", "أن", "إن",
		"ان", "كان", "كانت", "يكون", "لا", "ما", "لم", "لن", "قد", "ثم",
		"أو", "او", "و", "يا", "كل", "بعد", "قبل", "عند", "حتى", "بين",
		"غير", "أي", "نحن", "أنا", "انا", "أنت", "انت", "هناك", "هنا",
		"أيضا", "ايضا", "جدا", "لقد", "كما", "لكن", "بل", "إذا", "اذا",
		"منذ", "عليه", "فيه", "به", "له", "لها", "بها", "فيها",
	},
}
