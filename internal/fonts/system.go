package fonts

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/feedny/backend/internal/logging"
)

// DefaultFamilies lists multilingual families in order of preference.
var DefaultFamilies = []string{
	"Tajawal",
	"Cairo",
	"NotoNaskhArabic",
	"NotoSansArabic",
	"DejaVuSans",
	"Amiri",
	"NotoSans",
}

// DefaultSearchDirs returns the platform font directories, most specific first.
func DefaultSearchDirs() []string {
	dirs := []string{
		"/usr/share/fonts",
		"/usr/local/share/fonts",
	}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs,
			filepath.Join(home, ".local", "share", "fonts"),
			filepath.Join(home, ".fonts"),
			filepath.Join(home, "Library", "Fonts"),
		)
	}
	dirs = append(dirs,
		"/Library/Fonts",
		"/System/Library/Fonts",
		`C:\Windows\Fonts`,
	)
	return dirs
}

// weightWords mark non-regular styles in font file names.
var weightWords = []string{
	"bold", "black", "heavy", "light", "thin", "medium", "semibold",
	"extrabold", "extralight", "italic", "oblique", "condensed", "mono",
}

// SystemStrategy searches installed fonts. The best file is chosen by family
// priority first, then by how regular its style is, never by directory order.
type SystemStrategy struct {
	Dirs     []string
	Families []string
}

func (s SystemStrategy) Name() string { return "system" }

func (s SystemStrategy) Find(ctx context.Context) (string, bool) {
	files := s.collect(ctx)
	if len(files) == 0 {
		return "", false
	}

	for _, family := range s.Families {
		key := normalizeName(family)
		var candidates []string
		for _, f := range files {
			if strings.HasPrefix(normalizeName(strings.TrimSuffix(filepath.Base(f), filepath.Ext(f))), key) {
				candidates = append(candidates, f)
			}
		}
		sort.SliceStable(candidates, func(i, j int) bool {
			si, sj := styleRank(candidates[i], key), styleRank(candidates[j], key)
			if si != sj {
				return si < sj
			}
			return candidates[i] < candidates[j]
		})
		for _, c := range candidates {
			if valid(c) {
				return c, true
			}
			logging.Debug("skipping unreadable font", map[string]interface{}{"path": c})
		}
	}
	return "", false
}

// collect lists the .ttf files below every configured directory.
func (s SystemStrategy) collect(ctx context.Context) []string {
	var files []string
	for _, dir := range s.Dirs {
		if ctx.Err() != nil {
			break
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			continue
		}
		err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if d != nil && d.IsDir() && path != dir {
					return fs.SkipDir
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ".ttf") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			logging.Debug("font directory walk stopped", map[string]interface{}{
				"dir":   dir,
				"error": err.Error(),
			})
		}
	}
	return files
}

// styleRank is 0 for "<Family>-Regular" or a bare family name and grows with
// every weight or style word in the name.
func styleRank(path, familyKey string) int {
	name := normalizeName(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
	rest := strings.TrimPrefix(name, familyKey)
	if rest == "" || rest == "regular" {
		return 0
	}
	rank := 1
	for _, w := range weightWords {
		if strings.Contains(rest, w) {
			rank++
		}
	}
	return rank
}

func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', ' ', '.':
			return -1
		}
		return r
	}, strings.ToLower(s))
}
