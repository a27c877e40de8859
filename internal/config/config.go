// Package config loads the YAML configuration of the analysis pipeline.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/feedny/backend/internal/errors"
)

// WordcloudConfig configures the frequency-weighted rasterizer.
type WordcloudConfig struct {
	Width            int     `yaml:"width"`
	Height           int     `yaml:"height"`
	MaxWords         int     `yaml:"max_words"`
	PreferHorizontal float64 `yaml:"prefer_horizontal"`
	Palette          string  `yaml:"palette"`
	Seed             int64   `yaml:"seed"`
	RelativeScaling  float64 `yaml:"relative_scaling"`
	MinFontSize      float64 `yaml:"min_font_size"`
	MaxFontSize      float64 `yaml:"max_font_size"`
	Background       string  `yaml:"background"`
}

// RenderConfig sizes the render worker pool.
type RenderConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// FontsConfig drives the font resolver.
type FontsConfig struct {
	SearchDirs          []string `yaml:"search_dirs"`
	Families            []string `yaml:"families"`
	DownloadURL         string   `yaml:"download_url"`
	CacheDir            string   `yaml:"cache_dir"`
	DisableDownload     bool     `yaml:"disable_download"`
	DownloadTimeoutSecs int      `yaml:"download_timeout_secs"`
}

// StopwordsConfig selects the stopword languages and an optional list directory.
type StopwordsConfig struct {
	Languages []string `yaml:"languages"`
	Dir       string   `yaml:"dir"`
}

// DocumentConfig configures the PDF compositor.
type DocumentConfig struct {
	Title               string   `yaml:"title"`
	HeadingKeywords     []string `yaml:"heading_keywords"`
	ImageHeightFraction float64  `yaml:"image_height_fraction"`
}

// SummaryConfig selects and configures the text-generation provider.
type SummaryConfig struct {
	Provider    string  `yaml:"provider"` // deepseek, openai, anthropic, ollama, mistral, offline
	BaseURL     string  `yaml:"base_url"`
	APIKeyEnv   string  `yaml:"api_key_env"`
	APIKey      string  `yaml:"-"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	TimeoutSecs int     `yaml:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries"`
}

// Config is the root configuration structure.
type Config struct {
	LogLevel  string          `yaml:"log_level"`
	Wordcloud WordcloudConfig `yaml:"wordcloud"`
	Render    RenderConfig    `yaml:"render"`
	Fonts     FontsConfig     `yaml:"fonts"`
	Stopwords StopwordsConfig `yaml:"stopwords"`
	Document  DocumentConfig  `yaml:"document"`
	Summary   SummaryConfig   `yaml:"summary"`
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := presets()
	applyDefaults(cfg)
	return cfg
}

// Load reads a config from path. A missing file yields the defaults.
// Environment overrides are applied after the file.
func Load(path string) (*Config, error) {
	cfg := presets()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "parse "+path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, apperrors.Wrap(apperrors.ErrConfigInvalid, "read "+path, err)
	}

	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	w := c.Wordcloud
	switch {
	case w.Width <= 0 || w.Height <= 0:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "wordcloud size %dx%d must be positive", w.Width, w.Height)
	case w.MaxWords <= 0:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "wordcloud.max_words %d must be positive", w.MaxWords)
	case w.PreferHorizontal < 0 || w.PreferHorizontal > 1:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "wordcloud.prefer_horizontal %v outside [0, 1]", w.PreferHorizontal)
	case w.RelativeScaling < 0 || w.RelativeScaling > 1:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "wordcloud.relative_scaling %v outside [0, 1]", w.RelativeScaling)
	case w.MaxFontSize != 0 && w.MaxFontSize < w.MinFontSize:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "wordcloud.max_font_size %v below min_font_size %v", w.MaxFontSize, w.MinFontSize)
	}
	if f := c.Document.ImageHeightFraction; f <= 0 || f > 1 {
		return apperrors.Newf(apperrors.ErrConfigInvalid, "document.image_height_fraction %v outside (0, 1]", f)
	}
	if c.Render.Workers <= 0 || c.Render.QueueSize <= 0 {
		return apperrors.New(apperrors.ErrConfigInvalid, "render.workers and render.queue_size must be positive")
	}
	for _, lang := range c.Stopwords.Languages {
		switch lang {
		case "fr", "en", "ar":
		default:
			return apperrors.Newf(apperrors.ErrConfigInvalid, "unsupported stopword language %q", lang)
		}
	}
	switch c.Summary.Provider {
	case "deepseek", "openai", "anthropic", "mistral", "ollama", "offline":
	default:
		return apperrors.Newf(apperrors.ErrConfigInvalid, "unsupported summary provider %q", c.Summary.Provider)
	}
	return nil
}

// presets holds the defaults for which zero is a valid setting. The file is
// decoded on top of them so an explicit 0 is kept.
func presets() *Config {
	return &Config{
		Wordcloud: WordcloudConfig{
			PreferHorizontal: 0.9,
			Seed:             42,
			RelativeScaling:  0.5,
		},
		Summary: SummaryConfig{
			Temperature: 0.7,
			MaxRetries:  2,
		},
	}
}

func applyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	w := &cfg.Wordcloud
	if w.Width == 0 {
		w.Width = 800
	}
	if w.Height == 0 {
		w.Height = 400
	}
	if w.MaxWords == 0 {
		w.MaxWords = 100
	}
	if w.Palette == "" {
		w.Palette = "tab20"
	}
	if w.MinFontSize == 0 {
		w.MinFontSize = 10
	}
	if w.Background == "" {
		w.Background = "#ffffff"
	}

	if cfg.Render.Workers == 0 {
		cfg.Render.Workers = 2
	}
	if cfg.Render.QueueSize == 0 {
		cfg.Render.QueueSize = 16
	}

	if cfg.Fonts.DownloadTimeoutSecs == 0 {
		cfg.Fonts.DownloadTimeoutSecs = 20
	}

	if len(cfg.Stopwords.Languages) == 0 {
		cfg.Stopwords.Languages = []string{"fr", "en", "ar"}
	}

	d := &cfg.Document
	if d.Title == "" {
		d.Title = "Feedny - Analyse des Feedbacks"
	}
	if len(d.HeadingKeywords) == 0 {
		d.HeadingKeywords = []string{"résumé", "points positifs", "points à améliorer", "recommandations"}
	}
	if d.ImageHeightFraction == 0 {
		d.ImageHeightFraction = 0.45
	}

	s := &cfg.Summary
	if s.Provider == "" {
		s.Provider = "deepseek"
	}
	s.Provider = strings.ToLower(s.Provider)
	switch s.Provider {
	case "deepseek":
		if s.BaseURL == "" {
			s.BaseURL = "https://api.deepseek.com"
		}
		if s.Model == "" {
			s.Model = "deepseek-chat"
		}
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "DEEPSEEK_API_KEY"
		}
	case "openai":
		if s.BaseURL == "" {
			s.BaseURL = "https://api.openai.com/v1"
		}
		if s.Model == "" {
			s.Model = "gpt-4o-mini"
		}
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "anthropic":
		if s.Model == "" {
			s.Model = "claude-3-5-haiku-latest"
		}
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	case "mistral":
		if s.Model == "" {
			s.Model = "mistral-small-latest"
		}
		if s.APIKeyEnv == "" {
			s.APIKeyEnv = "MISTRAL_API_KEY"
		}
	case "ollama":
		if s.Model == "" {
			s.Model = "llama3.2"
		}
		if s.BaseURL == "" {
			s.BaseURL = "http://localhost:11434"
		}
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = 1000
	}
	if s.TimeoutSecs == 0 {
		s.TimeoutSecs = 30
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("FEEDNY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FEEDNY_FONT_CACHE_DIR"); v != "" {
		cfg.Fonts.CacheDir = v
	}
	if v := os.Getenv("FEEDNY_STOPWORDS_DIR"); v != "" {
		cfg.Stopwords.Dir = v
	}
	if cfg.Summary.Provider == "deepseek" {
		if v := os.Getenv("DEEPSEEK_BASE_URL"); v != "" {
			cfg.Summary.BaseURL = v
		}
	}
	if cfg.Summary.APIKeyEnv != "" {
		cfg.Summary.APIKey = os.Getenv(cfg.Summary.APIKeyEnv)
	}
}
