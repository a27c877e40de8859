// Package summary produces the natural-language analysis of a set of
// feedback fragments, either through a text-generation provider or with an
// offline keyword summary.
package summary

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedny/backend/internal/config"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/models"
)

// Request is the input of one summary.
type Request struct {
	Fragments []models.Fragment
	Context   string
	// MaxTokens overrides the configured response budget when positive.
	MaxTokens int
}

// Summarizer turns feedback into an analysis text.
type Summarizer interface {
	Summarize(ctx context.Context, req Request) (string, error)
}

// Provider names accepted by New.
const (
	ProviderDeepSeek  = "deepseek"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMistral   = "mistral"
	ProviderOllama    = "ollama"
	ProviderOffline   = "offline"
)

// maxFeedbackRunes bounds the feedback block sent to a provider.
const maxFeedbackRunes = 12000

const systemPrompt = `Tu es un assistant pédagogique expert qui analyse les feedbacks des étudiants.

Ta tâche:
- Analyser les feedbacks fournis
- Identifier les thèmes principaux et les points clés
- Générer un résumé concis et informatif (maximum une page)
- Mettre en évidence les forces et les domaines d'amélioration
- Maintenir un ton constructif et professionnel

Format de réponse:
1. Résumé général (2-3 phrases)
2. Points positifs principaux
3. Points à améliorer
4. Recommandations pour l'enseignant

Écris en français.`

// SystemPrompt returns the instructions sent to every provider.
func SystemPrompt() string {
	return systemPrompt
}

// UserPrompt formats the context and the fragments, one "- text" item per
// fragment with its emotion score when known.
func UserPrompt(req Request) string {
	items := make([]string, 0, len(req.Fragments))
	for _, f := range req.Fragments {
		if f.IsBlank() {
			continue
		}
		item := "- " + strings.TrimSpace(f.Text)
		if s, ok := f.SentimentValue(); ok {
			item += fmt.Sprintf(" (émotion %d/10)", s)
		}
		items = append(items, item)
	}
	feedbacks := truncateRunes(strings.Join(items, "\n\n"), maxFeedbackRunes)

	return fmt.Sprintf("Contexte: %s\n\nFeedbacks des étudiants:\n%s\n\nGénère un résumé concis et informatif.",
		strings.TrimSpace(req.Context), feedbacks)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func validate(req Request) error {
	for _, f := range req.Fragments {
		if !f.IsBlank() {
			return nil
		}
	}
	return apperrors.New(apperrors.ErrInvalid, "no feedback to analyze")
}

// New builds the Summarizer for cfg.Provider. Hosted providers need an API
// key; without one New returns an AI_NOT_CONFIGURED error.
func New(cfg config.SummaryConfig) (Summarizer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	switch provider {
	case ProviderDeepSeek, ProviderOpenAI, ProviderAnthropic, ProviderMistral, ProviderOllama, ProviderOffline:
	default:
		return nil, apperrors.Newf(apperrors.ErrConfigInvalid, "unsupported summary provider %q", cfg.Provider)
	}
	needsKey := provider != ProviderOllama && provider != ProviderOffline
	if needsKey && cfg.APIKey == "" {
		return nil, apperrors.Newf(apperrors.ErrAINotConfigured, "%s is not configured", keyName(cfg))
	}

	logging.Debug("creating summarizer", map[string]interface{}{
		"provider": provider,
		"model":    cfg.Model,
	})

	switch provider {
	case ProviderDeepSeek, ProviderOpenAI:
		return NewOpenAISummarizer(cfg), nil
	case ProviderAnthropic, ProviderMistral, ProviderOllama:
		llm, err := newLangChainModel(provider, cfg)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrAINotConfigured, "create "+provider+" client", err)
		}
		return NewLangChainSummarizer(provider, llm, cfg), nil
	default:
		return NewOfflineSummarizer(nil), nil
	}
}

func keyName(cfg config.SummaryConfig) string {
	if cfg.APIKeyEnv != "" {
		return cfg.APIKeyEnv
	}
	return "the API key"
}

// failure wraps a provider error, mapping deadline expiry to AI_TIMEOUT.
func failure(provider string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
		return apperrors.Wrap(apperrors.ErrAITimeout, provider+" request timed out", err)
	}
	return apperrors.Wrap(apperrors.ErrAIFailed, provider+" request failed", err)
}

func timeout(cfg config.SummaryConfig) time.Duration {
	if cfg.TimeoutSecs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(cfg.TimeoutSecs) * time.Second
}

func maxTokens(req Request, configured int) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	return configured
}
