package summary

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/anthropic"
	"github.com/tmc/langchaingo/llms/mistral"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/feedny/backend/internal/config"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
)

// LangChainSummarizer summarizes through any langchaingo model.
type LangChainSummarizer struct {
	llm         llms.Model
	provider    string
	model       string
	maxTokens   int
	temperature float64
	maxRetries  uint64
	retryDelay  time.Duration
}

// NewLangChainSummarizer wraps llm with the generation settings of cfg.
func NewLangChainSummarizer(provider string, llm llms.Model, cfg config.SummaryConfig) *LangChainSummarizer {
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &LangChainSummarizer{
		llm:         llm,
		provider:    provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		maxRetries:  uint64(retries),
		retryDelay:  500 * time.Millisecond,
	}
}

// SetRetryDelay sets the delay between attempts.
func (s *LangChainSummarizer) SetRetryDelay(d time.Duration) *LangChainSummarizer {
	if d > 0 {
		s.retryDelay = d
	}
	return s
}

// Summarize sends the system and user prompts as a two-message chat.
func (s *LangChainSummarizer) Summarize(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, UserPrompt(req)),
	}
	var opts []llms.CallOption
	if n := maxTokens(req, s.maxTokens); n > 0 {
		opts = append(opts, llms.WithMaxTokens(n))
	}
	if s.temperature > 0 {
		opts = append(opts, llms.WithTemperature(s.temperature))
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		resp, err := s.llm.GenerateContent(ctx, messages, opts...)
		if err != nil {
			logging.Warn("summary request failed", map[string]interface{}{
				"provider": s.provider,
				"attempt":  attempt,
				"error":    err.Error(),
			})
			if ctx.Err() != nil {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		if resp == nil || len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Content) == "" {
			return "", backoff.Permanent(apperrors.New(apperrors.ErrAIFailed, "empty completion"))
		}
		return resp.Choices[0].Content, nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), s.maxRetries), ctx)
	start := time.Now()
	text, err := backoff.RetryWithData(op, policy)
	if err != nil {
		return "", failure(s.provider, err)
	}
	logging.Info("summary generated", map[string]interface{}{
		"provider":    s.provider,
		"model":       s.model,
		"attempts":    attempt,
		"chars":       len(text),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return strings.TrimSpace(text), nil
}

func newLangChainModel(provider string, cfg config.SummaryConfig) (llms.Model, error) {
	switch provider {
	case ProviderAnthropic:
		opts := []anthropic.Option{
			anthropic.WithModel(cfg.Model),
			anthropic.WithToken(cfg.APIKey),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
		}
		return anthropic.New(opts...)
	case ProviderMistral:
		return mistral.New(
			mistral.WithModel(cfg.Model),
			mistral.WithAPIKey(cfg.APIKey),
		)
	case ProviderOllama:
		return ollama.New(
			ollama.WithModel(cfg.Model),
			ollama.WithServerURL(cfg.BaseURL),
		)
	default:
		return nil, fmt.Errorf("no langchain model for provider %q", provider)
	}
}
