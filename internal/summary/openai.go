package summary

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"

	"github.com/feedny/backend/internal/config"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
)

// OpenAISummarizer calls an OpenAI-compatible chat completion endpoint,
// DeepSeek included.
type OpenAISummarizer struct {
	client      *openai.Client
	provider    string
	model       string
	maxTokens   int
	temperature float32
	maxRetries  uint64
	retryDelay  time.Duration
}

// NewOpenAISummarizer creates a client for cfg.BaseURL authenticated with
// cfg.APIKey.
func NewOpenAISummarizer(cfg config.SummaryConfig) *OpenAISummarizer {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	oc.HTTPClient = &http.Client{Timeout: timeout(cfg)}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &OpenAISummarizer{
		client:      openai.NewClientWithConfig(oc),
		provider:    cfg.Provider,
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: float32(cfg.Temperature),
		maxRetries:  uint64(retries),
		retryDelay:  500 * time.Millisecond,
	}
}

// SetRetryDelay sets the initial delay between attempts.
func (s *OpenAISummarizer) SetRetryDelay(d time.Duration) *OpenAISummarizer {
	if d > 0 {
		s.retryDelay = d
	}
	return s
}

// Summarize sends the prompt and returns the first choice. Server errors,
// rate limiting and transport errors are retried; other client errors are
// not.
func (s *OpenAISummarizer) Summarize(ctx context.Context, req Request) (string, error) {
	if err := validate(req); err != nil {
		return "", err
	}

	chatReq := openai.ChatCompletionRequest{
		Model: s.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(req)},
		},
		MaxTokens:   maxTokens(req, s.maxTokens),
		Temperature: s.temperature,
	}

	attempt := 0
	op := func() (string, error) {
		attempt++
		resp, err := s.client.CreateChatCompletion(ctx, chatReq)
		if err != nil {
			logging.Warn("summary request failed", map[string]interface{}{
				"provider": s.provider,
				"attempt":  attempt,
				"error":    err.Error(),
			})
			if ctx.Err() != nil || !retriable(err) {
				return "", backoff.Permanent(err)
			}
			return "", err
		}
		if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
			return "", backoff.Permanent(apperrors.New(apperrors.ErrAIFailed, "empty completion"))
		}
		return resp.Choices[0].Message.Content, nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.retryDelay
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, s.maxRetries), ctx)

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

// retriable reports whether a completion error may succeed on retry.
func retriable(err error) bool {
	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case stderrors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case stderrors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	default:
		return true
	}
	return status == http.StatusTooManyRequests || status >= 500 || status == 0
}
