// Package services orchestrates an analysis run: the wordcloud render and
// the summary request run concurrently and are joined into one result.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/feedny/backend/internal/document"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/models"
	"github.com/feedny/backend/internal/summary"
	"github.com/feedny/backend/internal/wordcloud"
)

// AnalysisConfig holds configuration for the analysis service.
type AnalysisConfig struct {
	// EnableAI sends fragments to the configured summarizer. When false, or
	// when the summarizer fails, the offline summary is used.
	EnableAI bool

	// SentimentWeighting scales token counts by fragment sentiment.
	SentimentWeighting bool

	// BatchConcurrency bounds BatchAnalyze.
	BatchConcurrency int
}

// DefaultAnalysisConfig returns sensible defaults.
func DefaultAnalysisConfig() *AnalysisConfig {
	return &AnalysisConfig{
		EnableAI:         true,
		BatchConcurrency: 2,
	}
}

// Deps are the pipeline stages the service joins. Generator and
// Compositor are required; a nil Queue renders on the calling goroutine
// and a nil Offline uses the default offline summarizer.
type Deps struct {
	Generator  *wordcloud.Generator
	Queue      *wordcloud.RenderQueue
	Summarizer summary.Summarizer
	Offline    summary.Summarizer
	Compositor *document.Compositor
	Config     *AnalysisConfig
}

// AnalyzeRequest is the input of one run.
type AnalyzeRequest struct {
	Fragments []models.Fragment
	Context   string
	MaxTokens int
}

// ExportRequest is the input of a PDF export. AnalysisText and Image take
// precedence over Result.
type ExportRequest struct {
	Title        string
	Context      string
	AnalysisText string
	Image        []byte
	Result       *models.AnalysisResult
	GeneratedAt  time.Time
}

// AnalysisService coordinates rendering, summarizing and export.
type AnalysisService struct {
	gen        *wordcloud.Generator
	queue      *wordcloud.RenderQueue
	summarizer summary.Summarizer
	offline    summary.Summarizer
	compositor *document.Compositor
	config     *AnalysisConfig

	onAnalysisStarted   func(runID string)
	onAnalysisCompleted func(runID string, result *models.AnalysisResult)
	onAnalysisFailed    func(runID string, err error)

	mu sync.RWMutex
}

// NewAnalysisService creates an AnalysisService from deps.
func NewAnalysisService(deps Deps) *AnalysisService {
	cfg := DefaultAnalysisConfig()
	if deps.Config != nil {
		c := *deps.Config
		cfg = &c
	}
	gen := deps.Generator
	if gen == nil {
		gen = wordcloud.NewGenerator(nil, nil, nil, wordcloud.DefaultOptions())
	}
	gen = gen.WithSentimentWeighting(cfg.SentimentWeighting)

	offline := deps.Offline
	if offline == nil {
		offline = summary.NewOfflineSummarizer(nil)
	}
	comp := deps.Compositor
	if comp == nil {
		comp = document.NewCompositor("", nil)
	}

	return &AnalysisService{
		gen:        gen,
		queue:      deps.Queue,
		summarizer: deps.Summarizer,
		offline:    offline,
		compositor: comp,
		config:     cfg,
	}
}

// SetSummarizer replaces the text-generation client and enables AI.
// A nil summarizer disables AI.
func (s *AnalysisService) SetSummarizer(sum summary.Summarizer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summarizer = sum
	s.config.EnableAI = sum != nil
}

// DisableAI makes every run use the offline summary.
func (s *AnalysisService) DisableAI() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config.EnableAI = false
	logging.Info("AI summaries disabled")
}

// IsAIEnabled reports whether runs call the summarizer.
func (s *AnalysisService) IsAIEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config.EnableAI && s.summarizer != nil
}

// SetEventCallbacks sets callbacks for run events.
func (s *AnalysisService) SetEventCallbacks(
	started func(runID string),
	completed func(runID string, result *models.AnalysisResult),
	failed func(runID string, err error),
) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onAnalysisStarted = started
	s.onAnalysisCompleted = completed
	s.onAnalysisFailed = failed
}

// Analyze renders the wordcloud and produces the summary of req. The two
// steps run concurrently. Neither fails the run: an unrenderable table
// gives the empty artifact and a failing summarizer the offline summary.
func (s *AnalysisService) Analyze(ctx context.Context, req AnalyzeRequest) (*models.AnalysisResult, error) {
	runID := uuid.NewString()
	s.mu.RLock()
	started, completed, failed := s.onAnalysisStarted, s.onAnalysisCompleted, s.onAnalysisFailed
	s.mu.RUnlock()

	frags, err := usable(req.Fragments)
	if err != nil {
		if failed != nil {
			failed(runID, err)
		}
		return nil, err
	}
	if started != nil {
		started(runID)
	}

	start := time.Now()
	logging.Info("analysis started", map[string]interface{}{
		"run_id":    runID,
		"fragments": len(frags),
	})

	var (
		art    *models.RenderedArtifact
		text   string
		source string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		art = s.render(gctx, runID, frags)
		return nil
	})
	g.Go(func() error {
		text, source = s.summarize(gctx, runID, summary.Request{
			Fragments: frags,
			Context:   req.Context,
			MaxTokens: req.MaxTokens,
		})
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		if failed != nil {
			failed(runID, err)
		}
		return nil, err
	}

	result := &models.AnalysisResult{
		RunID:         runID,
		Artifact:      art,
		Summary:       text,
		SummarySource: source,
		FragmentCount: len(frags),
		CreatedAt:     time.Now().Unix(),
	}
	logging.Info("analysis completed", map[string]interface{}{
		"run_id":         runID,
		"summary_source": source,
		"empty_image":    art.Empty(),
		"terms":          len(art.Weights),
		"duration_ms":    time.Since(start).Milliseconds(),
	})
	if completed != nil {
		completed(runID, result)
	}
	return result, nil
}

// usable drops blank fragments and rejects out-of-range sentiments.
func usable(frags []models.Fragment) ([]models.Fragment, error) {
	out := make([]models.Fragment, 0, len(frags))
	for i, f := range frags {
		if f.IsBlank() {
			continue
		}
		if err := f.Validate(); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInvalid, fmt.Sprintf("fragment %d", i), err)
		}
		out = append(out, f)
	}
	if len(out) == 0 {
		return nil, apperrors.New(apperrors.ErrInvalid, "no feedback to analyze")
	}
	return out, nil
}

func (s *AnalysisService) render(ctx context.Context, runID string, frags []models.Fragment) *models.RenderedArtifact {
	table := s.gen.Prepare(frags)
	if len(table) == 0 {
		return models.EmptyArtifact()
	}
	if s.queue != nil && s.queue.IsRunning() {
		art, err := s.queue.Render(ctx, table, s.gen.Options())
		if err == nil {
			return art
		}
		logging.Warn("render queue unavailable, rendering inline", map[string]interface{}{
			"run_id": runID,
			"error":  err.Error(),
		})
	}
	return s.gen.Rasterizer().Rasterize(table, s.gen.Options())
}

func (s *AnalysisService) summarize(ctx context.Context, runID string, req summary.Request) (string, string) {
	s.mu.RLock()
	sum, enabled := s.summarizer, s.config.EnableAI
	s.mu.RUnlock()

	if enabled && sum != nil {
		text, err := sum.Summarize(ctx, req)
		if err == nil && text != "" {
			return text, models.SummarySourceLLM
		}
		if err != nil {
			logging.Warn("summary failed, using offline summary", map[string]interface{}{
				"run_id": runID,
				"code":   string(apperrors.CodeOf(err)),
				"error":  err.Error(),
			})
		}
	}

	text, err := s.offline.Summarize(context.Background(), req)
	if err != nil {
		logging.Error("offline summary failed", err, map[string]interface{}{"run_id": runID})
		return "", models.SummarySourceOffline
	}
	return text, models.SummarySourceOffline
}

// Export composes the PDF of a run.
func (s *AnalysisService) Export(ctx context.Context, req ExportRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	text, img := req.AnalysisText, req.Image
	if req.Result != nil {
		if text == "" {
			text = req.Result.Summary
		}
		if img == nil && !req.Result.Artifact.Empty() {
			img = req.Result.Artifact.Image
		}
	}

	out, err := s.compositor.Compose(models.CompositionRequest{
		Title:        req.Title,
		Context:      req.Context,
		AnalysisText: text,
		Image:        img,
		GeneratedAt:  req.GeneratedAt,
	})
	if err != nil {
		logging.Error("export failed", err)
		return nil, err
	}
	logging.Info("export completed", map[string]interface{}{"bytes": len(out)})
	return out, nil
}

// BatchAnalyze runs several analyses with bounded concurrency. Results
// keep the order of reqs; the first error is returned with the partial
// results.
func (s *AnalysisService) BatchAnalyze(ctx context.Context, reqs []AnalyzeRequest) ([]*models.AnalysisResult, error) {
	results := make([]*models.AnalysisResult, len(reqs))

	s.mu.RLock()
	limit := s.config.BatchConcurrency
	s.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		i, req := i, req
		g.Go(func() error {
			res, err := s.Analyze(gctx, req)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
