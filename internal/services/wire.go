package services

import (
	"context"
	"time"

	"github.com/feedny/backend/internal/analysis"
	"github.com/feedny/backend/internal/config"
	"github.com/feedny/backend/internal/document"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/fonts"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/shaping"
	"github.com/feedny/backend/internal/summary"
	"github.com/feedny/backend/internal/wordcloud"
)

// NewFromConfig resolves the font and stopwords once, starts the render
// queue and builds the service. The returned stop function drains the
// queue. A summary provider without credentials leaves AI disabled.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*AnalysisService, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	resolveCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.Fonts.DownloadTimeoutSecs+10)*time.Second)
	fontPath := fonts.NewResolverFromConfig(cfg.Fonts).Resolve(resolveCtx)
	cancel()

	stop := analysis.BuildStopwords(
		analysis.ParseLanguages(cfg.Stopwords.Languages),
		analysis.WithStopwordDir(cfg.Stopwords.Dir),
	)
	shaper := shaping.New(shaping.DefaultConfig())
	raster := wordcloud.NewRasterizer(fonts.LoadOrFallback(fontPath))
	gen := wordcloud.NewGenerator(raster, shaper, stop, wordcloud.OptionsFromConfig(cfg.Wordcloud))

	queue := wordcloud.NewRenderQueue(raster, cfg.Render.QueueSize, cfg.Render.Workers)
	queue.Start(ctx)

	analysisCfg := DefaultAnalysisConfig()
	sum, err := summary.New(cfg.Summary)
	if err != nil {
		if !apperrors.Is(err, apperrors.ErrAINotConfigured) {
			queue.Stop()
			return nil, nil, err
		}
		logging.Warn("summary provider not configured, using offline summaries", map[string]interface{}{
			"provider": cfg.Summary.Provider,
			"error":    err.Error(),
		})
		analysisCfg.EnableAI = false
	}

	svc := NewAnalysisService(Deps{
		Generator:  gen,
		Queue:      queue,
		Summarizer: sum,
		Offline:    summary.NewOfflineSummarizer(stop),
		Compositor: document.NewCompositor(fontPath, shaper, document.OptionsFromConfig(cfg.Document)...),
		Config:     analysisCfg,
	})

	logging.Info("analysis service ready", map[string]interface{}{
		"font":       fontPath,
		"stopwords":  stop.Len(),
		"ai_enabled": svc.IsAIEnabled(),
		"workers":    cfg.Render.Workers,
	})
	return svc, queue.Stop, nil
}
