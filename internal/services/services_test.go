// Package services tests for analysis orchestration.
package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/feedny/backend/internal/config"
	"github.com/feedny/backend/internal/document"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/models"
	"github.com/feedny/backend/internal/summary"
	"github.com/feedny/backend/internal/wordcloud"
)

// fakeSummarizer returns a fixed text or error and counts calls.
type fakeSummarizer struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
	last  summary.Request
}

func (f *fakeSummarizer) Summarize(ctx context.Context, req summary.Request) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.text, f.err
}

func smallGenerator() *wordcloud.Generator {
	opts := wordcloud.DefaultOptions()
	opts.Width, opts.Height = 400, 200
	return wordcloud.NewGenerator(nil, nil, nil, opts)
}

func newTestService(sum summary.Summarizer) *AnalysisService {
	cfg := DefaultAnalysisConfig()
	cfg.EnableAI = sum != nil
	return NewAnalysisService(Deps{
		Generator:  smallGenerator(),
		Summarizer: sum,
		Compositor: document.NewCompositor("", nil),
		Config:     cfg,
	})
}

func sampleFragments() []models.Fragment {
	return []models.Fragment{
		models.NewScoredFragment("Le formateur explique très bien les exercices", 9),
		models.NewScoredFragment("Les exercices pratiques sont trop rapides", 3),
		models.NewFragment("Bonne ambiance, formateur disponible"),
		models.NewFragment("   "),
	}
}

// =====================================================
// AnalysisService Tests
// =====================================================

// TestDefaultAnalysisConfig verifies default configuration.
func TestDefaultAnalysisConfig(t *testing.T) {
	cfg := DefaultAnalysisConfig()

	if cfg == nil {
		t.Fatal("DefaultAnalysisConfig() returned nil")
	}
	if !cfg.EnableAI {
		t.Error("EnableAI should be true by default")
	}
	if cfg.SentimentWeighting {
		t.Error("SentimentWeighting should be false by default")
	}
	if cfg.BatchConcurrency != 2 {
		t.Errorf("BatchConcurrency = %d, want 2", cfg.BatchConcurrency)
	}
}

// TestNewAnalysisService verifies service creation with empty deps.
func TestNewAnalysisService(t *testing.T) {
	svc := NewAnalysisService(Deps{})

	if svc == nil {
		t.Fatal("NewAnalysisService returned nil")
	}
	if svc.gen == nil {
		t.Error("generator should be initialized")
	}
	if svc.offline == nil {
		t.Error("offline summarizer should be initialized")
	}
	if svc.compositor == nil {
		t.Error("compositor should be initialized")
	}
	if svc.IsAIEnabled() {
		t.Error("AI should be disabled without a summarizer")
	}
}

// TestAnalysisService_SetSummarizer verifies AI toggling.
func TestAnalysisService_SetSummarizer(t *testing.T) {
	svc := newTestService(nil)

	svc.SetSummarizer(&fakeSummarizer{text: "ok"})
	if !svc.IsAIEnabled() {
		t.Error("AI should be enabled after SetSummarizer")
	}

	svc.DisableAI()
	if svc.IsAIEnabled() {
		t.Error("AI should be disabled after DisableAI")
	}

	svc.SetSummarizer(nil)
	if svc.IsAIEnabled() {
		t.Error("AI should stay disabled with a nil summarizer")
	}
}

// TestNewAnalysisService_callerStateUntouched verifies the service keeps its
// own copies of the config and generator it is given.
func TestNewAnalysisService_callerStateUntouched(t *testing.T) {
	cfg := DefaultAnalysisConfig()
	cfg.SentimentWeighting = true
	gen := smallGenerator()

	svc := NewAnalysisService(Deps{
		Generator:  gen,
		Summarizer: &fakeSummarizer{text: "ok"},
		Config:     cfg,
	})
	svc.DisableAI()
	if !cfg.EnableAI {
		t.Error("DisableAI() changed the caller's config")
	}
	svc.SetSummarizer(nil)
	if !cfg.EnableAI {
		t.Error("SetSummarizer(nil) changed the caller's config")
	}
	if svc.gen == gen {
		t.Error("service should weight a copy of the caller's generator")
	}
}

// TestAnalyze_noFeedback verifies that blank input is rejected.
func TestAnalyze_noFeedback(t *testing.T) {
	svc := newTestService(nil)

	tests := []struct {
		name  string
		frags []models.Fragment
	}{
		{"nil", nil},
		{"blank only", []models.Fragment{models.NewFragment(""), models.NewFragment(" \n ")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: tt.frags})
			if !apperrors.Is(err, apperrors.ErrInvalid) {
				t.Errorf("Analyze() error = %v, want INVALID_INPUT", err)
			}
		})
	}
}

// TestAnalyze_invalidSentiment verifies out-of-range scores are rejected.
func TestAnalyze_invalidSentiment(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Fragments: []models.Fragment{
			models.NewFragment("ok"),
			models.NewScoredFragment("trop haut", 11),
		},
	})
	if !apperrors.Is(err, apperrors.ErrInvalid) {
		t.Fatalf("Analyze() error = %v, want INVALID_INPUT", err)
	}
	if !strings.Contains(err.Error(), "fragment 1") {
		t.Errorf("error %q should name the fragment index", err)
	}
}

// TestAnalyze_offline verifies a run without a summarizer.
func TestAnalyze_offline(t *testing.T) {
	svc := newTestService(nil)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Fragments: sampleFragments(),
		Context:   "Formation Go",
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if res.RunID == "" {
		t.Error("RunID should be set")
	}
	if res.FragmentCount != 3 {
		t.Errorf("FragmentCount = %d, want 3", res.FragmentCount)
	}
	if res.SummarySource != models.SummarySourceOffline {
		t.Errorf("SummarySource = %q, want offline", res.SummarySource)
	}
	if !strings.HasPrefix(res.Summary, "1. Résumé général") {
		t.Errorf("Summary = %q, want the offline sections", res.Summary)
	}
	if res.Artifact.Empty() {
		t.Fatal("Artifact should not be empty")
	}
	if _, ok := res.Artifact.Weights["formateur"]; !ok {
		t.Errorf("Weights = %v, want formateur", res.Artifact.Weights)
	}
}

// TestAnalyze_llm verifies the summarizer text is used when it succeeds.
func TestAnalyze_llm(t *testing.T) {
	sum := &fakeSummarizer{text: "1. Résumé\nTrès bon cours"}
	svc := newTestService(sum)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Fragments: sampleFragments(),
		Context:   "Formation Go",
		MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if res.SummarySource != models.SummarySourceLLM {
		t.Errorf("SummarySource = %q, want llm", res.SummarySource)
	}
	if res.Summary != sum.text {
		t.Errorf("Summary = %q, want %q", res.Summary, sum.text)
	}
	if sum.calls != 1 {
		t.Errorf("calls = %d, want 1", sum.calls)
	}
	if sum.last.Context != "Formation Go" || sum.last.MaxTokens != 300 {
		t.Errorf("request = %+v, want context and max tokens forwarded", sum.last)
	}
	if len(sum.last.Fragments) != 3 {
		t.Errorf("forwarded %d fragments, want 3", len(sum.last.Fragments))
	}
}

// TestAnalyze_summarizerFailure verifies the offline fallback.
func TestAnalyze_summarizerFailure(t *testing.T) {
	tests := []struct {
		name string
		sum  *fakeSummarizer
	}{
		{"error", &fakeSummarizer{err: apperrors.New(apperrors.ErrAIFailed, "upstream 500")}},
		{"empty text", &fakeSummarizer{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(tt.sum)

			res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if res.SummarySource != models.SummarySourceOffline {
				t.Errorf("SummarySource = %q, want offline", res.SummarySource)
			}
			if res.Summary == "" {
				t.Error("Summary should hold the offline text")
			}
		})
	}
}

// TestAnalyze_cancelled verifies a cancelled context fails the run.
func TestAnalyze_cancelled(t *testing.T) {
	svc := newTestService(&fakeSummarizer{text: "ok"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Analyze(ctx, AnalyzeRequest{Fragments: sampleFragments()})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Analyze() error = %v, want context.Canceled", err)
	}
}

// TestAnalyze_callbacks verifies run events.
func TestAnalyze_callbacks(t *testing.T) {
	svc := newTestService(nil)

	var started, completed, failed []string
	svc.SetEventCallbacks(
		func(runID string) { started = append(started, runID) },
		func(runID string, res *models.AnalysisResult) {
			if res.RunID != runID {
				t.Errorf("completed runID = %q, result has %q", runID, res.RunID)
			}
			completed = append(completed, runID)
		},
		func(runID string, err error) { failed = append(failed, runID) },
	)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if _, err := svc.Analyze(context.Background(), AnalyzeRequest{}); err == nil {
		t.Fatal("Analyze() with no fragments should fail")
	}

	if len(started) != 1 || started[0] != res.RunID {
		t.Errorf("started = %v, want [%s]", started, res.RunID)
	}
	if len(completed) != 1 {
		t.Errorf("completed = %v, want one run", completed)
	}
	if len(failed) != 1 {
		t.Errorf("failed = %v, want one run", failed)
	}
}

// TestAnalyze_renderQueue verifies rendering goes through a running queue.
func TestAnalyze_renderQueue(t *testing.T) {
	gen := smallGenerator()
	queue := wordcloud.NewRenderQueue(gen.Rasterizer(), 4, 2)
	queue.Start(context.Background())
	defer queue.Stop()

	svc := NewAnalysisService(Deps{Generator: gen, Queue: queue})

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Artifact.Empty() {
		t.Error("Artifact should not be empty")
	}
	if got := queue.Stats().TotalProcessed; got != 1 {
		t.Errorf("TotalProcessed = %d, want 1", got)
	}
}

// TestAnalyze_stoppedQueue verifies inline rendering when the queue is down.
func TestAnalyze_stoppedQueue(t *testing.T) {
	gen := smallGenerator()
	queue := wordcloud.NewRenderQueue(gen.Rasterizer(), 1, 1)

	svc := NewAnalysisService(Deps{Generator: gen, Queue: queue})

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.Artifact.Empty() {
		t.Error("Artifact should be rendered inline")
	}
	if got := queue.Stats().TotalProcessed; got != 0 {
		t.Errorf("TotalProcessed = %d, want 0", got)
	}
}

// TestAnalyze_queueStartContextEnded verifies runs still render after the
// queue's start context ends.
func TestAnalyze_queueStartContextEnded(t *testing.T) {
	gen := smallGenerator()
	queue := wordcloud.NewRenderQueue(gen.Rasterizer(), 2, 1)
	startCtx, cancel := context.WithCancel(context.Background())
	queue.Start(startCtx)
	cancel()

	deadline := time.Now().Add(2 * time.Second)
	for queue.IsRunning() {
		if time.Now().After(deadline) {
			t.Fatal("queue still running after its start context ended")
		}
		time.Sleep(10 * time.Millisecond)
	}

	svc := NewAnalysisService(Deps{Generator: gen, Queue: queue})

	done := make(chan *models.AnalysisResult, 1)
	go func() {
		res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
		if err != nil {
			t.Errorf("Analyze() error = %v", err)
		}
		done <- res
	}()
	select {
	case res := <-done:
		if res == nil || res.Artifact.Empty() {
			t.Error("Artifact should be rendered inline")
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Analyze() did not return")
	}
}

// TestAnalyze_stopwordsOnly verifies the empty artifact when nothing survives filtering.
func TestAnalyze_stopwordsOnly(t *testing.T) {
	svc := newTestService(nil)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{
		Fragments: []models.Fragment{models.NewFragment("le la les de")},
	})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if !res.Artifact.Empty() {
		t.Error("Artifact should be empty")
	}
	if res.Artifact.Weights == nil {
		t.Error("Weights should be an empty map, not nil")
	}
}

// =====================================================
// Export Tests
// =====================================================

// TestExport_fromResult verifies the PDF takes text and image from a result.
func TestExport_fromResult(t *testing.T) {
	svc := newTestService(nil)

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	pdf, err := svc.Export(context.Background(), ExportRequest{
		Title:   "Session du lundi",
		Context: "Formation Go",
		Result:  res,
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF-")) {
		t.Errorf("Export() output does not start with %%PDF-")
	}
}

// TestExport_explicitText verifies explicit fields without a result.
func TestExport_explicitText(t *testing.T) {
	svc := newTestService(nil)

	pdf, err := svc.Export(context.Background(), ExportRequest{
		AnalysisText: "1. Résumé\nBon cours",
	})
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if len(pdf) == 0 {
		t.Error("Export() returned no bytes")
	}
}

// TestExport_cancelled verifies Export honours the context.
func TestExport_cancelled(t *testing.T) {
	svc := newTestService(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := svc.Export(ctx, ExportRequest{AnalysisText: "x"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Export() error = %v, want context.Canceled", err)
	}
}

// =====================================================
// Batch Tests
// =====================================================

// TestBatchAnalyze verifies result order and the concurrency bound.
func TestBatchAnalyze(t *testing.T) {
	svc := newTestService(nil)

	reqs := []AnalyzeRequest{
		{Fragments: []models.Fragment{models.NewFragment("chat chat chien")}},
		{Fragments: []models.Fragment{models.NewFragment("soleil plage soleil")}},
		{Fragments: []models.Fragment{models.NewFragment("montagne neige")}},
	}
	results, err := svc.BatchAnalyze(context.Background(), reqs)
	if err != nil {
		t.Fatalf("BatchAnalyze() error = %v", err)
	}
	if len(results) != len(reqs) {
		t.Fatalf("len(results) = %d, want %d", len(results), len(reqs))
	}

	want := []string{"chat", "soleil", "montagne"}
	for i, res := range results {
		if res == nil {
			t.Fatalf("results[%d] is nil", i)
		}
		if _, ok := res.Artifact.Weights[want[i]]; !ok {
			t.Errorf("results[%d] weights = %v, want %q", i, res.Artifact.Weights, want[i])
		}
	}
}

// TestBatchAnalyze_error verifies the first failure is reported.
func TestBatchAnalyze_error(t *testing.T) {
	svc := newTestService(nil)

	_, err := svc.BatchAnalyze(context.Background(), []AnalyzeRequest{
		{Fragments: []models.Fragment{models.NewFragment("chat")}},
		{},
	})
	if err == nil {
		t.Error("BatchAnalyze() should fail when a request has no fragments")
	}
}

// =====================================================
// Wiring Tests
// =====================================================

// TestNewFromConfig verifies the service wired from defaults without network access.
func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Fonts.DisableDownload = true
	cfg.Fonts.SearchDirs = []string{t.TempDir()}
	cfg.Fonts.CacheDir = t.TempDir()
	cfg.Stopwords.Dir = t.TempDir()
	cfg.Summary.Provider = "deepseek"
	cfg.Summary.APIKey = ""
	cfg.Wordcloud.Width, cfg.Wordcloud.Height = 400, 200

	svc, stop, err := NewFromConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewFromConfig() error = %v", err)
	}
	defer stop()

	if svc.IsAIEnabled() {
		t.Error("AI should be disabled without an API key")
	}

	res, err := svc.Analyze(context.Background(), AnalyzeRequest{Fragments: sampleFragments()})
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if res.SummarySource != models.SummarySourceOffline {
		t.Errorf("SummarySource = %q, want offline", res.SummarySource)
	}
}

// TestNewFromConfig_invalid verifies configuration errors are returned.
func TestNewFromConfig_invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Wordcloud.Width = 0

	if _, _, err := NewFromConfig(context.Background(), cfg); !apperrors.Is(err, apperrors.ErrConfigInvalid) {
		t.Errorf("NewFromConfig() error = %v, want CONFIG_INVALID", err)
	}
}
