package wordcloud

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/feedny/backend/internal/analysis"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
	"github.com/feedny/backend/internal/models"
)

// RenderJob is one queued rasterization.
type RenderJob struct {
	ID        string
	Table     analysis.FrequencyTable
	Options   Options
	CreatedAt time.Time
	Callback  func(*models.RenderedArtifact)
}

// RenderStats holds queue statistics.
type RenderStats struct {
	TotalProcessed int
	EmptyCount     int
	PendingCount   int
	AvgDurationMs  int64
}

// RenderQueue runs rasterizations on a fixed pool of workers so callers
// never render on their own goroutine.
type RenderQueue struct {
	raster    *Rasterizer
	jobs      chan *RenderJob
	workers   int
	wg        sync.WaitGroup
	stopCh    chan struct{}
	mu        sync.Mutex
	isRunning bool
	stats     RenderStats
}

// NewRenderQueue creates a queue holding up to queueSize pending jobs.
func NewRenderQueue(raster *Rasterizer, queueSize, workers int) *RenderQueue {
	if queueSize <= 0 {
		queueSize = 1
	}
	if workers <= 0 {
		workers = 1
	}
	return &RenderQueue{
		raster:  raster,
		jobs:    make(chan *RenderJob, queueSize),
		workers: workers,
	}
}

// Start launches the workers. Calling Start on a running queue is a no-op.
// When ctx ends the queue stops as if Stop had been called, so later
// submissions fail with QUEUE_STOPPED instead of waiting on idle workers.
func (q *RenderQueue) Start(ctx context.Context) {
	q.mu.Lock()
	if q.isRunning {
		q.mu.Unlock()
		return
	}
	q.isRunning = true
	stop := make(chan struct{})
	q.stopCh = stop
	q.mu.Unlock()

	logging.Info("render queue started", map[string]interface{}{
		"workers":    q.workers,
		"queue_size": cap(q.jobs),
	})
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(stop, i)
	}
	go func() {
		select {
		case <-ctx.Done():
			logging.Warn("render queue context ended, stopping", map[string]interface{}{
				"error": ctx.Err().Error(),
			})
			q.stop(stop)
		case <-stop:
		}
	}()
}

// Stop signals the workers and waits for them. Pending jobs are dropped
// and their callbacks receive the empty artifact.
func (q *RenderQueue) Stop() {
	q.stop(nil)
}

// stop ends the run owning run, or the current run when run is nil. A
// watcher of an earlier run never stops a restarted queue.
func (q *RenderQueue) stop(run chan struct{}) {
	q.mu.Lock()
	if !q.isRunning || (run != nil && q.stopCh != run) {
		q.mu.Unlock()
		return
	}
	q.isRunning = false
	stop := q.stopCh
	q.mu.Unlock()

	close(stop)
	q.wg.Wait()
	dropped := q.drain()

	stats := q.Stats()
	logging.Info("render queue stopped", map[string]interface{}{
		"total_processed": stats.TotalProcessed,
		"empty_count":     stats.EmptyCount,
		"dropped":         dropped,
	})
}

// Submit enqueues a job without blocking and returns its ID.
func (q *RenderQueue) Submit(table analysis.FrequencyTable, opts Options, callback func(*models.RenderedArtifact)) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.isRunning {
		return "", apperrors.New(apperrors.ErrQueueStopped, "render queue is not running")
	}

	job := &RenderJob{
		ID:        uuid.NewString(),
		Table:     table,
		Options:   opts,
		CreatedAt: time.Now(),
		Callback:  callback,
	}
	select {
	case q.jobs <- job:
		q.stats.PendingCount++
		logging.Debug("render job enqueued", map[string]interface{}{
			"job_id": job.ID,
			"terms":  len(table),
		})
		return job.ID, nil
	default:
		return "", apperrors.Newf(apperrors.ErrQueueFull, "render queue is full (capacity: %d)", cap(q.jobs))
	}
}

// Render enqueues a job and waits for its artifact or for ctx to end.
func (q *RenderQueue) Render(ctx context.Context, table analysis.FrequencyTable, opts Options) (*models.RenderedArtifact, error) {
	done := make(chan *models.RenderedArtifact, 1)
	if _, err := q.Submit(table, opts, func(a *models.RenderedArtifact) { done <- a }); err != nil {
		return nil, err
	}
	select {
	case a := <-done:
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RenderSync rasterizes on the caller's goroutine, still counted in stats.
func (q *RenderQueue) RenderSync(table analysis.FrequencyTable, opts Options) *models.RenderedArtifact {
	start := time.Now()
	art := q.raster.Rasterize(table, opts)
	q.record(art, time.Since(start).Milliseconds(), false)
	return art
}

func (q *RenderQueue) worker(stop <-chan struct{}, workerID int) {
	defer q.wg.Done()
	for {
		select {
		case <-stop:
			return
		case job := <-q.jobs:
			q.process(job, workerID)
		}
	}
}

func (q *RenderQueue) process(job *RenderJob, workerID int) {
	start := time.Now()
	art := q.raster.Rasterize(job.Table, job.Options)
	duration := time.Since(start).Milliseconds()
	q.record(art, duration, true)

	logging.Debug("render job finished", map[string]interface{}{
		"job_id":      job.ID,
		"worker_id":   workerID,
		"duration_ms": duration,
		"empty":       art.Empty(),
	})
	if job.Callback != nil {
		job.Callback(art)
	}
}

func (q *RenderQueue) record(art *models.RenderedArtifact, durationMs int64, queued bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if queued {
		q.stats.PendingCount--
	}
	q.stats.TotalProcessed++
	if art.Empty() {
		q.stats.EmptyCount++
	}
	n := int64(q.stats.TotalProcessed)
	q.stats.AvgDurationMs = (q.stats.AvgDurationMs*(n-1) + durationMs) / n
}

// drain empties the channel after the workers exit.
func (q *RenderQueue) drain() int {
	dropped := 0
	for {
		select {
		case job := <-q.jobs:
			dropped++
			q.mu.Lock()
			q.stats.PendingCount--
			q.mu.Unlock()
			if job.Callback != nil {
				job.Callback(models.EmptyArtifact())
			}
		default:
			return dropped
		}
	}
}

// Stats returns a copy of the statistics.
func (q *RenderQueue) Stats() RenderStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.stats
}

// IsRunning reports whether the workers are active.
func (q *RenderQueue) IsRunning() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.isRunning
}
