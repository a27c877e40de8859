package fonts

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/feedny/backend/internal/config"
	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
)

// Strategy is one step of the font search. Find reports false to let the
// next strategy try.
type Strategy interface {
	Name() string
	Find(ctx context.Context) (string, bool)
}

type resolverOptions struct {
	dirs        []string
	families    []string
	cacheDir    string
	downloadURL string
	client      *http.Client
	retries     uint64
	retryDelay  time.Duration
	download    bool
	strategies  []Strategy
}

// Option configures a Resolver.
type Option func(*resolverOptions)

// WithSearchDirs adds directories searched after the platform defaults.
func WithSearchDirs(dirs ...string) Option {
	return func(o *resolverOptions) { o.dirs = append(o.dirs, dirs...) }
}

// WithOnlySearchDirs replaces the platform directories.
func WithOnlySearchDirs(dirs ...string) Option {
	return func(o *resolverOptions) { o.dirs = dirs }
}

// WithFamilies replaces the family priority list.
func WithFamilies(families ...string) Option {
	return func(o *resolverOptions) {
		if len(families) > 0 {
			o.families = families
		}
	}
}

// WithCacheDir sets where downloaded fonts are stored.
func WithCacheDir(dir string) Option {
	return func(o *resolverOptions) {
		if dir != "" {
			o.cacheDir = dir
		}
	}
}

// WithDownloadURL sets the remote font location.
func WithDownloadURL(url string) Option {
	return func(o *resolverOptions) {
		if url != "" {
			o.downloadURL = url
		}
	}
}

// WithHTTPClient sets the client used for the download.
func WithHTTPClient(c *http.Client) Option {
	return func(o *resolverOptions) { o.client = c }
}

// WithRetry sets the download retry policy.
func WithRetry(retries uint64, delay time.Duration) Option {
	return func(o *resolverOptions) {
		o.retries = retries
		o.retryDelay = delay
	}
}

// WithoutDownload disables the network step.
func WithoutDownload() Option {
	return func(o *resolverOptions) { o.download = false }
}

// WithStrategies replaces the whole chain.
func WithStrategies(s ...Strategy) Option {
	return func(o *resolverOptions) { o.strategies = s }
}

// Resolver finds a font path once and remembers the answer, including a
// negative one.
type Resolver struct {
	strategies []Strategy
	once       sync.Once
	path       string
}

// NewResolver builds the system, cache and download chain.
func NewResolver(opts ...Option) *Resolver {
	o := &resolverOptions{
		dirs:        DefaultSearchDirs(),
		families:    DefaultFamilies,
		cacheDir:    DefaultCacheDir(),
		downloadURL: DefaultDownloadURL,
		client:      &http.Client{Timeout: 30 * time.Second},
		retries:     2,
		retryDelay:  time.Second,
		download:    true,
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.strategies != nil {
		return &Resolver{strategies: o.strategies}
	}

	strategies := []Strategy{
		SystemStrategy{Dirs: o.dirs, Families: o.families},
		CacheStrategy{Dir: o.cacheDir, FileName: DefaultFileName},
	}
	if o.download {
		strategies = append(strategies, DownloadStrategy{
			URL:        o.downloadURL,
			Dir:        o.cacheDir,
			FileName:   DefaultFileName,
			Client:     o.client,
			MaxRetries: o.retries,
			RetryDelay: o.retryDelay,
		})
	}
	return &Resolver{strategies: strategies}
}

// NewResolverFromConfig maps the fonts configuration section to options.
func NewResolverFromConfig(cfg config.FontsConfig) *Resolver {
	opts := []Option{
		WithSearchDirs(cfg.SearchDirs...),
		WithFamilies(cfg.Families...),
		WithCacheDir(cfg.CacheDir),
		WithDownloadURL(cfg.DownloadURL),
	}
	if cfg.DownloadTimeoutSecs > 0 {
		opts = append(opts, WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.DownloadTimeoutSecs) * time.Second}))
	}
	if cfg.DisableDownload {
		opts = append(opts, WithoutDownload())
	}
	return NewResolver(opts...)
}

// Resolve returns the font path, or "" when every strategy failed. Only the
// first call searches; later calls return the cached answer.
func (r *Resolver) Resolve(ctx context.Context) string {
	r.once.Do(func() {
		r.path = r.search(ctx)
	})
	return r.path
}

func (r *Resolver) search(ctx context.Context) string {
	for _, s := range r.strategies {
		path, ok := r.try(ctx, s)
		if ok {
			logging.Info("font resolved", map[string]interface{}{
				"strategy": s.Name(),
				"path":     path,
			})
			return path
		}
	}
	logging.Warn("no multilingual font found, using built-in font", map[string]interface{}{
		"code": string(apperrors.ErrDegradedRendering),
	})
	return ""
}

func (r *Resolver) try(ctx context.Context, s Strategy) (path string, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("font strategy panicked", fmt.Errorf("%v", rec), map[string]interface{}{
				"strategy": s.Name(),
			})
			path, ok = "", false
		}
	}()
	return s.Find(ctx)
}
