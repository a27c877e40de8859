package fonts

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/golang/freetype/truetype"

	apperrors "github.com/feedny/backend/internal/errors"
	"github.com/feedny/backend/internal/logging"
)

const (
	// DefaultDownloadURL serves a font covering Latin and Arabic.
	DefaultDownloadURL = "https://github.com/google/fonts/raw/main/ofl/tajawal/Tajawal-Regular.ttf"
	// DefaultFileName is the cached file name of the downloaded font.
	DefaultFileName = "Tajawal-Regular.ttf"

	maxFontBytes = 20 << 20
)

// DefaultCacheDir returns <user cache>/feedny/fonts.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "feedny", "fonts")
}

// CacheStrategy reuses a font downloaded by an earlier run.
type CacheStrategy struct {
	Dir      string
	FileName string
}

func (c CacheStrategy) Name() string { return "cache" }

func (c CacheStrategy) Find(context.Context) (string, bool) {
	path := filepath.Join(c.Dir, c.FileName)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	if !valid(path) {
		logging.Warn("cached font is corrupt", map[string]interface{}{"path": path})
		return "", false
	}
	return path, true
}

// DownloadStrategy fetches one known-good font into the cache directory.
type DownloadStrategy struct {
	URL        string
	Dir        string
	FileName   string
	Client     *http.Client
	MaxRetries uint64
	RetryDelay time.Duration
}

func (d DownloadStrategy) Name() string { return "download" }

func (d DownloadStrategy) Find(ctx context.Context) (string, bool) {
	if d.URL == "" {
		return "", false
	}
	client := d.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(d.RetryDelay), d.MaxRetries),
		ctx,
	)
	data, err := backoff.RetryWithData(func() ([]byte, error) {
		return d.fetch(ctx, client)
	}, policy)
	if err != nil {
		logging.Warn("font download failed", map[string]interface{}{
			"code":  string(apperrors.ErrFontUnavailable),
			"url":   d.URL,
			"error": err.Error(),
		})
		return "", false
	}

	path, err := writeAtomic(d.Dir, d.FileName, data)
	if err != nil {
		logging.Warn("font cache write failed", map[string]interface{}{
			"code":  string(apperrors.ErrFontUnavailable),
			"dir":   d.Dir,
			"error": err.Error(),
		})
		return "", false
	}
	logging.Info("font downloaded", map[string]interface{}{"path": path, "bytes": len(data)})
	return path, true
}

func (d DownloadStrategy) fetch(ctx context.Context, client *http.Client) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontBytes))
	if err != nil {
		return nil, err
	}
	if _, err := truetype.Parse(data); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("downloaded file is not a TrueType font: %w", err))
	}
	return data, nil
}

// writeAtomic writes data to dir/name through a temporary file and rename,
// so readers never observe a partial font.
func writeAtomic(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, name+".*.tmp")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	path := filepath.Join(dir, name)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
