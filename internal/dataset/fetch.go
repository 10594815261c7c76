package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// Fetcher downloads the source file when it is not already on disk.
type Fetcher struct {
	rest    *resty.Client
	retries int
}

func NewFetcher(timeout time.Duration, retries int) *Fetcher {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(30 * time.Second) // default fallback
	}
	if retries > 0 {
		r.SetRetryCount(retries)
		r.SetRetryWaitTime(time.Second)
	}
	return &Fetcher{rest: r, retries: retries}
}

// EnsureLocal returns nil immediately when path exists, otherwise downloads
// url to path, creating parent directories as needed.
func (f *Fetcher) EnsureLocal(path, url string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	if url == "" {
		return fmt.Errorf("dataset %s missing and no download URL configured", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset directory: %w", err)
	}

	log.Info().Str("url", url).Str("path", path).Msg("downloading dataset")
	resp, err := f.rest.R().SetOutput(path).Get(url)
	if err != nil {
		return fmt.Errorf("dataset download failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		os.Remove(path)
		return fmt.Errorf("dataset download failed: status %d from %s", resp.StatusCode(), url)
	}
	return nil
}
