// Package assets caches produced remote assets in a local directory so the
// final reel survives vendor-side asset expiry.
package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/veedran/reelsmith/pkg/file"
	"github.com/veedran/reelsmith/pkg/log"
)

// Downloader implements pipeline.Downloader by streaming assets into a cache
// directory on disk.
type Downloader struct {
	dir        string
	httpClient *http.Client
}

func NewDownloader(dir string) *Downloader {
	return &Downloader{
		dir:        dir,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Download fetches assetURL and writes it under the cache directory as a file
// derived from name. Returns the local path.
func (d *Downloader) Download(ctx context.Context, assetURL, name string) (string, error) {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return "", fmt.Errorf("creating cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, assetURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching asset: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("asset fetch returned status %d", resp.StatusCode)
	}

	filename := file.SafeName(name) + file.ExtFromURL(assetURL, ".mp4")
	path := filepath.Join(d.dir, filename)

	// Write to a temp file first so a partial download never shows up
	// under the final name.
	tmp, err := os.CreateTemp(d.dir, "download-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing asset: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("placing asset: %w", err)
	}

	log.Info("assets: cached %s (%d bytes) at %s", assetURL, written, path)
	return path, nil
}
