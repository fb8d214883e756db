// downloader.go implements the Downloader molecule that fetches generated
// images from the temporary URLs some providers return.
//
// This molecule composes:
//   - core.Config: for HTTP/TLS configuration
//   - go-cache: short-lived URL -> bytes cache
//   - atoms.go: DecodeImage
package imagegen

import (
	"context"
	"fmt"
	"image"
	"io"
	"net/http"
	"time"

	"storyforge/core"

	"github.com/patrickmn/go-cache"
)

// DefaultMaxDownloadBytes caps a single image download.
const DefaultMaxDownloadBytes = 32 << 20

// Downloader fetches image bytes over HTTP.
//
// Provider URLs expire after about an hour, so bytes are cached briefly in
// memory. A retried or repeated request for the same URL is served from
// the cache instead of the CDN.
//
// Thread Safety: Downloader is safe for concurrent use.
type Downloader struct {
	client   *http.Client
	cache    *cache.Cache
	maxBytes int64
}

// DownloaderConfig holds configuration for the Downloader.
type DownloaderConfig struct {
	// HTTPClient is the HTTP client for downloads (optional)
	HTTPClient *http.Client

	// Timeout for download operations when HTTPClient is nil
	// Default: 60 seconds
	Timeout time.Duration

	// CacheTTL is how long fetched bytes are kept. Zero disables caching.
	CacheTTL time.Duration

	// MaxBytes caps the response body. Default: 32MB
	MaxBytes int64
}

// DefaultDownloaderConfig returns sensible defaults for downloading images.
func DefaultDownloaderConfig() DownloaderConfig {
	return DownloaderConfig{
		Timeout:  60 * time.Second,
		CacheTTL: 10 * time.Minute,
		MaxBytes: DefaultMaxDownloadBytes,
	}
}

// NewDownloader creates a downloader using the TLS and timeout settings
// from cfg.
func NewDownloader(cfg *core.Config) (*Downloader, error) {
	if cfg == nil {
		return nil, fmt.Errorf("imagegen: config cannot be nil")
	}
	dc := DefaultDownloaderConfig()
	dc.HTTPClient = core.GetHTTPClient(cfg, cfg.DownloadTimeout)
	dc.CacheTTL = cfg.DownloadCacheTTL
	return NewDownloaderWithConfig(dc), nil
}

// NewDownloaderWithConfig creates a downloader with explicit configuration.
// This is useful for testing or when you need fine-grained control.
func NewDownloaderWithConfig(cfg DownloaderConfig) *Downloader {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxDownloadBytes
	}

	d := &Downloader{
		client:   httpClient,
		maxBytes: maxBytes,
	}
	if cfg.CacheTTL > 0 {
		d.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return d
}

// Fetch downloads url and returns the body. Non-200 responses return an
// *HTTPStatusError so callers can classify them.
func (d *Downloader) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("imagegen: URL cannot be empty")
	}
	if d.cache != nil {
		if cached, ok := d.cache.Get(url); ok {
			return cached.([]byte), nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to create download request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 200)}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, d.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("imagegen: failed to read image data: %w", err)
	}
	if int64(len(data)) > d.maxBytes {
		return nil, errResponseTooLarge
	}

	if d.cache != nil {
		d.cache.SetDefault(url, data)
	}
	return data, nil
}

// FetchImage downloads and decodes url.
func (d *Downloader) FetchImage(ctx context.Context, url string) (image.Image, error) {
	data, err := d.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// CachedCount returns the number of cached downloads.
func (d *Downloader) CachedCount() int {
	if d.cache == nil {
		return 0
	}
	return d.cache.ItemCount()
}
