package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/qishuigrab/api/internal/config"
)

// PageFetcher defines the read side of the provider: share and detail pages.
type PageFetcher interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// MediaDownloader defines the binary side of the provider: resolved media
// URLs pulled to disk or streamed through to a client.
type MediaDownloader interface {
	DownloadToFile(ctx context.Context, url, path string) error
	OpenStream(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

// PageClient talks to the music-sharing site with browser-like headers.
// The provider serves different markup (or nothing) to non-browser agents,
// and media URLs reject requests without a matching Referer.
type PageClient struct {
	httpClient *http.Client
	cfg        *config.ProviderConfig
}

// NewPageClient creates a new provider client. Timeouts are applied
// per-operation from the config rather than on the shared http.Client, since
// page fetches and media downloads have different bounds.
func NewPageClient(cfg *config.ProviderConfig) *PageClient {
	return &PageClient{
		httpClient: &http.Client{},
		cfg:        cfg,
	}
}

// BaseURL returns the provider origin used to absolutize relative meta URLs.
func (c *PageClient) BaseURL() string {
	return c.cfg.BaseURL
}

// FetchPage GETs a page and returns its body as text. Network errors,
// timeouts and non-2xx statuses are all reported as errors; there are no
// retries anywhere in this client.
func (c *PageClient) FetchPage(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.FetchTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("page fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("page fetch failed: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read page body: %w", err)
	}
	return string(body), nil
}

// DownloadToFile streams a media URL into path. A partial file left behind
// by a failed transfer is removed before returning.
func (c *PageClient) DownloadToFile(ctx context.Context, url, path string) error {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.DownloadTimeout)*time.Second)
	defer cancel()

	resp, err := c.doMediaRequest(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return fmt.Errorf("download to %s failed: %w", path, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}
	return nil
}

// OpenStream opens a media URL for passthrough streaming. The returned
// ReadCloser must be closed by the caller; closing it also releases the
// transfer deadline.
func (c *PageClient) OpenStream(ctx context.Context, url string) (io.ReadCloser, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(c.cfg.DownloadTimeout)*time.Second)

	resp, err := c.doMediaRequest(ctx, url)
	if err != nil {
		cancel()
		return nil, 0, err
	}
	return &cancelReadCloser{rc: resp.Body, cancel: cancel}, resp.ContentLength, nil
}

func (c *PageClient) doMediaRequest(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Referer", c.cfg.Referer)
	req.Header.Set("Origin", strings.TrimSuffix(c.cfg.Referer, "/"))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("media request failed: status %d", resp.StatusCode)
	}
	return resp, nil
}

type cancelReadCloser struct {
	rc     io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelReadCloser) Read(p []byte) (int, error) { return c.rc.Read(p) }

func (c *cancelReadCloser) Close() error {
	err := c.rc.Close()
	c.cancel()
	return err
}
