// Package fetcher provides the browser-backed fetcher used when article
// pages only render their body with JavaScript.
package fetcher

import (
	"context"
	"fmt"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/internal/version"
	"github.com/jmylchreest/newsbridge/pkg/fetcher"
)

// Config holds configuration for the dynamic fetcher.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// ChromePath overrides browser discovery.
	ChromePath string
	// ScreenshotDir receives a PNG when a page fails to load. Empty disables it.
	ScreenshotDir string
	// WaitSelector must be ready before the page is captured.
	WaitSelector string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:    version.UserAgent(),
		Timeout:      30 * time.Second,
		WaitSelector: "body",
	}
}

// DynamicFetcher renders pages in headless Chrome. Media URLs go to the
// fallback fetcher because a browser tab cannot hand back raw image bytes.
type DynamicFetcher struct {
	config    Config
	fallback  fetcher.Fetcher
	allocCtx  context.Context
	cancelCtx context.CancelFunc
}

// NewDynamicFetcher starts a browser allocator. fallback serves media.
func NewDynamicFetcher(cfg Config, fallback fetcher.Fetcher) (*DynamicFetcher, error) {
	def := DefaultConfig()
	if cfg.UserAgent == "" {
		cfg.UserAgent = def.UserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.WaitSelector == "" {
		cfg.WaitSelector = def.WaitSelector
	}
	if fallback == nil {
		return nil, fmt.Errorf("dynamic fetcher: fallback fetcher required")
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1366, 900),
		chromedp.UserAgent(cfg.UserAgent),
	)
	if chromePath := FindChromePath(cfg.ChromePath); chromePath != "" {
		opts = append(opts, chromedp.ExecPath(chromePath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)

	logger.Debug("dynamic fetcher created", "timeout", cfg.Timeout, "wait", cfg.WaitSelector)

	return &DynamicFetcher{
		config:    cfg,
		fallback:  fallback,
		allocCtx:  allocCtx,
		cancelCtx: cancelAlloc,
	}, nil
}

// Fetch renders targetURL and returns the final DOM. The status code is
// taken from the main document response.
func (f *DynamicFetcher) Fetch(ctx context.Context, targetURL string, opts fetcher.Options) (fetcher.Content, error) {
	if isMediaURL(targetURL) {
		return f.fallback.Fetch(ctx, targetURL, opts)
	}

	result := fetcher.Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}

	browserCtx, cancelBrowser := chromedp.NewContext(f.allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			logger.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)
	defer cancelBrowser()
	// Tie the tab to the caller's context as well as the allocator's.
	stop := context.AfterFunc(ctx, cancelBrowser)
	defer stop()

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	timeoutCtx, cancelTimeout := context.WithTimeout(browserCtx, timeout)
	defer cancelTimeout()

	var status atomic.Int64
	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
			status.CompareAndSwap(0, e.Response.Status)
		}
	})

	var html, title string
	actions := []chromedp.Action{network.Enable()}
	if len(opts.Headers) > 0 {
		headers := network.Headers{}
		for k, v := range opts.Headers {
			headers[k] = v
		}
		actions = append(actions, network.SetExtraHTTPHeaders(headers))
	}
	actions = append(actions,
		chromedp.Navigate(targetURL),
		chromedp.WaitReady(f.config.WaitSelector),
		chromedp.OuterHTML("html", &html),
		chromedp.Title(&title),
	)

	if err := chromedp.Run(timeoutCtx, actions...); err != nil {
		f.screenshot(browserCtx, targetURL)
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		if timeoutCtx.Err() != nil {
			logger.Warn("browser timeout, page never became ready", "url", targetURL)
			return result, fmt.Errorf("%w: %v", fetcher.ErrChallengeTimeout, err)
		}
		return result, fmt.Errorf("browser automation failed: %w", err)
	}

	result.Body = []byte(html)
	result.ContentType = "text/html; charset=utf-8"
	result.StatusCode = int(status.Load())
	if result.StatusCode == 0 {
		result.StatusCode = 200
	}
	if result.StatusCode < 200 || result.StatusCode > 299 {
		return result, fmt.Errorf("%w: %d", fetcher.ErrStatus, result.StatusCode)
	}
	if challenge := fetcher.DetectChallenge(title, html); challenge != "" {
		logger.Warn("challenge page detected", "url", targetURL, "type", challenge)
		return result, fmt.Errorf("%w: %s", fetcher.ErrAntiBot, challenge)
	}

	logger.Debug("dynamic fetch complete",
		"url", targetURL,
		"title", title,
		"status", result.StatusCode,
		"size", len(html))

	return result, nil
}

// screenshot saves the current tab for diagnosis when enabled.
func (f *DynamicFetcher) screenshot(browserCtx context.Context, targetURL string) {
	if f.config.ScreenshotDir == "" {
		return
	}
	ctx, cancel := context.WithTimeout(browserCtx, 5*time.Second)
	defer cancel()
	var buf []byte
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 80)); err != nil || len(buf) == 0 {
		return
	}
	name := fmt.Sprintf("newsbridge-%s-%d.png", screenshotSlug(targetURL), time.Now().UnixNano())
	p := filepath.Join(f.config.ScreenshotDir, name)
	if err := os.WriteFile(p, buf, 0o644); err != nil {
		logger.Debug("screenshot not saved", "error", err)
		return
	}
	logger.Info("debug screenshot saved", "url", targetURL, "path", p)
}

// Close releases browser resources.
func (f *DynamicFetcher) Close() error {
	if f.cancelCtx != nil {
		f.cancelCtx()
	}
	return f.fallback.Close()
}

// Type returns the fetcher type.
func (f *DynamicFetcher) Type() string {
	return "dynamic"
}

// isMediaURL reports whether the URL path names an image, audio or video file.
func isMediaURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	t := mime.TypeByExtension(strings.ToLower(path.Ext(u.Path)))
	return strings.HasPrefix(t, "image/") || strings.HasPrefix(t, "video/") || strings.HasPrefix(t, "audio/")
}

func screenshotSlug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "page"
	}
	return strings.ReplaceAll(u.Host, ".", "-")
}
