package fetcher

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/internal/version"
)

// StaticConfig holds configuration for the static fetcher.
type StaticConfig struct {
	UserAgent   string        `mapstructure:"user_agent" json:"user_agent,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxBodySize int           `mapstructure:"max_body_size" json:"max_body_size"`
}

// DefaultStaticConfig returns sensible defaults.
func DefaultStaticConfig() StaticConfig {
	return StaticConfig{
		UserAgent:   version.UserAgent(),
		Timeout:     20 * time.Second,
		MaxBodySize: 10 << 20,
	}
}

// StaticFetcher uses Colly for plain HTTP fetching.
type StaticFetcher struct {
	config StaticConfig
}

// NewStatic creates a new static fetcher.
func NewStatic(cfg StaticConfig) *StaticFetcher {
	def := DefaultStaticConfig()
	cfg.UserAgent = coalesce(cfg.UserAgent, def.UserAgent)
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = def.MaxBodySize
	}
	return &StaticFetcher{config: cfg}
}

// Fetch retrieves url with a fresh collector. Non-2xx responses fail with
// ErrStatus; HTML challenge pages fail with ErrAntiBot.
func (f *StaticFetcher) Fetch(ctx context.Context, targetURL string, opts Options) (Content, error) {
	logger.Debug("static fetch starting", "url", targetURL)

	result := Content{
		URL:       targetURL,
		FetchedAt: time.Now(),
	}
	if err := ctx.Err(); err != nil {
		return result, err
	}

	c := colly.NewCollector(
		colly.UserAgent(coalesce(opts.UserAgent, f.config.UserAgent)),
		colly.StdlibContext(ctx),
	)
	c.DetectCharset = true
	c.MaxBodySize = f.config.MaxBodySize
	if opts.MaxBodySize > 0 {
		c.MaxBodySize = opts.MaxBodySize
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = f.config.Timeout
	}
	c.SetRequestTimeout(timeout)

	if len(opts.Headers) > 0 {
		c.OnRequest(func(r *colly.Request) {
			for k, v := range opts.Headers {
				r.Headers.Set(k, v)
			}
		})
	}

	var fetchErr error
	c.OnResponse(func(r *colly.Response) {
		result.StatusCode = r.StatusCode
		result.ContentType = r.Headers.Get("Content-Type")
		result.Body = r.Body
		logger.Debug("static fetch response received",
			"status", r.StatusCode,
			"content_type", result.ContentType,
			"body_size", len(r.Body))
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			result.StatusCode = r.StatusCode
			fetchErr = fmt.Errorf("%w %d: %w", ErrStatus, r.StatusCode, err)
			return
		}
		fetchErr = fmt.Errorf("fetch error: %w", err)
	})

	if err := c.Visit(targetURL); err != nil {
		if fetchErr != nil {
			return result, fetchErr
		}
		return result, fmt.Errorf("failed to visit URL: %w", err)
	}
	if fetchErr != nil {
		return result, fetchErr
	}

	if strings.Contains(result.ContentType, "html") {
		if challenge := DetectChallenge(pageTitle(result.Body), result.HTML()); challenge != "" {
			logger.Warn("challenge page detected", "url", targetURL, "type", challenge)
			return result, fmt.Errorf("%w: %s", ErrAntiBot, challenge)
		}
	}

	logger.Debug("static fetch complete", "url", targetURL, "status", result.StatusCode)
	return result, nil
}

func pageTitle(body []byte) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// Close releases resources.
func (f *StaticFetcher) Close() error {
	return nil
}

// Type returns the fetcher type.
func (f *StaticFetcher) Type() string {
	return "static"
}
