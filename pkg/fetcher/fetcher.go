// Package fetcher defines how article pages and media are retrieved.
// The static fetcher lives here; the CLI supplies a browser-backed one.
package fetcher

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Fetcher abstracts page fetching strategies.
type Fetcher interface {
	// Fetch retrieves the resource at url.
	Fetch(ctx context.Context, url string, opts Options) (Content, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns a string identifying the fetcher type (e.g., "static", "dynamic").
	Type() string
}

// Options controls fetching behavior.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	Headers   map[string]string
	// MaxBodySize caps the response body in bytes. Zero uses the fetcher default.
	MaxBodySize int
}

// Content is a fetched resource.
type Content struct {
	URL         string
	Body        []byte
	StatusCode  int
	ContentType string
	FetchedAt   time.Time
}

// HTML returns the body as a string.
func (c Content) HTML() string {
	return string(c.Body)
}

// Error types for distinguishing failure reasons.
// Check with errors.Is(err, fetcher.ErrStatus).
var (
	// ErrStatus indicates a non-success HTTP status.
	ErrStatus = errors.New("unexpected status")
	// ErrAntiBot indicates the site answered with a challenge page instead of the article.
	ErrAntiBot = errors.New("anti-bot protection detected")
	// ErrChallengeTimeout indicates a timeout while waiting for the page to become ready.
	ErrChallengeTimeout = errors.New("challenge timeout")
)

// DetectChallenge reports the kind of challenge page html looks like, or
// "" for an ordinary page.
func DetectChallenge(title, html string) string {
	title = strings.ToLower(title)
	html = strings.ToLower(html)

	switch {
	case strings.Contains(title, "just a moment"),
		strings.Contains(title, "attention required"),
		strings.Contains(html, "cf-challenge"),
		strings.Contains(html, "cf_chl_opt"):
		return "cloudflare"
	case strings.Contains(html, "challenges.cloudflare.com/turnstile"),
		strings.Contains(html, "cf-turnstile"):
		return "cloudflare-turnstile"
	case strings.Contains(html, "hcaptcha.com"), strings.Contains(html, "h-captcha"):
		return "hcaptcha"
	case strings.Contains(html, "google.com/recaptcha"), strings.Contains(html, "g-recaptcha"):
		return "recaptcha"
	case strings.Contains(title, "access denied"),
		strings.Contains(title, "bot detection"),
		strings.Contains(html, "robot or human"):
		return "anti-bot"
	}
	return ""
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
