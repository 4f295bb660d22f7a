// Package llm provides a unified interface for chat completion providers.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message.
type Message struct {
	Role    Role
	Content string
}

// Request represents a completion request to the LLM.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
	// JSON asks the provider for a single JSON object when it supports a
	// native mode for it. Callers still validate the shape.
	JSON bool
}

// Usage tracks token consumption.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response represents the result of an LLM execution.
type Response struct {
	Content      string
	FinishReason string
	Usage        Usage
	Model        string // actual model used, may differ from requested
	Duration     time.Duration
	// Truncated is set when the answer stopped at the token limit.
	Truncated bool
}

// Provider is the interface every backend implements.
type Provider interface {
	// Execute sends a completion request and returns the response.
	Execute(ctx context.Context, req Request) (*Response, error)

	// Name returns the provider identifier (e.g., "openrouter", "anthropic").
	Name() string

	// Model returns the configured model name.
	Model() string
}

// ProviderConfig holds common configuration for providers.
type ProviderConfig struct {
	APIKey  string
	BaseURL string // for custom endpoints
	Model   string
	// Timeout bounds a single HTTP exchange for providers that own their
	// HTTP client. Callers normally bound calls with a context instead.
	Timeout time.Duration
	// HTTPReferer and AppTitle are sent to OpenRouter for attribution.
	HTTPReferer string
	AppTitle    string
}

var (
	// ErrRateLimited marks a throttling response from the provider.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable marks a transient server-side failure.
	ErrUnavailable = errors.New("provider unavailable")
	// ErrEmptyResponse is returned when the provider answered with no text.
	ErrEmptyResponse = errors.New("empty response")
)

type retryAfterError struct {
	wait time.Duration
	err  error
}

func (e *retryAfterError) Error() string { return e.err.Error() }
func (e *retryAfterError) Unwrap() error { return e.err }

// RetryAfter returns the wait a throttling provider asked for.
func RetryAfter(err error) (time.Duration, bool) {
	var ra *retryAfterError
	if errors.As(err, &ra) {
		return ra.wait, true
	}
	return 0, false
}

// classify wraps err with a sentinel derived from the HTTP status code so
// callers can tell throttling apart from other failures. A Retry-After
// header on a throttling response is kept for RetryAfter.
func classify(provider string, status int, header http.Header, err error) error {
	switch {
	case status == 429 || status == 529:
		err = fmt.Errorf("%s: %w (status %d): %w", provider, ErrRateLimited, status, err)
		if d := parseRetryAfter(header.Get("Retry-After"), time.Now()); d > 0 {
			return &retryAfterError{wait: d, err: err}
		}
		return err
	case status >= 500:
		return fmt.Errorf("%s: %w (status %d): %w", provider, ErrUnavailable, status, err)
	default:
		return fmt.Errorf("%s API error: %w", provider, err)
	}
}

// parseRetryAfter reads delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(max(secs, 0)) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

func responseHeader(r *http.Response) http.Header {
	if r == nil {
		return nil
	}
	return r.Header
}

// IsRateLimited reports whether err is a throttling response.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTransient reports whether err is worth retrying: throttling, server
// errors, timeouts and empty answers.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrUnavailable) ||
		errors.Is(err, ErrEmptyResponse) ||
		errors.Is(err, context.DeadlineExceeded)
}

func splitSystem(msgs []Message) (system string, rest []Message) {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		rest = append(rest, m)
	}
	return system, rest
}

func maxTokensOr(n int) int {
	if n == 0 {
		return 4096
	}
	return n
}
