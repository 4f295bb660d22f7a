// Package translate sends article text to a language model under a pacing
// and retry policy.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/pkg/llm"
	"github.com/jmylchreest/newsbridge/pkg/retry"
)

var (
	// ErrTranslationFailed is returned when a call could not produce a usable
	// answer within the retry budget.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrThrottleExhausted is returned when the provider kept throttling
	// until the retry budget ran out. The client stays throttled afterwards.
	ErrThrottleExhausted = errors.New("translation throttled")

	errMalformed = errors.New("malformed response")
	errTruncated = errors.New("response hit the token limit")
)

// Mode selects how an article is sent.
type Mode string

const (
	// ModePlain sends one call per chunk and returns raw text.
	ModePlain Mode = "plain"
	// ModeStructured sends the whole article in one call and expects a
	// {title, content, excerpt, summary} object back.
	ModeStructured Mode = "structured"
)

// Config holds translation settings.
type Config struct {
	Provider    string        `mapstructure:"provider" json:"provider" validate:"required"`
	Model       string        `mapstructure:"model" json:"model,omitempty"`
	BaseURL     string        `mapstructure:"base_url" json:"base_url,omitempty"`
	Mode        Mode          `mapstructure:"mode" json:"mode" validate:"oneof=plain structured"`
	SourceLang  string        `mapstructure:"source_lang" json:"source_lang" validate:"required"`
	TargetLang  string        `mapstructure:"target_lang" json:"target_lang" validate:"required"`
	ChunkBudget int           `mapstructure:"chunk_budget" json:"chunk_budget" validate:"gte=0"`
	MinInterval time.Duration `mapstructure:"min_interval" json:"min_interval"`
	CallTimeout time.Duration `mapstructure:"call_timeout" json:"call_timeout"`
	Temperature float64       `mapstructure:"temperature" json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int           `mapstructure:"max_tokens" json:"max_tokens" validate:"gte=0"`
	Retry       retry.Config  `mapstructure:"retry" json:"retry"`
}

// DefaultConfig returns the settings used by the command line tool.
func DefaultConfig() Config {
	return Config{
		Provider:    "anthropic",
		Mode:        ModePlain,
		SourceLang:  "Japanese",
		TargetLang:  "Korean",
		ChunkBudget: 2500,
		MinInterval: 7 * time.Second,
		CallTimeout: 120 * time.Second,
		Temperature: 0.2,
		MaxTokens:   8192,
		Retry: retry.Config{
			MaxAttempts: 4,
			BaseDelay:   10 * time.Second,
			MaxDelay:    2 * time.Minute,
		},
	}
}

// Option configures a Client.
type Option func(*Client)

// WithObserver reports every provider call to obs.
func WithObserver(obs llm.Observer) Option {
	return func(c *Client) { c.observer = obs }
}

// WithPacer replaces the pacer built from Config.MinInterval.
func WithPacer(p *retry.Pacer) Option {
	return func(c *Client) { c.pacer = p }
}

// WithPolicy replaces the retry policy built from Config.Retry.
func WithPolicy(p retry.Policy) Option {
	return func(c *Client) { c.policy = p }
}

// Client translates text through a Provider. Calls are paced so no two
// start closer than the configured interval, and a Client is meant to be
// used by one goroutine at a time.
type Client struct {
	provider  llm.Provider
	cfg       Config
	pacer     *retry.Pacer
	policy    retry.Policy
	observer  llm.Observer
	throttled atomic.Bool
}

// New creates a Client.
func New(provider llm.Provider, cfg Config, opts ...Option) *Client {
	c := &Client{
		provider: provider,
		cfg:      cfg,
		pacer:    retry.NewPacer(cfg.MinInterval),
		policy:   cfg.Retry.Policy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Throttled reports whether a call has exhausted its retries on throttling.
// Once set it stays set for the life of the Client.
func (c *Client) Throttled() bool {
	return c.throttled.Load()
}

// Mode returns the configured mode.
func (c *Client) Mode() Mode {
	if c.cfg.Mode == "" {
		return ModePlain
	}
	return c.cfg.Mode
}

// TranslateChunk translates a separator-joined chunk of segments.
func (c *Client) TranslateChunk(ctx context.Context, text string, segments int) (string, error) {
	return c.call(ctx, "chunk", llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: plainSystem(c.cfg.SourceLang, c.cfg.TargetLang)},
			{Role: llm.RoleUser, Content: plainUser(text, segments)},
		},
	}, nil)
}

// TranslateTitle translates a headline.
func (c *Client) TranslateTitle(ctx context.Context, title string) (string, error) {
	out, err := c.call(ctx, "title", llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: titleSystem(c.cfg.SourceLang, c.cfg.TargetLang)},
			{Role: llm.RoleUser, Content: title},
		},
	}, nil)
	if err != nil {
		return "", err
	}
	return cleanTitle(out), nil
}

// TranslateHeading translates the inner markup of one section heading.
func (c *Client) TranslateHeading(ctx context.Context, heading string) (string, error) {
	out, err := c.call(ctx, "heading", llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: headingSystem(c.cfg.SourceLang, c.cfg.TargetLang)},
			{Role: llm.RoleUser, Content: heading},
		},
	}, nil)
	if err != nil {
		return "", err
	}
	return firstLine(out), nil
}

// TranslateArticle translates a title and separator-joined body in one call
// and returns the structured result.
func (c *Client) TranslateArticle(ctx context.Context, title, content string, segments int) (*Structured, error) {
	var result *Structured
	_, err := c.call(ctx, "article", llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: structuredSystem(c.cfg.SourceLang, c.cfg.TargetLang)},
			{Role: llm.RoleUser, Content: structuredUser(title, content, segments)},
		},
		JSON: true,
	}, func(raw string) error {
		s, err := ParseStructured(raw)
		if err != nil {
			return err
		}
		s.Title = cleanTitle(s.Title)
		result = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Repair asks the provider to translate source-language fragments left in
// an already translated body.
func (c *Client) Repair(ctx context.Context, body string) (string, error) {
	return c.call(ctx, "repair", llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: repairSystem(c.cfg.SourceLang, c.cfg.TargetLang)},
			{Role: llm.RoleUser, Content: body},
		},
	}, nil)
}

// call runs one paced, retried provider call. parse, when set, validates the
// answer; a parse failure counts as a malformed response and is retried.
// Without parse the answer is returned with any wrapping code fence removed.
func (c *Client) call(ctx context.Context, purpose string, req llm.Request, parse func(string) error) (string, error) {
	if c.Throttled() {
		return "", ErrThrottleExhausted
	}
	req.Temperature = c.cfg.Temperature
	req.MaxTokens = c.cfg.MaxTokens

	inputSize := 0
	for _, m := range req.Messages {
		if m.Role == llm.RoleUser {
			inputSize += len(m.Content)
		}
	}

	policy := c.policy
	policy.IsRetryable = func(err error) bool {
		if ctx.Err() != nil {
			return false
		}
		return llm.IsTransient(err) || errors.Is(err, errMalformed)
	}
	policy.Hint = func(err error) time.Duration {
		d, _ := llm.RetryAfter(err)
		return d
	}
	policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("translation call failed, retrying",
			"purpose", purpose,
			"attempt", attempt+1,
			"wait", wait,
			"error", err)
	}

	var content string
	err := policy.Do(ctx, func(ctx context.Context, attempt int) error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		callCtx := ctx
		if c.cfg.CallTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
			defer cancel()
		}

		start := time.Now()
		resp, err := c.provider.Execute(callCtx, req)
		var text string
		if err == nil {
			text = strings.TrimSpace(resp.Content)
			if parse == nil {
				text = unwrapFence(text)
			}
		}
		switch {
		case err != nil:
		case text == "":
			err = llm.ErrEmptyResponse
		case resp.Truncated:
			// A cut-off answer would lose trailing segments; a retry with the
			// same limit is cut off again.
			err = errTruncated
		}
		c.notify(ctx, purpose, attempt, inputSize, start, resp, err)
		if err != nil {
			return err
		}

		if parse != nil {
			if perr := parse(resp.Content); perr != nil {
				return fmt.Errorf("%w: %w", errMalformed, perr)
			}
		}
		content = text
		return nil
	})
	if err == nil {
		return content, nil
	}

	if errors.Is(err, retry.ErrExhausted) && llm.IsRateLimited(err) {
		c.throttled.Store(true)
		return "", fmt.Errorf("%w: %w", ErrThrottleExhausted, err)
	}
	return "", fmt.Errorf("%w (%s): %w", ErrTranslationFailed, purpose, err)
}

func (c *Client) notify(ctx context.Context, purpose string, attempt, inputSize int, start time.Time, resp *llm.Response, err error) {
	if c.observer == nil {
		return
	}
	c.observer.OnCall(ctx, llm.CallEvent{
		Provider:  c.provider.Name(),
		Model:     c.provider.Model(),
		Purpose:   purpose,
		Attempt:   attempt,
		InputSize: inputSize,
		Response:  resp,
		Error:     err,
		Duration:  time.Since(start),
		StartedAt: start,
	})
}

func cleanTitle(s string) string {
	return strings.Trim(firstLine(s), `"「」“”`)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}
