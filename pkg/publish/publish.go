// Package publish posts translated articles to a WordPress site through its
// REST API using application-password basic auth.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/internal/version"
	"github.com/jmylchreest/newsbridge/pkg/retry"
)

var (
	// ErrPublish wraps every failure to create a post.
	ErrPublish = errors.New("publish failed")
	// ErrMedia wraps media upload failures, including rejected files.
	ErrMedia = errors.New("media upload failed")
)

// wpTime is the layout WordPress uses for date and date_gmt.
const wpTime = "2006-01-02T15:04:05"

// Config holds the destination settings.
type Config struct {
	URL           string        `mapstructure:"url" json:"url" validate:"required,url"`
	User          string        `mapstructure:"user" json:"-"`
	AppPassword   string        `mapstructure:"app_password" json:"-"`
	Status        string        `mapstructure:"status" json:"status" validate:"oneof=publish draft pending private"`
	Timezone      string        `mapstructure:"timezone" json:"timezone" validate:"required"`
	FeaturedImage bool          `mapstructure:"featured_image" json:"featured_image"`
	MediaMaxSize  string        `mapstructure:"media_max_size" json:"media_max_size"`
	Timeout       time.Duration `mapstructure:"timeout" json:"timeout"`
	Retry         retry.Config  `mapstructure:"retry" json:"retry"`
}

// DefaultConfig returns the settings used by the original deployment.
func DefaultConfig() Config {
	return Config{
		URL:           "https://prodg.kr",
		Status:        "publish",
		Timezone:      "Asia/Seoul",
		FeaturedImage: true,
		MediaMaxSize:  "10MB",
		Timeout:       60 * time.Second,
		Retry:         retry.Config{MaxAttempts: 3, BaseDelay: 5 * time.Second, MaxDelay: 30 * time.Second},
	}
}

// MaxMediaBytes parses MediaMaxSize. Empty means 10MB.
func (c Config) MaxMediaBytes() (int, error) {
	if c.MediaMaxSize == "" {
		return 10 * 1000 * 1000, nil
	}
	n, err := humanize.ParseBytes(c.MediaMaxSize)
	if err != nil {
		return 0, fmt.Errorf("invalid media_max_size %q: %w", c.MediaMaxSize, err)
	}
	return int(n), nil
}

// Post is a post to create.
type Post struct {
	Title         string
	Content       string
	Slug          string
	Excerpt       string
	Date          time.Time
	Status        string
	FeaturedMedia int
}

// Published identifies a post on the destination.
type Published struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Content string `json:"-"`
}

// Media is an uploaded attachment.
type Media struct {
	ID        int    `json:"id"`
	SourceURL string `json:"source_url"`
}

// Publisher is the destination the pipeline writes to.
type Publisher interface {
	CreatePost(ctx context.Context, p Post) (Published, error)
	UploadMedia(ctx context.Context, data []byte, filename string) (Media, error)
	Search(ctx context.Context, term string) ([]Published, error)
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithPolicy replaces the retry policy built from the config.
func WithPolicy(p retry.Policy) Option {
	return func(cl *Client) { cl.policy = p }
}

// Client talks to /wp-json/wp/v2.
type Client struct {
	api      string
	user     string
	password string
	status   string
	loc      *time.Location
	maxMedia int
	http     *http.Client
	policy   retry.Policy
}

// New creates a Client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("publish: site url required")
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}
	maxMedia, err := cfg.MaxMediaBytes()
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultConfig().Timeout
	}

	c := &Client{
		api:      strings.TrimRight(cfg.URL, "/") + "/wp-json/wp/v2",
		user:     cfg.User,
		password: cfg.AppPassword,
		status:   cfg.Status,
		loc:      loc,
		maxMedia: maxMedia,
		http:     &http.Client{Timeout: timeout},
		policy:   cfg.Retry.Policy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.policy.IsRetryable = isRetryable
	return c, nil
}

// MaxMediaBytes returns the upload size cap.
func (c *Client) MaxMediaBytes() int {
	return c.maxMedia
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.code, e.body)
}

// Only rate limiting is retried: a 5xx on a write may already have taken effect.
func isRetryable(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.code == http.StatusTooManyRequests
}

func (c *Client) do(ctx context.Context, method, endpoint string, header http.Header, body []byte, out any) error {
	return c.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
		if err != nil {
			return err
		}
		for k, vs := range header {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
		req.Header.Set("User-Agent", version.UserAgent())
		req.Header.Set("Accept", "application/json")
		if c.user != "" {
			req.SetBasicAuth(c.user, c.password)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 300))
			return &statusError{code: resp.StatusCode, body: strings.TrimSpace(string(msg))}
		}
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

type wpPost struct {
	ID      int    `json:"id"`
	Link    string `json:"link"`
	Content struct {
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// CreatePost creates p. Date is sent as local time in the destination
// timezone and as UTC.
func (c *Client) CreatePost(ctx context.Context, p Post) (Published, error) {
	status := p.Status
	if status == "" {
		status = c.status
	}
	payload := map[string]any{
		"title":          p.Title,
		"content":        p.Content,
		"status":         status,
		"featured_media": p.FeaturedMedia,
	}
	if p.Slug != "" {
		payload["slug"] = p.Slug
	}
	if p.Excerpt != "" {
		payload["excerpt"] = p.Excerpt
	}
	if !p.Date.IsZero() {
		payload["date"] = p.Date.In(c.loc).Format(wpTime)
		payload["date_gmt"] = p.Date.UTC().Format(wpTime)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Published{}, fmt.Errorf("%w: encode post: %w", ErrPublish, err)
	}

	var created wpPost
	header := http.Header{"Content-Type": {"application/json"}}
	if err := c.do(ctx, http.MethodPost, c.api+"/posts", header, body, &created); err != nil {
		return Published{}, fmt.Errorf("%w: %w", ErrPublish, err)
	}
	logger.Info("post created", "id", created.ID, "link", created.Link)
	return Published{ID: created.ID, URL: created.Link}, nil
}

// UploadMedia uploads an image. Files over the size cap or whose content
// is not an image are rejected without a request.
func (c *Client) UploadMedia(ctx context.Context, data []byte, filename string) (Media, error) {
	if len(data) == 0 {
		return Media{}, fmt.Errorf("%w: empty file", ErrMedia)
	}
	if c.maxMedia > 0 && len(data) > c.maxMedia {
		return Media{}, fmt.Errorf("%w: %s exceeds %s", ErrMedia,
			humanize.Bytes(uint64(len(data))), humanize.Bytes(uint64(c.maxMedia)))
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Media{}, fmt.Errorf("%w: %s is not an image", ErrMedia, mt.String())
	}
	filename = MediaFilename(filename, mt)

	header := http.Header{
		"Content-Type":        {mt.String()},
		"Content-Disposition": {fmt.Sprintf(`attachment; filename="%s"`, filename)},
	}
	var m Media
	if err := c.do(ctx, http.MethodPost, c.api+"/media", header, data, &m); err != nil {
		return Media{}, fmt.Errorf("%w: %w", ErrMedia, err)
	}
	logger.Debug("media uploaded", "id", m.ID, "file", filename, "size", humanize.Bytes(uint64(len(data))))
	return m, nil
}

// Search returns posts matching term whose rendered content contains it.
// WordPress search is fuzzy, so the content check keeps only real matches.
func (c *Client) Search(ctx context.Context, term string) ([]Published, error) {
	q := url.Values{}
	q.Set("search", term)
	q.Set("per_page", "10")
	q.Set("_fields", "id,link,content")

	var posts []wpPost
	if err := c.do(ctx, http.MethodGet, c.api+"/posts?"+q.Encode(), nil, nil, &posts); err != nil {
		return nil, fmt.Errorf("search posts: %w", err)
	}
	var out []Published
	for _, p := range posts {
		if strings.Contains(p.Content.Rendered, term) {
			out = append(out, Published{ID: p.ID, URL: p.Link, Content: p.Content.Rendered})
		}
	}
	return out, nil
}

// MediaFilename derives an upload filename from a URL or path. Names that
// are missing or longer than 100 bytes are replaced with a timestamped name.
// The extension follows the detected type when the name has none.
func MediaFilename(raw string, mt *mimetype.MIME) string {
	name := raw
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		name = u.Path
	}
	name = path.Base(name)
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	if name == "." || name == "/" || name == "" || len(name) > 100 {
		name = "image_" + strconv.FormatInt(time.Now().Unix(), 10)
	}
	if path.Ext(name) == "" && mt != nil {
		name += mt.Extension()
	}
	return strings.ReplaceAll(name, `"`, "")
}
