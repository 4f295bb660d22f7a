package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/internal/version"
	"github.com/jmylchreest/newsbridge/pkg/article"
	"github.com/jmylchreest/newsbridge/pkg/retry"
)

var errServer = errors.New("server error")

// ListerOption configures a lister.
type ListerOption func(*listerOptions)

type listerOptions struct {
	client *http.Client
	policy retry.Policy
	now    func() time.Time
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) ListerOption {
	return func(o *listerOptions) { o.client = c }
}

// WithRetryPolicy sets the policy for index requests.
func WithRetryPolicy(p retry.Policy) ListerOption {
	return func(o *listerOptions) { o.policy = p }
}

// WithClock sets the clock used when a listed article has no date.
func WithClock(now func() time.Time) ListerOption {
	return func(o *listerOptions) { o.now = now }
}

func buildOptions(opts []ListerOption) listerOptions {
	o := listerOptions{
		client: &http.Client{Timeout: 20 * time.Second},
		policy: retry.Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second, MaxDelay: 10 * time.Second},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.policy.IsRetryable = func(err error) bool {
		return errors.Is(err, errServer) || errors.Is(err, context.DeadlineExceeded)
	}
	return o
}

// WordPressLister pages through a WordPress REST posts endpoint.
type WordPressLister struct {
	cfg   Config
	loc   *time.Location
	opts  listerOptions
	title string
}

// NewWordPressLister creates a lister for cfg.APIURL.
func NewWordPressLister(cfg Config, opts ...ListerOption) (*WordPressLister, error) {
	if cfg.APIURL == "" {
		return nil, errors.New("wordpress lister: api url required")
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &WordPressLister{cfg: cfg, loc: loc, opts: buildOptions(opts), title: cfg.FallbackTitle}, nil
}

type wpPost struct {
	Link  string `json:"link"`
	Date  string `json:"date"`
	GMT   string `json:"date_gmt"`
	Title struct {
		Rendered string `json:"rendered"`
	} `json:"title"`
}

// Walk implements Lister. Paging stops at an empty page, at the HTTP 400
// WordPress returns past the last page, or after MaxPages.
func (l *WordPressLister) Walk(ctx context.Context, visit func(article.SourceArticle) bool) error {
	maxPages := max(l.cfg.MaxPages, 1)
	for page := 1; page <= maxPages; page++ {
		posts, err := l.page(ctx, page)
		if err != nil {
			return fmt.Errorf("list page %d: %w", page, err)
		}
		if len(posts) == 0 {
			return nil
		}
		logger.Debug("source page listed", "page", page, "posts", len(posts))

		for _, p := range posts {
			if strings.TrimSpace(p.Link) == "" {
				continue
			}
			title := htmlText(p.Title.Rendered)
			if title == "" {
				title = l.title
			}
			a := article.SourceArticle{
				URL:         strings.TrimSpace(p.Link),
				Title:       title,
				PublishedAt: l.parseDate(p.Date, p.GMT),
			}
			if !visit(a) {
				return nil
			}
		}
	}
	return nil
}

func (l *WordPressLister) page(ctx context.Context, page int) ([]wpPost, error) {
	q := url.Values{}
	q.Set("per_page", strconv.Itoa(max(l.cfg.PerPage, 1)))
	q.Set("page", strconv.Itoa(page))
	q.Set("orderby", "date")
	q.Set("order", "desc")
	q.Set("_fields", "date,date_gmt,link,title")

	endpoint := l.cfg.APIURL
	if strings.Contains(endpoint, "?") {
		endpoint += "&" + q.Encode()
	} else {
		endpoint += "?" + q.Encode()
	}

	var posts []wpPost
	err := l.opts.policy.Do(ctx, func(ctx context.Context, _ int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", version.UserAgent())
		req.Header.Set("Accept", "application/json")

		resp, err := l.opts.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", errServer, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusBadRequest:
			// Past the last page.
			posts = nil
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.NewDecoder(resp.Body).Decode(&posts)
	})
	return posts, err
}

// parseDate prefers date_gmt, which is UTC without an offset, and falls
// back to date in the source timezone.
func (l *WordPressLister) parseDate(local, gmt string) time.Time {
	if t, ok := parseWPTime(gmt, time.UTC); ok {
		return t.In(l.loc)
	}
	if t, ok := parseWPTime(local, l.loc); ok {
		return t.In(l.loc)
	}
	return l.opts.now().In(l.loc)
}

func parseWPTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1)); err == nil {
		return t, true
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", s, loc); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func htmlText(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
