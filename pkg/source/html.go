package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/internal/version"
	"github.com/jmylchreest/newsbridge/pkg/article"
)

const maxIndexBytes = 5 << 20

// HTMLLister scrapes article links from the site's own index pages, for
// sources without a REST API or feed. It follows the "next page" link up
// to MaxPages and never visits a page twice.
type HTMLLister struct {
	cfg     Config
	pattern *regexp.Regexp
	loc     *time.Location
	opts    listerOptions
}

// NewHTMLLister creates a lister starting at cfg.IndexURL.
func NewHTMLLister(cfg Config, opts ...ListerOption) (*HTMLLister, error) {
	if cfg.IndexURL == "" {
		return nil, errors.New("html lister: index url required")
	}
	var pattern *regexp.Regexp
	if cfg.LinkPattern != "" {
		p, err := regexp.Compile(cfg.LinkPattern)
		if err != nil {
			return nil, fmt.Errorf("html lister: link pattern: %w", err)
		}
		pattern = p
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &HTMLLister{cfg: cfg, pattern: pattern, loc: loc, opts: buildOptions(opts)}, nil
}

// Walk implements Lister.
func (l *HTMLLister) Walk(ctx context.Context, visit func(article.SourceArticle) bool) error {
	var (
		next    = l.cfg.IndexURL
		visited = make(map[string]bool)
		seen    = make(map[string]bool)
	)
	for page := 1; page <= max(l.cfg.MaxPages, 1) && next != ""; page++ {
		if visited[next] {
			return nil
		}
		visited[next] = true

		doc, err := l.page(ctx, next)
		if err != nil {
			return fmt.Errorf("list page %d: %w", page, err)
		}
		base, err := url.Parse(next)
		if err != nil {
			return err
		}

		listed := l.links(doc, base)
		logger.Debug("source page listed", "page", page, "url", next, "links", len(listed))
		for _, a := range listed {
			if seen[a.URL] {
				continue
			}
			seen[a.URL] = true
			if !visit(a) {
				return nil
			}
		}
		next = l.nextPage(doc, base)
	}
	return nil
}

func (l *HTMLLister) page(ctx context.Context, pageURL string) (*goquery.Document, error) {
	var doc *goquery.Document
	err := l.opts.policy.Do(ctx, func(ctx context.Context, _ int) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", version.UserAgent())
		req.Header.Set("Accept", "text/html")

		resp, err := l.opts.client.Do(req)
		if err != nil {
			return fmt.Errorf("%w: %w", errServer, err)
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("%w: status %d", errServer, resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return fmt.Errorf("status %d", resp.StatusCode)
		}
		doc, err = goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxIndexBytes))
		return err
	})
	return doc, err
}

// links returns the article links on one index page in document order.
func (l *HTMLLister) links(doc *goquery.Document, base *url.URL) []article.SourceArticle {
	selector := l.cfg.LinkSelector
	if selector == "" {
		selector = "a[href]"
	}

	var out []article.SourceArticle
	doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		link, ok := resolveLink(base, s.AttrOr("href", ""))
		if !ok {
			return
		}
		if l.pattern != nil && !l.pattern.MatchString(link) {
			return
		}
		title := strings.Join(strings.Fields(s.Text()), " ")
		if title == "" {
			title = l.cfg.FallbackTitle
		}
		out = append(out, article.SourceArticle{
			URL:         link,
			Title:       title,
			PublishedAt: l.listedDate(s),
		})
	})
	return out
}

// listedDate reads the datetime of the nearest <time> in the link's entry,
// falling back to now.
func (l *HTMLLister) listedDate(s *goquery.Selection) time.Time {
	entry := s.Closest("article, li, .post, .entry")
	if entry.Length() == 0 {
		entry = s.Parent()
	}
	if dt, ok := entry.Find("time[datetime]").First().Attr("datetime"); ok {
		if t, ok := parseWPTime(dt, l.loc); ok {
			return t.In(l.loc)
		}
	}
	return l.opts.now().In(l.loc)
}

func (l *HTMLLister) nextPage(doc *goquery.Document, base *url.URL) string {
	if l.cfg.NextSelector == "" {
		return ""
	}
	next, _ := resolveLink(base, doc.Find(l.cfg.NextSelector).First().AttrOr("href", ""))
	return next
}

// resolveLink makes href absolute against base and drops its fragment.
// Fragment-only and javascript: links are rejected.
func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if !u.IsAbs() {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	u.Fragment = ""
	return u.String(), true
}
