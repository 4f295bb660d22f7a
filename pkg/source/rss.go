package source

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/jmylchreest/newsbridge/internal/version"
	"github.com/jmylchreest/newsbridge/pkg/article"
)

// RSSLister reads the source index from an RSS or Atom feed. A feed only
// carries its most recent items, so it suits incremental runs.
type RSSLister struct {
	feedURL string
	title   string
	loc     *time.Location
	opts    listerOptions
}

// NewRSSLister creates a lister for cfg.FeedURL.
func NewRSSLister(cfg Config, opts ...ListerOption) (*RSSLister, error) {
	if cfg.FeedURL == "" {
		return nil, errors.New("rss lister: feed url required")
	}
	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &RSSLister{feedURL: cfg.FeedURL, title: cfg.FallbackTitle, loc: loc, opts: buildOptions(opts)}, nil
}

// Walk implements Lister.
func (l *RSSLister) Walk(ctx context.Context, visit func(article.SourceArticle) bool) error {
	parser := gofeed.NewParser()
	parser.Client = l.opts.client
	parser.UserAgent = version.UserAgent()

	var feed *gofeed.Feed
	err := l.opts.policy.Do(ctx, func(ctx context.Context, _ int) error {
		var err error
		feed, err = parser.ParseURLWithContext(l.feedURL, ctx)
		if err != nil {
			var httpErr gofeed.HTTPError
			if errors.As(err, &httpErr) && httpErr.StatusCode >= 500 {
				return fmt.Errorf("%w: %w", errServer, err)
			}
		}
		return err
	})
	if err != nil {
		return fmt.Errorf("parse feed: %w", err)
	}

	for _, item := range feed.Items {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		title := htmlText(item.Title)
		if title == "" {
			title = l.title
		}
		published := l.opts.now()
		switch {
		case item.PublishedParsed != nil:
			published = *item.PublishedParsed
		case item.UpdatedParsed != nil:
			published = *item.UpdatedParsed
		}
		if !visit(article.SourceArticle{URL: link, Title: title, PublishedAt: published.In(l.loc)}) {
			return nil
		}
	}
	return nil
}
