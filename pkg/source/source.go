// Package source discovers candidate articles on the source site.
package source

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/pkg/article"
	"github.com/jmylchreest/newsbridge/pkg/ledger"
)

// Config holds source settings.
type Config struct {
	Kind          string   `mapstructure:"kind" json:"kind" validate:"oneof=wordpress rss html"`
	APIURL        string   `mapstructure:"api_url" json:"api_url" validate:"required_if=Kind wordpress"`
	FeedURL       string   `mapstructure:"feed_url" json:"feed_url,omitempty" validate:"required_if=Kind rss"`
	IndexURL      string   `mapstructure:"index_url" json:"index_url,omitempty" validate:"required_if=Kind html"`
	LinkSelector  string   `mapstructure:"link_selector" json:"link_selector,omitempty"`
	LinkPattern   string   `mapstructure:"link_pattern" json:"link_pattern,omitempty"`
	NextSelector  string   `mapstructure:"next_selector" json:"next_selector,omitempty"`
	CanonicalHost string   `mapstructure:"canonical_host" json:"canonical_host" validate:"required,hostname"`
	HostAliases   []string `mapstructure:"host_aliases" json:"host_aliases"`
	Timezone      string   `mapstructure:"timezone" json:"timezone" validate:"required"`
	MaxPages      int      `mapstructure:"max_pages" json:"max_pages" validate:"gte=1"`
	PerPage       int      `mapstructure:"per_page" json:"per_page" validate:"gte=1,lte=100"`
	SlugPrefix    string   `mapstructure:"slug_prefix" json:"slug_prefix"`
	FallbackTitle string   `mapstructure:"fallback_title" json:"fallback_title"`
}

// DefaultConfig returns the settings for the PRONEWS Japan site.
func DefaultConfig() Config {
	return Config{
		Kind:          "wordpress",
		APIURL:        "https://jp.pronews.com/wp-json/wp/v2/posts",
		CanonicalHost: "jp.pronews.com",
		HostAliases:   []string{"pronews.jp", "www.pronews.jp", "ko.pronews.com", "www.jp.pronews.com"},
		Timezone:      "Asia/Tokyo",
		MaxPages:      60,
		PerPage:       100,
		FallbackTitle: "제목 없음",
	}
}

// Lister walks the source's article index, newest first.
type Lister interface {
	// Walk calls visit for each listed article until visit returns false or
	// the index is exhausted.
	Walk(ctx context.Context, visit func(article.SourceArticle) bool) error
}

// NewLister creates the lister selected by cfg.Kind.
func NewLister(cfg Config, opts ...ListerOption) (Lister, error) {
	switch cfg.Kind {
	case "", "wordpress":
		return NewWordPressLister(cfg, opts...)
	case "rss":
		return NewRSSLister(cfg, opts...)
	case "html":
		return NewHTMLLister(cfg, opts...)
	default:
		return nil, fmt.Errorf("unknown source kind %q", cfg.Kind)
	}
}

// Collector selects the articles a run should process.
type Collector struct {
	lister Lister
	canon  *Canonicalizer
	ledger ledger.Ledger
}

// NewCollector creates a Collector. ledger may be nil.
func NewCollector(lister Lister, canon *Canonicalizer, l ledger.Ledger) *Collector {
	return &Collector{lister: lister, canon: canon, ledger: l}
}

// Collect returns up to limit articles with canonical URLs, skipping
// duplicates and, unless force is set, URLs already in the ledger. The
// result is sorted newest first. A limit below 1 means no limit.
func (c *Collector) Collect(ctx context.Context, limit int, force bool) ([]article.SourceArticle, error) {
	var (
		out      []article.SourceArticle
		seen     = make(map[string]bool)
		visitErr error
		listed   int
	)

	err := c.lister.Walk(ctx, func(a article.SourceArticle) bool {
		listed++
		canonical, err := c.canon.Canonicalize(a.URL)
		if err != nil {
			logger.Debug("skipping listed article", "url", a.URL, "error", err)
			return true
		}
		if seen[canonical] {
			return true
		}
		seen[canonical] = true

		if !force && c.ledger != nil {
			posted, err := c.ledger.Has(ctx, canonical)
			if err != nil {
				visitErr = fmt.Errorf("check ledger: %w", err)
				return false
			}
			if posted {
				return true
			}
		}

		a.URL = canonical
		out = append(out, a)
		return limit < 1 || len(out) < limit
	})
	if visitErr != nil {
		return nil, visitErr
	}
	if err != nil {
		if len(out) == 0 {
			return nil, err
		}
		logger.Warn("source listing stopped early", "error", err, "collected", len(out))
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PublishedAt.After(out[j].PublishedAt)
	})
	logger.Info("collected source articles", "listed", listed, "new", len(out), "limit", limit)
	return out, nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
