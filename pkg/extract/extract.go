package extract

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/newsbridge/internal/logger"
)

// ErrNoBody is returned when no body container can be located.
var ErrNoBody = errors.New("no article body container found")

const (
	headingSelector = "h1, h2, h3, h4, h5, h6"
	mediaSelector   = "img, picture, video, audio, iframe"
	emptySelector   = "p, div, section, span, li, ul, ol, dl, dt, dd, blockquote, figure, figcaption, strong, em, b, i"
)

// Result is an extracted article body.
type Result struct {
	// Body is the container; its children are the article body.
	Body *goquery.Selection
	// Doc is the full parsed page, kept for metadata lookups.
	Doc *goquery.Document
	// Selector is the body selector that matched, or "readability".
	Selector string
	// FeaturedImage is the absolute URL of the page's lead image, if any.
	FeaturedImage string
	// Title is the page title from og:title or <title>.
	Title string
	Stats *Stats
}

// HTML renders the inner markup of the body container.
func (r *Result) HTML() (string, error) {
	return r.Body.Html()
}

// Extractor locates and cleans article bodies.
type Extractor struct {
	cfg Config
}

// New creates an Extractor. Empty lists in cfg fall back to DefaultConfig.
func New(cfg Config) *Extractor {
	def := DefaultConfig()
	if len(cfg.BodySelectors) == 0 {
		cfg.BodySelectors = def.BodySelectors
	}
	if len(cfg.StripTags) == 0 {
		cfg.StripTags = def.StripTags
	}
	if cfg.IframeAllowHosts == nil {
		cfg.IframeAllowHosts = def.IframeAllowHosts
	}
	if cfg.NoiseClasses == nil {
		cfg.NoiseClasses = def.NoiseClasses
	}
	if cfg.DeniedHeadings == nil {
		cfg.DeniedHeadings = def.DeniedHeadings
	}
	if cfg.DeniedLinks == nil {
		cfg.DeniedLinks = def.DeniedLinks
	}
	if cfg.LeadImageClasses == nil {
		cfg.LeadImageClasses = def.LeadImageClasses
	}
	return &Extractor{cfg: cfg}
}

// Extract parses rawHTML, isolates the article body and cleans it in place.
// pageURL resolves relative image references.
func (e *Extractor) Extract(rawHTML, pageURL string) (*Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	result := &Result{
		Doc:   doc,
		Stats: newStats(),
		Title: pageTitle(doc),
	}
	result.Stats.InputBytes = len(rawHTML)

	for _, sel := range e.cfg.BodySelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			result.Body = found
			result.Selector = sel
			break
		}
	}

	if result.Body == nil {
		if !e.cfg.ReadabilityFallback {
			return nil, ErrNoBody
		}
		body, err := readabilityBody(rawHTML, pageURL)
		if err != nil {
			return nil, err
		}
		result.Body = body
		result.Selector = "readability"
	}

	// Resolved before cleaning so the lead image is still present.
	result.FeaturedImage = featuredImage(doc, result.Body, pageURL)

	e.clean(result.Body, result.Stats)

	if !hasContent(result.Body) {
		return nil, fmt.Errorf("%w: body empty after cleaning", ErrNoBody)
	}

	out, err := result.Body.Html()
	if err == nil {
		result.Stats.OutputBytes = len(out)
	}

	logger.Debug("article body extracted",
		"url", pageURL,
		"selector", result.Selector,
		"stats", result.Stats.String())

	return result, nil
}

// clean applies the removal passes in order: large structures first, then
// links, then whatever was left empty.
func (e *Extractor) clean(body *goquery.Selection, stats *Stats) {
	if len(e.cfg.StripTags) > 0 {
		body.Find(strings.Join(e.cfg.StripTags, ", ")).Each(func(_ int, s *goquery.Selection) {
			stats.record(goquery.NodeName(s))
			s.Remove()
		})
	}

	body.Find("iframe").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if !hostAllowed(src, e.cfg.IframeAllowHosts) {
			stats.record("iframe")
			s.Remove()
		}
	})

	if len(e.cfg.NoiseClasses) > 0 {
		body.Find("[class]").Each(func(_ int, s *goquery.Selection) {
			if e.isNoise(s) {
				stats.record("noise_class")
				s.Remove()
			}
		})
	}

	if len(e.cfg.DeniedHeadings) > 0 {
		body.Find(headingSelector).Each(func(_ int, s *goquery.Selection) {
			if !headingDenied(visibleText(s), e.cfg.DeniedHeadings) {
				return
			}
			trailing := s.NextUntil(headingSelector)
			for range trailing.Nodes {
				stats.record("denied_section")
			}
			trailing.Remove()
			stats.record("denied_heading")
			s.Remove()
		})
	}

	body.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		switch {
		case href != "" && containsAny(strings.ToLower(href), e.cfg.DeniedLinks):
			stats.record("denied_link")
			s.Remove()
		case visibleText(s) == "" && s.Find(mediaSelector).Length() == 0:
			stats.record("empty_link")
			s.Remove()
		}
	})

	e.removeLeadImage(body, stats)
	removeEmpty(body, stats)
}

func (e *Extractor) isNoise(s *goquery.Selection) bool {
	class, _ := s.Attr("class")
	for _, token := range strings.Fields(strings.ToLower(class)) {
		if containsAny(token, e.cfg.NoiseClasses) {
			return true
		}
	}
	return false
}

// removeLeadImage drops the lead image wrapper at the top of the body. A
// configured class wins; otherwise a first child holding nothing but a single
// image is treated as the lead image.
func (e *Extractor) removeLeadImage(body *goquery.Selection, stats *Stats) {
	first := body.Children().First()
	if first.Length() == 0 {
		return
	}

	if len(e.cfg.LeadImageClasses) > 0 {
		sels := make([]string, 0, len(e.cfg.LeadImageClasses))
		for _, c := range e.cfg.LeadImageClasses {
			sels = append(sels, "."+c)
		}
		joined := strings.Join(sels, ", ")
		if first.Is(joined) || (first.Find(joined).Length() > 0 && visibleText(first) == "") {
			stats.record("lead_image")
			first.Remove()
			return
		}
	}

	switch goquery.NodeName(first) {
	case "img", "figure", "picture":
		stats.record("lead_image")
		first.Remove()
	case "p", "div", "a":
		if visibleText(first) == "" && first.Find("img").Length() == 1 {
			stats.record("lead_image")
			first.Remove()
		}
	}
}

// removeEmpty removes block elements with no visible text and no media,
// repeating while removals expose new empty parents.
func removeEmpty(body *goquery.Selection, stats *Stats) {
	for pass := 0; pass < 4; pass++ {
		removed := 0
		body.Find(emptySelector).Each(func(_ int, s *goquery.Selection) {
			if visibleText(s) != "" || s.Is(mediaSelector) || s.Find(mediaSelector).Length() > 0 {
				return
			}
			stats.record("empty_block")
			s.Remove()
			removed++
		})
		if removed == 0 {
			return
		}
	}
}

func hasContent(body *goquery.Selection) bool {
	return visibleText(body) != "" || body.Find(mediaSelector).Length() > 0
}

func visibleText(s *goquery.Selection) string {
	return strings.TrimFunc(s.Text(), unicode.IsSpace)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// headingDenied reports whether a heading is one of the denied section
// titles. Both sides are folded with normalizeHeading; a heading matches an
// entry it equals or starts with, so "関連記事一覧" is denied by "関連記事"
// but "動画シェアサービスの市場動向" is not denied by "この記事をシェア".
func headingDenied(heading string, denied []string) bool {
	h := normalizeHeading(heading)
	if h == "" {
		return false
	}
	for _, d := range denied {
		if d := normalizeHeading(d); d != "" && strings.HasPrefix(h, d) {
			return true
		}
	}
	return false
}

// normalizeHeading lowercases s and drops spaces, punctuation and symbols.
func normalizeHeading(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsPunct(r) || unicode.IsSymbol(r) {
			return -1
		}
		return unicode.ToLower(r)
	}, s)
}

func hostAllowed(src string, allow []string) bool {
	if strings.HasPrefix(src, "//") {
		src = "https:" + src
	}
	u, err := url.Parse(src)
	if err != nil || u.Host == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, a := range allow {
		a = strings.ToLower(a)
		if host == a || strings.HasSuffix(host, "."+a) {
			return true
		}
	}
	return false
}

func pageTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}
