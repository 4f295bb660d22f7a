// Package extract isolates an article body from a raw HTML page and removes
// the site chrome around it: share widgets, related-article sections,
// metadata boxes, tracking scripts and foreign embeds.
package extract

// Config defines the selectors and deny/allow lists used by the Extractor.
// Class names and links match by case-insensitive substring. Headings match
// a denied title by equality or prefix after case, space and punctuation
// folding.
type Config struct {
	// BodySelectors are tried in order; the first match is the body container.
	BodySelectors []string `mapstructure:"body_selectors" json:"body_selectors"`

	// StripTags are removed unconditionally.
	StripTags []string `mapstructure:"strip_tags" json:"strip_tags"`

	// IframeAllowHosts lists video-embed hosts whose iframes survive.
	// Subdomains match.
	IframeAllowHosts []string `mapstructure:"iframe_allow_hosts" json:"iframe_allow_hosts"`

	// NoiseClasses are substrings matched against each class token.
	NoiseClasses []string `mapstructure:"noise_classes" json:"noise_classes"`

	// DeniedHeadings are full section titles. A matching heading is removed
	// with every following sibling up to the next heading.
	DeniedHeadings []string `mapstructure:"denied_headings" json:"denied_headings"`

	// DeniedLinks are substrings matched against anchor hrefs.
	DeniedLinks []string `mapstructure:"denied_links" json:"denied_links"`

	// LeadImageClasses identify the lead image wrapper at the top of the body.
	LeadImageClasses []string `mapstructure:"lead_image_classes" json:"lead_image_classes"`

	// ReadabilityFallback runs go-readability when no selector matches.
	ReadabilityFallback bool `mapstructure:"readability_fallback" json:"readability_fallback"`
}

// DefaultConfig returns the settings tuned for WordPress news themes.
func DefaultConfig() Config {
	return Config{
		BodySelectors: []string{
			"div.entry-content",
			"div.post-content",
			"div.article-content",
			"div.single-content",
			"article",
		},
		StripTags: []string{
			"script", "style", "noscript", "embed", "object",
			"form", "nav", "button", "input", "select", "textarea",
			"link", "meta",
		},
		IframeAllowHosts: []string{
			"youtube.com",
			"youtube-nocookie.com",
			"youtu.be",
			"player.vimeo.com",
			"vimeo.com",
		},
		NoiseClasses: []string{
			"share", "sns", "social", "sidebar", "related", "advert",
			"adsbygoogle", "banner", "post-meta", "entry-meta",
			"entry-footer", "post-tags", "tag-list", "author-box",
			"breadcrumb", "pagination", "comment", "navigation",
			"wp-block-buttons", "toc_container",
		},
		DeniedHeadings: []string{
			"関連記事", "関連リンク", "おすすめ記事", "人気記事",
			"この記事をシェア", "フォローする", "SNSでフォロー",
			"related articles", "related posts", "follow us", "share this",
		},
		DeniedLinks: []string{
			"twitter.com/share", "twitter.com/intent", "x.com/intent",
			"facebook.com/sharer", "b.hatena.ne.jp", "line.me/r",
			"social-plugins.line.me", "getpocket.com/edit",
			"/tag/", "/category/", "/author/",
		},
		LeadImageClasses: []string{
			"post-thumbnail", "eyecatch", "featured-image", "wp-post-image",
			"entry-thumbnail",
		},
	}
}
