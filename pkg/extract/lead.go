package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// featuredImage resolves the page's lead image: og:image, then twitter:image,
// then the first image in the body.
func featuredImage(doc *goquery.Document, body *goquery.Selection, pageURL string) string {
	candidates := []string{
		attr(doc.Find(`meta[property="og:image"]`), "content"),
		attr(doc.Find(`meta[name="twitter:image"]`), "content"),
		attr(doc.Find(`meta[property="twitter:image"]`), "content"),
	}
	if body != nil {
		img := body.Find("img").First()
		candidates = append(candidates, attr(img, "src"), attr(img, "data-src"))
	}

	for _, c := range candidates {
		if c == "" || strings.HasPrefix(c, "data:") {
			continue
		}
		if abs := resolve(pageURL, c); abs != "" {
			return abs
		}
	}
	return ""
}

func attr(s *goquery.Selection, name string) string {
	v, _ := s.First().Attr(name)
	return strings.TrimSpace(v)
}

func resolve(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if r.IsAbs() {
		return r.String()
	}
	b, err := url.Parse(base)
	if err != nil || !b.IsAbs() {
		return ""
	}
	return b.ResolveReference(r).String()
}
