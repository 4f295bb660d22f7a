package extract

import (
	"fmt"
	"net/url"
	"strings"

	readability "codeberg.org/readeck/go-readability/v2"
	"github.com/PuerkitoBio/goquery"
)

// readabilityBody finds the main content with go-readability for pages whose
// theme matches none of the configured selectors.
func readabilityBody(rawHTML, pageURL string) (*goquery.Selection, error) {
	var base *url.URL
	if pageURL != "" {
		if u, err := url.Parse(pageURL); err == nil {
			base = u
		}
	}

	parser := readability.NewParser()
	parser.KeepClasses = true

	art, err := parser.Parse(strings.NewReader(rawHTML), base)
	if err != nil {
		return nil, fmt.Errorf("%w: readability: %v", ErrNoBody, err)
	}
	if art.Node == nil {
		return nil, ErrNoBody
	}

	return goquery.NewDocumentFromNode(art.Node).Selection, nil
}
