// Package protect shields the structure of an article body from free-text
// translation.
//
// Media elements are swapped for opaque tokens and every translatable block
// has its inner markup lifted out into an ordered block list, leaving a
// skeleton that still holds every tag and attribute of the original body.
// Filling the skeleton with the block markup and restoring the media tokens
// reproduces the original body byte for byte.
package protect

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"golang.org/x/net/html"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

// ErrEmptyBody is returned when the selection holds no node.
var ErrEmptyBody = errors.New("empty body selection")

// MediaSelector lists elements that are protected verbatim.
const MediaSelector = "img, picture, video, audio, iframe, svg, pre"

var (
	blockTags = map[string]bool{
		"address": true, "article": true, "aside": true, "blockquote": true,
		"caption": true, "dd": true, "details": true, "div": true, "dl": true,
		"dt": true, "figcaption": true, "figure": true, "footer": true,
		"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
		"header": true, "hr": true, "li": true, "main": true, "ol": true,
		"p": true, "section": true, "summary": true, "table": true,
		"tbody": true, "td": true, "tfoot": true, "th": true, "thead": true,
		"tr": true, "ul": true,
	}

	// textTags hold translatable text directly.
	textTags = map[string]article.Kind{
		"p": article.KindParagraph, "dd": article.KindParagraph,
		"dt": article.KindParagraph, "td": article.KindParagraph,
		"th": article.KindParagraph, "caption": article.KindParagraph,
		"figcaption": article.KindParagraph, "address": article.KindParagraph,
		"summary": article.KindParagraph, "li": article.KindListItem,
		"blockquote": article.KindQuote, "h1": article.KindHeading,
		"h2": article.KindHeading, "h3": article.KindHeading,
		"h4": article.KindHeading, "h5": article.KindHeading,
		"h6": article.KindHeading,
	}
)

// Protector produces protected documents. Token ids embed a per-instance
// nonce so they are unique to a run.
type Protector struct {
	nonce string
}

// New creates a Protector with a random nonce.
func New() *Protector {
	return NewWithNonce(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

// NewWithNonce creates a Protector with a fixed nonce.
func NewWithNonce(nonce string) *Protector {
	return &Protector{nonce: nonce}
}

// Protect rewrites body in place and returns the protected document.
func (p *Protector) Protect(body *goquery.Selection) (*Document, error) {
	if body == nil || body.Length() == 0 {
		return nil, ErrEmptyBody
	}
	root := body.Get(0)

	d := &Document{
		Media:   make(map[string]article.Token),
		nonce:   p.nonce,
		tokenRe: regexp.MustCompile(`\{\{(?:MEDIA|SLOT)_` + regexp.QuoteMeta(p.nonce) + `_\d+\}\}`),
	}

	var mediaErr error
	body.Find(MediaSelector).Each(func(_ int, s *goquery.Selection) {
		// Nested media go with their outermost ancestor.
		if mediaErr != nil || !attachedUnder(s.Get(0), root) {
			return
		}
		markup, err := goquery.OuterHtml(s)
		if err != nil {
			mediaErr = fmt.Errorf("render media: %w", err)
			return
		}
		tok := d.token("MEDIA", len(d.Media)+1)
		d.Media[tok] = article.Token{ID: tok, Kind: article.KindMedia, Original: markup}
		d.order = append(d.order, tok)
		s.ReplaceWithNodes(&html.Node{Type: html.TextNode, Data: tok})
	})
	if mediaErr != nil {
		return nil, mediaErr
	}

	if err := d.walk(root, article.KindParagraph); err != nil {
		return nil, err
	}

	skeleton, err := body.Html()
	if err != nil {
		return nil, fmt.Errorf("render skeleton: %w", err)
	}
	d.Skeleton = skeleton
	return d, nil
}

func (d *Document) token(kind string, n int) string {
	return fmt.Sprintf("{{%s_%s_%03d}}", kind, d.nonce, n)
}

// walk lifts translatable blocks out of n in document order. Runs of inline
// content directly inside a container become blocks of runKind.
func (d *Document) walk(n *html.Node, runKind article.Kind) error {
	var run []*html.Node
	flush := func() error {
		err := d.liftRun(run, runKind)
		run = nil
		return err
	}

	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		switch {
		case c.Type == html.TextNode && d.isMediaToken(c.Data):
			if err := flush(); err != nil {
				return err
			}
			d.addMedia(c.Data)
		case c.Type == html.ElementNode && blockTags[c.Data]:
			if err := flush(); err != nil {
				return err
			}
			if err := d.block(c); err != nil {
				return err
			}
		case c.Type == html.TextNode || c.Type == html.ElementNode:
			run = append(run, c)
		default:
			// Comments and doctype end a run and stay in the skeleton.
			if err := flush(); err != nil {
				return err
			}
		}
		c = next
	}
	return flush()
}

func (d *Document) block(n *html.Node) error {
	kind, isText := textTags[n.Data]
	if !isText || hasBlockDescendant(n) {
		runKind := article.KindParagraph
		if isText && kind != article.KindHeading {
			runKind = kind
		}
		return d.walk(n, runKind)
	}

	if !d.hasVisibleText(n) {
		d.addMediaIn(n)
		return nil
	}

	inner, err := renderChildren(n)
	if err != nil {
		return err
	}
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}

	b := d.addText(kind, n.Data, inner)
	if kind == article.KindHeading {
		b.Level = int(n.Data[1] - '0')
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: b.Slot})
	return nil
}

// liftRun replaces a run of inline siblings with one slot. Whitespace at the
// edges of the run stays in the skeleton.
func (d *Document) liftRun(run []*html.Node, kind article.Kind) error {
	for len(run) > 0 && isBlankText(run[0]) {
		run = run[1:]
	}
	for len(run) > 0 && isBlankText(run[len(run)-1]) {
		run = run[:len(run)-1]
	}
	if len(run) == 0 {
		return nil
	}

	visible := false
	for _, n := range run {
		if d.hasVisibleText(n) {
			visible = true
			break
		}
	}
	if !visible {
		for _, n := range run {
			d.addMediaIn(n)
		}
		return nil
	}

	var buf bytes.Buffer
	for _, n := range run {
		if err := html.Render(&buf, n); err != nil {
			return fmt.Errorf("render run: %w", err)
		}
	}

	b := d.addText(kind, "", buf.String())
	parent := run[0].Parent
	parent.InsertBefore(&html.Node{Type: html.TextNode, Data: b.Slot}, run[0])
	for _, n := range run {
		parent.RemoveChild(n)
	}
	return nil
}

func (d *Document) addText(kind article.Kind, tag, inner string) *article.Block {
	d.slots++
	d.Blocks = append(d.Blocks, article.Block{
		Index:  len(d.Blocks),
		Kind:   kind,
		Tag:    tag,
		Markup: inner,
		Slot:   d.token("SLOT", d.slots),
	})
	return &d.Blocks[len(d.Blocks)-1]
}

func (d *Document) addMedia(tok string) {
	d.Blocks = append(d.Blocks, article.Block{
		Index:  len(d.Blocks),
		Kind:   article.KindMedia,
		Markup: d.Media[tok].Original,
		Slot:   tok,
	})
}

// addMediaIn records every media token found below n as its own block.
func (d *Document) addMediaIn(n *html.Node) {
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.TextNode {
			for _, tok := range d.tokenRe.FindAllString(n.Data, -1) {
				if _, ok := d.Media[tok]; ok {
					d.addMedia(tok)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
}

func (d *Document) isMediaToken(s string) bool {
	_, ok := d.Media[s]
	return ok
}

// hasVisibleText reports whether n holds text other than tokens and spaces.
func (d *Document) hasVisibleText(n *html.Node) bool {
	var sb strings.Builder
	collectText(n, &sb)
	text := d.tokenRe.ReplaceAllString(sb.String(), "")
	return strings.TrimFunc(text, unicode.IsSpace) != ""
}

func collectText(n *html.Node, sb *strings.Builder) {
	if n.Type == html.TextNode {
		sb.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, sb)
	}
}

func hasBlockDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (blockTags[c.Data] || hasBlockDescendant(c)) {
			return true
		}
	}
	return false
}

func isBlankText(n *html.Node) bool {
	return n.Type == html.TextNode && strings.TrimFunc(n.Data, unicode.IsSpace) == ""
}

func attachedUnder(n, root *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

func renderChildren(n *html.Node) (string, error) {
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render block: %w", err)
		}
	}
	return buf.String(), nil
}
