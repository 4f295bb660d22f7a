package protect

import (
	"regexp"
	"strings"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

// Document is a protected article body.
type Document struct {
	// Skeleton is the body markup with every text block replaced by its slot
	// and every media element replaced by its token.
	Skeleton string
	// Blocks are the body blocks in reading order, media included.
	Blocks []article.Block
	// Media maps media tokens to their verbatim markup.
	Media map[string]article.Token

	nonce   string
	slots   int
	order   []string // media tokens in creation order
	tokenRe *regexp.Regexp
}

// TextBlocks returns the translatable blocks in order.
func (d *Document) TextBlocks() []article.Block {
	return d.filter(func(b article.Block) bool { return b.Translatable() })
}

// Headings returns the heading blocks in order.
func (d *Document) Headings() []article.Block {
	return d.filter(func(b article.Block) bool { return b.Kind == article.KindHeading })
}

// BodyBlocks returns paragraphs, list items and quotes in order.
func (d *Document) BodyBlocks() []article.Block {
	return d.filter(func(b article.Block) bool {
		return b.Translatable() && b.Kind != article.KindHeading
	})
}

func (d *Document) filter(keep func(article.Block) bool) []article.Block {
	var out []article.Block
	for _, b := range d.Blocks {
		if keep(b) {
			out = append(out, b)
		}
	}
	return out
}

// MediaTokensIn returns the known media tokens found in s, in order of
// appearance, duplicates included.
func (d *Document) MediaTokensIn(s string) []string {
	var out []string
	for _, tok := range d.tokenRe.FindAllString(s, -1) {
		if _, ok := d.Media[tok]; ok {
			out = append(out, tok)
		}
	}
	return out
}

// Fill substitutes every slot in the skeleton. segments is keyed by block
// index; blocks without an entry get their original markup back. Media
// tokens are left in place.
func (d *Document) Fill(segments map[int]string) string {
	pairs := make([]string, 0, 2*len(d.Blocks))
	for _, b := range d.Blocks {
		if !b.Translatable() {
			continue
		}
		seg, ok := segments[b.Index]
		if !ok {
			seg = b.Markup
		}
		pairs = append(pairs, b.Slot, seg)
	}
	return strings.NewReplacer(pairs...).Replace(d.Skeleton)
}

// RestoreReport lists tokens that did not come back exactly once.
type RestoreReport struct {
	Missing    []string
	Duplicated []string
}

// OK reports whether every media token was restored exactly once.
func (r RestoreReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Duplicated) == 0
}

// RestoreMedia substitutes media tokens in s with their original markup.
// A token occurring more than once is restored at its first occurrence and
// the extra copies are dropped.
func (d *Document) RestoreMedia(s string) (string, RestoreReport) {
	var report RestoreReport
	for _, tok := range d.order {
		switch n := strings.Count(s, tok); {
		case n == 0:
			report.Missing = append(report.Missing, tok)
			continue
		case n > 1:
			report.Duplicated = append(report.Duplicated, tok)
		}
		s = strings.Replace(s, tok, d.Media[tok].Original, 1)
		s = strings.ReplaceAll(s, tok, "")
	}
	return s, report
}

// Restore fills the skeleton and restores media in one step.
func (d *Document) Restore(segments map[int]string) (string, RestoreReport) {
	return d.RestoreMedia(d.Fill(segments))
}
