// Package reassemble puts translated chunks back into a protected body.
//
// When a chunk comes back with a different number of segments than it was
// sent with, every block of that chunk keeps its original markup and a
// segment_count warning is recorded. Blocks are never dropped or shifted.
package reassemble

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/newsbridge/pkg/article"
	"github.com/jmylchreest/newsbridge/pkg/chunk"
	"github.com/jmylchreest/newsbridge/pkg/protect"
)

// Reassembler collects translated segments for one document.
type Reassembler struct {
	doc      *protect.Document
	segments map[int]string
	warnings []article.Warning
}

// New creates a Reassembler for doc.
func New(doc *protect.Document) *Reassembler {
	return &Reassembler{doc: doc, segments: make(map[int]string)}
}

// Apply assigns the segments of a translated chunk to the chunk's blocks.
// It reports whether the segment count matched.
func (r *Reassembler) Apply(c chunk.Chunk, translated string) bool {
	segs := chunk.Segments(translated, c.Len())
	if len(segs) != c.Len() {
		r.warn(article.WarnSegmentCount, firstIndex(c),
			fmt.Sprintf("chunk %d returned %d segments for %d blocks; kept original text", c.ID, len(segs), c.Len()))
		return false
	}
	for i, b := range c.Blocks {
		r.segments[b.Index] = r.checkTokens(b, segs[i])
	}
	return true
}

// Set assigns a single translated segment to the block at index.
func (r *Reassembler) Set(b article.Block, translated string) {
	r.segments[b.Index] = r.checkTokens(b, translated)
}

// checkTokens makes sure every media token of the source block is present in
// its translation. Missing tokens are appended so the media is not lost.
func (r *Reassembler) checkTokens(b article.Block, seg string) string {
	for _, tok := range r.doc.MediaTokensIn(b.Markup) {
		switch n := strings.Count(seg, tok); {
		case n == 0:
			r.warn(article.WarnTokenMissing, b.Index, "placeholder "+tok+" missing from translation; appended")
			seg += tok
		case n > 1:
			r.warn(article.WarnTokenDuplicated, b.Index,
				fmt.Sprintf("placeholder %s repeated %d times; keeping the first", tok, n))
		}
	}
	return seg
}

// Body fills the document skeleton with the translated segments. Media
// tokens are left in place.
func (r *Reassembler) Body() string {
	return r.doc.Fill(r.segments)
}

// Restore replaces media tokens in body with their original markup. Tokens
// that went missing are appended at the end of the body.
func (r *Reassembler) Restore(body string) string {
	out, report := r.doc.RestoreMedia(body)
	for _, tok := range report.Duplicated {
		r.warn(article.WarnTokenDuplicated, -1, "placeholder "+tok+" repeated in body; keeping the first")
	}
	for _, tok := range report.Missing {
		r.warn(article.WarnTokenMissing, -1, "placeholder "+tok+" missing from body; appended")
		out += r.doc.Media[tok].Original
	}
	return out
}

// Warnings returns the warnings recorded so far.
func (r *Reassembler) Warnings() []article.Warning {
	return r.warnings
}

func (r *Reassembler) warn(kind article.WarningKind, pos int, msg string) {
	r.warnings = append(r.warnings, article.Warning{Kind: kind, Message: msg, Position: pos})
}

func firstIndex(c chunk.Chunk) int {
	if len(c.Blocks) == 0 {
		return -1
	}
	return c.Blocks[0].Index
}
