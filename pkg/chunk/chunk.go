// Package chunk groups translatable blocks into size-bounded requests.
package chunk

import (
	"strings"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

// Marker delimits segments inside a chunk. It survives translation because
// the service is told to copy it verbatim.
const Marker = "@@@SEGMENT@@@"

// Separator joins block markup inside a chunk.
const Separator = "\n\n" + Marker + "\n\n"

// DefaultBudget is the character budget used when none is configured.
const DefaultBudget = 2500

// Chunk is a contiguous run of blocks sent in one call.
type Chunk struct {
	ID int
	// Start and End are a half-open range into the slice passed to Split.
	Start  int
	End    int
	Blocks []article.Block
	Text   string
}

// Len returns the number of blocks in the chunk.
func (c Chunk) Len() int {
	return c.End - c.Start
}

// Chunker splits block lists by character budget.
type Chunker struct {
	budget int
}

// New creates a Chunker. A budget of zero or less puts every block in its
// own chunk.
func New(budget int) *Chunker {
	return &Chunker{budget: budget}
}

// Split partitions blocks into chunks in order. A block is added to the
// current chunk unless that would take the chunk's markup past the budget;
// separators do not count. A block larger than the budget forms a chunk of
// its own and is never split.
func (c *Chunker) Split(blocks []article.Block) []Chunk {
	var (
		chunks []Chunk
		start  int
		size   int
	)

	closeChunk := func(end int) {
		members := blocks[start:end]
		parts := make([]string, len(members))
		for i, b := range members {
			parts[i] = b.Markup
		}
		chunks = append(chunks, Chunk{
			ID:     len(chunks),
			Start:  start,
			End:    end,
			Blocks: members,
			Text:   strings.Join(parts, Separator),
		})
	}

	for i, b := range blocks {
		n := b.Len()
		if i > start && size+n > c.budget {
			closeChunk(i)
			start, size = i, 0
		}
		size += n
	}
	if start < len(blocks) {
		closeChunk(len(blocks))
	}
	return chunks
}

// Segments splits a translated chunk back into per-block segments. The
// exact separator is tried first so untouched whitespace survives; if the
// service reflowed the blank lines, the bare marker is used and each segment
// is trimmed.
func Segments(text string, want int) []string {
	if parts := strings.Split(text, Separator); len(parts) == want {
		return parts
	}
	parts := strings.Split(text, Marker)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
