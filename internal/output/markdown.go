package output

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

// MarkdownWriter renders each translated post as Markdown, for reading a
// dry run in a terminal or pasting into a review thread.
type MarkdownWriter struct {
	w *bufio.Writer
}

// NewMarkdownWriter creates a Markdown writer.
func NewMarkdownWriter(w io.Writer) *MarkdownWriter {
	return &MarkdownWriter{w: bufio.NewWriter(w)}
}

// WriteResult writes one post. Results without an article become a
// single quoted status line.
func (w *MarkdownWriter) WriteResult(res pipeline.Result) error {
	status := fmt.Sprintf("> %s: <%s>", res.Outcome, res.URL)
	if res.Error != "" {
		status += " (" + res.Error + ")"
	}
	if res.Article == nil {
		_, err := w.w.WriteString(status + "\n\n")
		if err != nil {
			return err
		}
		return w.w.Flush()
	}

	body, err := md.ConvertString(res.Article.BodyHTML)
	if err != nil {
		return fmt.Errorf("convert %s: %w", res.URL, err)
	}
	var b strings.Builder
	b.WriteString("# " + res.Article.Title + "\n\n")
	b.WriteString(status + "\n\n")
	b.WriteString(collapseBlankLines(body))
	b.WriteString("\n\n---\n\n")
	if _, err := w.w.WriteString(b.String()); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteReport writes every result in order.
func (w *MarkdownWriter) WriteReport(r *pipeline.Report) error {
	for _, res := range r.Results {
		if err := w.WriteResult(res); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *MarkdownWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *MarkdownWriter) Close() error {
	return w.Flush()
}

// collapseBlankLines keeps at most one blank line between blocks.
func collapseBlankLines(s string) string {
	var out []string
	blank := false
	for _, line := range strings.Split(strings.TrimSpace(s), "\n") {
		if strings.TrimSpace(line) == "" {
			if blank {
				continue
			}
			blank = true
			out = append(out, "")
			continue
		}
		blank = false
		out = append(out, strings.TrimRight(line, " \t"))
	}
	return strings.Join(out, "\n")
}
