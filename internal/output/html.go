package output

import (
	"bufio"
	"fmt"
	"html"
	"io"

	"github.com/yosssi/gohtml"

	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

// HTMLWriter writes each translated post as it would be published, headed
// by a comment naming the source. Results without an article are written
// as the comment alone.
type HTMLWriter struct {
	w      *bufio.Writer
	pretty bool
}

// NewHTMLWriter creates an HTML writer. pretty reindents the markup.
func NewHTMLWriter(w io.Writer, pretty bool) *HTMLWriter {
	return &HTMLWriter{w: bufio.NewWriter(w), pretty: pretty}
}

// WriteResult writes one post.
func (w *HTMLWriter) WriteResult(res pipeline.Result) error {
	head := fmt.Sprintf("<!-- %s: %s", res.Outcome, res.URL)
	if res.Error != "" {
		head += " (" + res.Error + ")"
	}
	if _, err := w.w.WriteString(head + " -->\n"); err != nil {
		return err
	}
	if res.Article != nil {
		body := "<h1>" + html.EscapeString(res.Article.Title) + "</h1>\n" + res.Article.BodyHTML
		if w.pretty {
			body = gohtml.Format(body)
		}
		if _, err := w.w.WriteString(body + "\n\n"); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// WriteReport writes every result in order.
func (w *HTMLWriter) WriteReport(r *pipeline.Report) error {
	for _, res := range r.Results {
		if err := w.WriteResult(res); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the buffer.
func (w *HTMLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *HTMLWriter) Close() error {
	return w.Flush()
}
