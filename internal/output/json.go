package output

import (
	"bufio"
	"encoding/json"
	"io"

	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

// JSONWriter writes a single JSON document at Flush: the report if one was
// written, otherwise the lone result or an array of results.
type JSONWriter struct {
	w       *bufio.Writer
	pretty  bool
	indent  string
	results []pipeline.Result
	report  *pipeline.Report
}

// NewJSONWriter creates a JSON writer.
func NewJSONWriter(w io.Writer, pretty bool, indent string) *JSONWriter {
	return &JSONWriter{
		w:      bufio.NewWriter(w),
		pretty: pretty,
		indent: indent,
	}
}

// WriteResult buffers a result.
func (w *JSONWriter) WriteResult(res pipeline.Result) error {
	w.results = append(w.results, res)
	return nil
}

// WriteReport buffers the report; it replaces any buffered results.
func (w *JSONWriter) WriteReport(r *pipeline.Report) error {
	w.report = r
	return nil
}

// Flush writes the buffered document.
func (w *JSONWriter) Flush() error {
	var doc any
	switch {
	case w.report != nil:
		doc = w.report
	case len(w.results) == 1:
		doc = w.results[0]
	case len(w.results) > 1:
		doc = w.results
	default:
		return w.w.Flush()
	}

	var output []byte
	var err error
	if w.pretty {
		output, err = json.MarshalIndent(doc, "", w.indent)
	} else {
		output, err = json.Marshal(doc)
	}
	if err != nil {
		return err
	}

	if _, err := w.w.Write(output); err != nil {
		return err
	}
	if _, err := w.w.WriteString("\n"); err != nil {
		return err
	}
	w.report, w.results = nil, nil
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONWriter) Close() error {
	return w.Flush()
}

// JSONLWriter writes one JSON line per result as it arrives. A report adds
// a final summary line.
type JSONLWriter struct {
	w   *bufio.Writer
	enc *json.Encoder
}

// NewJSONLWriter creates a JSONL writer.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	bw := bufio.NewWriter(w)
	return &JSONLWriter{w: bw, enc: json.NewEncoder(bw)}
}

// WriteResult writes res as one line.
func (w *JSONLWriter) WriteResult(res pipeline.Result) error {
	if err := w.enc.Encode(res); err != nil {
		return err
	}
	return w.w.Flush()
}

// WriteReport writes every result and then the summary.
func (w *JSONLWriter) WriteReport(r *pipeline.Report) error {
	for _, res := range r.Results {
		if err := w.enc.Encode(res); err != nil {
			return err
		}
	}
	if err := w.enc.Encode(Summarize(r)); err != nil {
		return err
	}
	return w.w.Flush()
}

// Flush flushes the buffer.
func (w *JSONLWriter) Flush() error {
	return w.w.Flush()
}

// Close flushes the writer.
func (w *JSONLWriter) Close() error {
	return w.Flush()
}
