package output

import (
	"bufio"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

// YAMLWriter writes a YAML document at Flush, chosen like JSONWriter's.
type YAMLWriter struct {
	w       *bufio.Writer
	results []pipeline.Result
	report  *pipeline.Report
}

// NewYAMLWriter creates a YAML writer.
func NewYAMLWriter(w io.Writer) *YAMLWriter {
	return &YAMLWriter{w: bufio.NewWriter(w)}
}

// WriteResult buffers a result.
func (w *YAMLWriter) WriteResult(res pipeline.Result) error {
	w.results = append(w.results, res)
	return nil
}

// WriteReport buffers the report.
func (w *YAMLWriter) WriteReport(r *pipeline.Report) error {
	w.report = r
	return nil
}

// Flush writes the buffered document as YAML.
func (w *YAMLWriter) Flush() error {
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

	encoder := yaml.NewEncoder(w.w)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return err
	}
	if err := encoder.Close(); err != nil {
		return err
	}
	w.report, w.results = nil, nil
	return w.w.Flush()
}

// Close flushes the writer.
func (w *YAMLWriter) Close() error {
	return w.Flush()
}
