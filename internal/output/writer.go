// Package output renders pipeline results and run reports.
package output

import (
	"fmt"
	"io"
	"time"

	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

// Format represents output format types.
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
	// FormatHTML writes the composed post bodies, for previewing dry runs.
	FormatHTML Format = "html"
	// FormatMarkdown writes the post bodies converted to Markdown.
	FormatMarkdown Format = "markdown"
)

// Formats lists the supported formats.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONL, FormatYAML, FormatHTML, FormatMarkdown}
}

// Writer renders results.
type Writer interface {
	// WriteResult outputs one article result.
	WriteResult(res pipeline.Result) error

	// WriteReport outputs a batch report with its results.
	WriteReport(r *pipeline.Report) error

	// Flush ensures all data is written.
	Flush() error

	// Close releases resources.
	Close() error
}

// WriterOption configures a writer.
type WriterOption func(*writerConfig)

type writerConfig struct {
	pretty bool
	indent string
}

// WithPretty enables pretty-printing.
func WithPretty(enabled bool) WriterOption {
	return func(c *writerConfig) {
		c.pretty = enabled
	}
}

// WithIndent sets the indentation string.
func WithIndent(indent string) WriterOption {
	return func(c *writerConfig) {
		c.indent = indent
	}
}

// NewWriter creates a writer for the specified format.
func NewWriter(w io.Writer, format Format, opts ...WriterOption) (Writer, error) {
	cfg := &writerConfig{
		pretty: true,
		indent: "  ",
	}
	for _, opt := range opts {
		opt(cfg)
	}

	switch format {
	case FormatJSON:
		return NewJSONWriter(w, cfg.pretty, cfg.indent), nil
	case FormatJSONL:
		return NewJSONLWriter(w), nil
	case FormatYAML:
		return NewYAMLWriter(w), nil
	case FormatHTML:
		return NewHTMLWriter(w, cfg.pretty), nil
	case FormatMarkdown:
		return NewMarkdownWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}

// Summary is a report without its per-article results.
type Summary struct {
	RunID     string                   `json:"run_id" yaml:"run_id"`
	StartedAt time.Time                `json:"started_at" yaml:"started_at"`
	Duration  time.Duration            `json:"duration" yaml:"duration"`
	Collected int                      `json:"collected" yaml:"collected"`
	Throttled bool                     `json:"throttled" yaml:"throttled"`
	Counts    map[pipeline.Outcome]int `json:"counts" yaml:"counts"`
}

// Summarize drops the results from r.
func Summarize(r *pipeline.Report) Summary {
	return Summary{
		RunID:     r.RunID,
		StartedAt: r.StartedAt,
		Duration:  r.Duration,
		Collected: r.Collected,
		Throttled: r.Throttled,
		Counts:    r.Counts,
	}
}
