package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/newsbridge/pkg/article"
	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

func published(url string) pipeline.Result {
	return pipeline.Result{
		URL:         url,
		SourceTitle: "ソニー新製品",
		Outcome:     pipeline.OutcomePublished,
		Stage:       pipeline.StagePublish,
		PostURL:     "https://prodg.kr/?p=1",
		Article: &article.TranslatedArticle{
			Title:    "소니 신제품",
			BodyHTML: `<div><p>본문</p><figure><img src="https://jp.pronews.com/a.jpg"></figure></div>`,
		},
		Duration: 2 * time.Second,
	}
}

func failed(url string) pipeline.Result {
	return pipeline.Result{
		URL:     url,
		Outcome: pipeline.OutcomeFailed,
		Stage:   pipeline.StageFetch,
		Error:   "unexpected status: 404",
	}
}

func report() *pipeline.Report {
	return &pipeline.Report{
		RunID:     "run-1",
		StartedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		Collected: 2,
		Counts:    map[pipeline.Outcome]int{pipeline.OutcomePublished: 1, pipeline.OutcomeFailed: 1},
		Results:   []pipeline.Result{published("https://jp.pronews.com/a.html"), failed("https://jp.pronews.com/b.html")},
	}
}

// --- NewWriter Factory Tests ---

func TestNewWriter(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatJSON, "*output.JSONWriter"},
		{FormatJSONL, "*output.JSONLWriter"},
		{FormatYAML, "*output.YAMLWriter"},
		{FormatHTML, "*output.HTMLWriter"},
		{FormatMarkdown, "*output.MarkdownWriter"},
	}
	for _, tt := range tests {
		w, err := NewWriter(&bytes.Buffer{}, tt.format)
		if err != nil {
			t.Fatalf("NewWriter(%s) error = %v", tt.format, err)
		}
		if got := fmt.Sprintf("%T", w); got != tt.want {
			t.Errorf("NewWriter(%s) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestNewWriter_UnsupportedFormat(t *testing.T) {
	_, err := NewWriter(&bytes.Buffer{}, Format("csv"))
	if err == nil {
		t.Fatal("expected error for unsupported format")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected error containing 'unsupported', got %v", err)
	}
}

// --- JSONWriter Tests ---

func TestJSONWriter_SingleResult(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")

	if err := w.WriteResult(published("https://jp.pronews.com/a.html")); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got["outcome"] != "published" || got["post_url"] != "https://prodg.kr/?p=1" {
		t.Errorf("unexpected result: %v", got)
	}
	if _, ok := got["Err"]; ok {
		t.Error("Err must not be serialised")
	}
}

func TestJSONWriter_MultipleResults_OutputsArray(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, false, "")

	_ = w.WriteResult(published("a"))
	_ = w.WriteResult(failed("b"))
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if len(got) != 2 || got[1]["error"] != "unexpected status: 404" {
		t.Errorf("unexpected result: %v", got)
	}
	if strings.Count(buf.String(), "\n") != 1 {
		t.Errorf("compact output should be one line, got %q", buf.String())
	}
}

func TestJSONWriter_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "\t")

	if err := w.WriteReport(report()); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	var got pipeline.Report
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.RunID != "run-1" || len(got.Results) != 2 || got.Counts[pipeline.OutcomeFailed] != 1 {
		t.Errorf("unexpected report: %+v", got)
	}
	if !strings.Contains(buf.String(), "\n\t\"run_id\"") {
		t.Errorf("expected tab indent, got %q", buf.String())
	}
}

func TestJSONWriter_Empty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONWriter(buf, true, "  ")
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

// --- JSONLWriter Tests ---

func TestJSONLWriter_ResultsStream(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := w.WriteResult(published("a")); err != nil {
		t.Fatalf("WriteResult() error = %v", err)
	}
	if !strings.HasSuffix(buf.String(), "\n") {
		t.Fatal("result should be written before Flush")
	}
	_ = w.WriteResult(failed("b"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	for i, line := range lines {
		var r pipeline.Result
		if err := json.Unmarshal([]byte(line), &r); err != nil {
			t.Errorf("line %d is not valid JSON: %v", i, err)
		}
	}
}

func TestJSONLWriter_ReportEndsWithSummary(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewJSONLWriter(buf)

	if err := w.WriteReport(report()); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	var s Summary
	if err := json.Unmarshal([]byte(lines[2]), &s); err != nil {
		t.Fatalf("summary line: %v", err)
	}
	if s.RunID != "run-1" || s.Collected != 2 {
		t.Errorf("unexpected summary: %+v", s)
	}
	if strings.Contains(lines[2], "results") {
		t.Error("summary must not repeat the results")
	}
}

// --- YAMLWriter Tests ---

func TestYAMLWriter_Report(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	_ = w.WriteReport(report())
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got["run_id"] != "run-1" {
		t.Errorf("unexpected report: %v", got)
	}
	results, ok := got["results"].([]any)
	if !ok || len(results) != 2 {
		t.Fatalf("results = %v", got["results"])
	}
}

func TestYAMLWriter_SingleResult(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewYAMLWriter(buf)

	_ = w.WriteResult(failed("https://jp.pronews.com/b.html"))
	_ = w.Flush()

	var got pipeline.Result
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("failed to unmarshal output: %v", err)
	}
	if got.Outcome != pipeline.OutcomeFailed || got.Stage != pipeline.StageFetch {
		t.Errorf("unexpected result: %+v", got)
	}
}

// --- HTMLWriter Tests ---

func TestHTMLWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewHTMLWriter(buf, false)

	if err := w.WriteReport(report()); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"<!-- published: https://jp.pronews.com/a.html -->",
		"<h1>소니 신제품</h1>",
		`<img src="https://jp.pronews.com/a.jpg">`,
		"<!-- failed: https://jp.pronews.com/b.html (unexpected status: 404) -->",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestHTMLWriter_Pretty(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewHTMLWriter(buf, true)

	_ = w.WriteResult(published("a"))

	if !strings.Contains(buf.String(), "\n  <p>") {
		t.Errorf("expected indented markup, got:\n%s", buf.String())
	}
}

// --- MarkdownWriter Tests ---

func TestMarkdownWriter(t *testing.T) {
	buf := &bytes.Buffer{}
	w := NewMarkdownWriter(buf)

	if err := w.WriteReport(report()); err != nil {
		t.Fatalf("WriteReport() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"# 소니 신제품\n",
		"> published: <https://jp.pronews.com/a.html>",
		"본문",
		"![](https://jp.pronews.com/a.jpg)",
		"> failed: <https://jp.pronews.com/b.html> (unexpected status: 404)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "<p>") {
		t.Errorf("markup should be converted:\n%s", out)
	}
}

func TestCollapseBlankLines(t *testing.T) {
	got := collapseBlankLines("\na\n\n\n\nb  \n")
	if got != "a\n\nb" {
		t.Errorf("collapseBlankLines() = %q", got)
	}
}
