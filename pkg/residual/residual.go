// Package residual finds source-language text left in a translated body and
// runs a single repair pass over it.
package residual

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

// Config holds detection settings.
type Config struct {
	// Scripts are unicode script names, e.g. "Hiragana".
	Scripts []string `mapstructure:"scripts" json:"scripts" validate:"min=1"`
	// Threshold is the number of source-script characters tolerated.
	Threshold int  `mapstructure:"threshold" json:"threshold" validate:"gte=0"`
	Repair    bool `mapstructure:"repair" json:"repair"`
}

// DefaultConfig detects Japanese kana and kanji.
func DefaultConfig() Config {
	return Config{
		Scripts:   []string{"Hiragana", "Katakana", "Han"},
		Threshold: 5,
		Repair:    true,
	}
}

// Detector counts characters of the source scripts in visible text.
type Detector struct {
	tables    []*unicode.RangeTable
	threshold int
}

// NewDetector creates a Detector. Unknown script names are an error.
func NewDetector(cfg Config) (*Detector, error) {
	d := &Detector{threshold: cfg.Threshold}
	for _, name := range cfg.Scripts {
		table, ok := unicode.Scripts[name]
		if !ok {
			return nil, fmt.Errorf("unknown unicode script %q", name)
		}
		d.tables = append(d.tables, table)
	}
	return d, nil
}

// Count returns the number of source-script characters in the visible text
// of markup. Tags and attribute values are ignored.
func (d *Detector) Count(markup string) int {
	n := 0
	for _, r := range visibleText(markup) {
		if unicode.In(r, d.tables...) {
			n++
		}
	}
	return n
}

// Residual reports whether markup holds more source-script characters than
// the threshold allows.
func (d *Detector) Residual(markup string) bool {
	return d.Count(markup) > d.threshold
}

func visibleText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return markup
	}
	doc.Find("script, style").Remove()
	return doc.Text()
}

// Editor performs the repair call.
type Editor interface {
	Repair(ctx context.Context, body string) (string, error)
}

// Result is the outcome of Check.
type Result struct {
	Body     string
	Before   int
	After    int
	Repaired bool
	Warnings []article.Warning
}

// Repairer runs detection and at most one repair per body.
type Repairer struct {
	detector *Detector
	editor   Editor
	enabled  bool
	tokens   func(string) []string
}

// NewRepairer creates a Repairer. tokens lists the placeholders a body must
// keep through repair; it may be nil.
func NewRepairer(d *Detector, editor Editor, enabled bool, tokens func(string) []string) *Repairer {
	return &Repairer{detector: d, editor: editor, enabled: enabled, tokens: tokens}
}

// Check scans body and, when it still holds source-language text, asks the
// editor to fix it once. A repair that drops placeholders is discarded.
// Residual text left afterwards is reported as a warning, never an error.
// The returned error is the editor's, with Result.Body holding the
// unrepaired body.
func (r *Repairer) Check(ctx context.Context, body string) (Result, error) {
	res := Result{Body: body, Before: r.detector.Count(body)}
	res.After = res.Before
	if res.Before <= r.detector.threshold {
		return res, nil
	}

	if r.enabled && r.editor != nil {
		repaired, err := r.editor.Repair(ctx, body)
		if err != nil {
			res.Warnings = append(res.Warnings, r.residualWarning(res.After, "repair failed: "+err.Error()))
			return res, err
		}
		if lost := r.lostTokens(body, repaired); len(lost) > 0 {
			res.Warnings = append(res.Warnings, article.Warning{
				Kind:     article.WarnTokenMissing,
				Message:  fmt.Sprintf("repair dropped %d placeholders; repair discarded", len(lost)),
				Position: -1,
			})
		} else {
			res.Body = repaired
			res.Repaired = true
			res.After = r.detector.Count(repaired)
		}
	}

	if res.After > r.detector.threshold {
		res.Warnings = append(res.Warnings, r.residualWarning(res.After, ""))
	}
	return res, nil
}

func (r *Repairer) residualWarning(count int, note string) article.Warning {
	msg := fmt.Sprintf("%d source-script characters remain", count)
	if note != "" {
		msg += "; " + note
	}
	return article.Warning{Kind: article.WarnResidualLanguage, Message: msg, Position: -1}
}

func (r *Repairer) lostTokens(before, after string) []string {
	if r.tokens == nil {
		return nil
	}
	var lost []string
	for _, tok := range r.tokens(before) {
		if !strings.Contains(after, tok) {
			lost = append(lost, tok)
		}
	}
	return lost
}
