package residual

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

func newDetector(t *testing.T) *Detector {
	t.Helper()
	d, err := NewDetector(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func TestDetector_Threshold(t *testing.T) {
	d := newDetector(t)
	tests := []struct {
		name     string
		markup   string
		count    int
		residual bool
	}{
		{name: "five characters", markup: "<p>한국어 본문 カメラです</p>", count: 5, residual: false},
		{name: "six characters", markup: "<p>한국어 본문 新型カメラだ</p>", count: 6, residual: true},
		{name: "attributes ignored", markup: `<p><a href="/カメラ" title="新型カメラ発表">링크</a></p>`, count: 0},
		{name: "scripts ignored", markup: `<p>본문</p><script>var s = "日本語の文字列";</script>`, count: 0},
		{name: "hangul only", markup: "<p>완전히 번역된 문장입니다.</p>", count: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := d.Count(tt.markup); got != tt.count {
				t.Errorf("Count() = %d, want %d", got, tt.count)
			}
			if got := d.Residual(tt.markup); got != tt.residual {
				t.Errorf("Residual() = %v, want %v", got, tt.residual)
			}
		})
	}
}

func TestNewDetector_UnknownScript(t *testing.T) {
	if _, err := NewDetector(Config{Scripts: []string{"Klingon"}}); err == nil {
		t.Error("expected error for unknown script")
	}
}

type fakeEditor struct {
	calls int
	out   string
	err   error
}

func (f *fakeEditor) Repair(_ context.Context, body string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

var tokenRe = regexp.MustCompile(`\{\{MEDIA_\w+\}\}`)

func tokens(s string) []string { return tokenRe.FindAllString(s, -1) }

func TestRepairer_Check(t *testing.T) {
	dirty := "<p>새 카메라 新型カメラ発表</p>{{MEDIA_a_001}}"
	tests := []struct {
		name      string
		body      string
		editor    *fakeEditor
		calls     int
		repaired  bool
		wantBody  string
		warnKinds []article.WarningKind
		wantErr   bool
	}{
		{
			name:     "clean body untouched",
			body:     "<p>깨끗한 본문</p>",
			editor:   &fakeEditor{},
			wantBody: "<p>깨끗한 본문</p>",
		},
		{
			name:     "repair succeeds",
			body:     dirty,
			editor:   &fakeEditor{out: "<p>새 카메라 신형 카메라 발표</p>{{MEDIA_a_001}}"},
			calls:    1,
			repaired: true,
			wantBody: "<p>새 카메라 신형 카메라 발표</p>{{MEDIA_a_001}}",
		},
		{
			name:      "repair leaves residue",
			body:      dirty,
			editor:    &fakeEditor{out: "<p>새 카메라 新型カメラ発表했다</p>{{MEDIA_a_001}}"},
			calls:     1,
			repaired:  true,
			wantBody:  "<p>새 카메라 新型カメラ発表했다</p>{{MEDIA_a_001}}",
			warnKinds: []article.WarningKind{article.WarnResidualLanguage},
		},
		{
			name:      "repair drops placeholder",
			body:      dirty,
			editor:    &fakeEditor{out: "<p>새 카메라 신형 카메라 발표</p>"},
			calls:     1,
			wantBody:  dirty,
			warnKinds: []article.WarningKind{article.WarnTokenMissing, article.WarnResidualLanguage},
		},
		{
			name:      "repair call fails",
			body:      dirty,
			editor:    &fakeEditor{err: errors.New("down")},
			calls:     1,
			wantBody:  dirty,
			warnKinds: []article.WarningKind{article.WarnResidualLanguage},
			wantErr:   true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRepairer(newDetector(t), tt.editor, true, tokens)
			res, err := r.Check(context.Background(), tt.body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Check() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.editor.calls != tt.calls {
				t.Errorf("editor calls = %d, want %d", tt.editor.calls, tt.calls)
			}
			if res.Body != tt.wantBody || res.Repaired != tt.repaired {
				t.Errorf("result = %+v", res)
			}
			if len(res.Warnings) != len(tt.warnKinds) {
				t.Fatalf("warnings = %v, want kinds %v", res.Warnings, tt.warnKinds)
			}
			for i, k := range tt.warnKinds {
				if res.Warnings[i].Kind != k {
					t.Errorf("warning %d = %s, want %s", i, res.Warnings[i].Kind, k)
				}
			}
		})
	}
}

func TestRepairer_Disabled(t *testing.T) {
	ed := &fakeEditor{out: "x"}
	r := NewRepairer(newDetector(t), ed, false, nil)
	res, err := r.Check(context.Background(), "<p>"+strings.Repeat("日", 10)+"</p>")
	if err != nil {
		t.Fatal(err)
	}
	if ed.calls != 0 || res.Repaired {
		t.Errorf("disabled repairer should not call the editor")
	}
	if len(res.Warnings) != 1 || res.Warnings[0].Kind != article.WarnResidualLanguage {
		t.Errorf("warnings = %v", res.Warnings)
	}
}
