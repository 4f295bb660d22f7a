package article

import (
	"errors"
	"testing"
	"time"
)

func TestNewSourceArticle(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{name: "valid", url: "https://jp.pronews.com/news/202601011200.html"},
		{name: "empty url", url: "", wantErr: true},
		{name: "not a url", url: "pronews", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewSourceArticle(tt.url, " title ", time.Now(), "")
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Fatalf("expected ErrInvalid, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if a.Title != "title" {
				t.Errorf("title not trimmed: %q", a.Title)
			}
		})
	}
}

func TestSourceArticle_WithHTMLCopies(t *testing.T) {
	a, err := NewSourceArticle("https://jp.pronews.com/a", "t", time.Time{}, "")
	if err != nil {
		t.Fatal(err)
	}
	b := a.WithHTML("<html></html>")
	if a.RawHTML != "" {
		t.Error("original must not change")
	}
	if b.RawHTML == "" {
		t.Error("copy should carry html")
	}
}

func TestNewTranslatedArticle_RequiresTitleAndBody(t *testing.T) {
	if _, err := NewTranslatedArticle("", "<p>x</p>", "", "", nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("missing title: expected ErrInvalid, got %v", err)
	}
	if _, err := NewTranslatedArticle("제목", "  ", "", "", nil); !errors.Is(err, ErrInvalid) {
		t.Errorf("blank body: expected ErrInvalid, got %v", err)
	}
	got, err := NewTranslatedArticle("제목", "<p>본문</p>", "요약", "", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Excerpt != "요약" {
		t.Errorf("excerpt = %q", got.Excerpt)
	}
}

func TestBlock(t *testing.T) {
	b := Block{Kind: KindParagraph, Markup: "日本語"}
	if b.Len() != 3 {
		t.Errorf("Len counts runes, got %d", b.Len())
	}
	if !b.Translatable() {
		t.Error("paragraph should be translatable")
	}
	if (Block{Kind: KindMedia}).Translatable() {
		t.Error("media should not be translatable")
	}
	if KindListItem.String() != "list_item" {
		t.Errorf("unexpected kind name %q", KindListItem.String())
	}
}
