package fetcher

import (
	"context"
	"testing"

	"github.com/jmylchreest/newsbridge/pkg/fetcher"
)

func TestIsMediaURL(t *testing.T) {
	tests := map[string]bool{
		"https://jp.pronews.com/wp-content/uploads/a.jpg":        true,
		"https://jp.pronews.com/wp-content/uploads/a.JPEG?w=800": true,
		"https://jp.pronews.com/a.webp":                          true,
		"https://jp.pronews.com/news/camera-a.html":              false,
		"https://jp.pronews.com/news/2024/":                      false,
		"::not a url":                                            false,
	}
	for in, want := range tests {
		if got := isMediaURL(in); got != want {
			t.Errorf("isMediaURL(%q) = %v, want %v", in, got, want)
		}
	}
}

type recordingFetcher struct {
	urls []string
}

func (r *recordingFetcher) Fetch(_ context.Context, url string, _ fetcher.Options) (fetcher.Content, error) {
	r.urls = append(r.urls, url)
	return fetcher.Content{URL: url, Body: []byte("img"), StatusCode: 200}, nil
}

func (r *recordingFetcher) Close() error { return nil }
func (r *recordingFetcher) Type() string { return "recording" }

func TestDynamicFetcher_MediaUsesFallback(t *testing.T) {
	fb := &recordingFetcher{}
	// No browser is started until a page is navigated.
	f, err := NewDynamicFetcher(Config{ChromePath: "/nonexistent/chrome"}, fb)
	if err != nil {
		t.Fatalf("NewDynamicFetcher() error = %v", err)
	}
	defer f.Close()

	got, err := f.Fetch(context.Background(), "https://jp.pronews.com/a.png", fetcher.Options{})
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if string(got.Body) != "img" || len(fb.urls) != 1 {
		t.Errorf("media should go to the fallback, got %q via %v", got.Body, fb.urls)
	}
}

func TestNewDynamicFetcher_RequiresFallback(t *testing.T) {
	if _, err := NewDynamicFetcher(DefaultConfig(), nil); err == nil {
		t.Error("expected error without a fallback fetcher")
	}
}

func TestScreenshotSlug(t *testing.T) {
	if got := screenshotSlug("https://jp.pronews.com/a.html"); got != "jp-pronews-com" {
		t.Errorf("screenshotSlug() = %q", got)
	}
	if got := screenshotSlug("::"); got != "page" {
		t.Errorf("screenshotSlug() = %q", got)
	}
}
