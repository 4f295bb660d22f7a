package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

const indexPage1 = `<html><body>
<a href="#top">top</a>
<ul class="news">
  <li><time datetime="2024-03-01T10:30:00+09:00">3/1</time><a class="title" href="/news/a.html#comments"> カメラA
  発表 </a></li>
  <li><a class="title" href="news/b.html"></a></li>
  <li><a class="title" href="/news/a.html">カメラA（重複）</a></li>
  <li><a class="title" href="https://ads.example.com/promo/x.html">広告</a></li>
  <li><a class="title" href="javascript:void(0)">JS</a></li>
</ul>
<a class="next" href="/page/2/">次へ</a>
</body></html>`

const indexPage2 = `<html><body>
<ul class="news"><li><a class="title" href="/news/c.html">C</a></li></ul>
<a class="next" href="/">戻る</a>
</body></html>`

func TestHTMLLister(t *testing.T) {
	hits := map[string]int{}
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits[r.URL.Path]++
		switch r.URL.Path {
		case "/":
			_, _ = w.Write([]byte(indexPage1))
		case "/page/2/":
			_, _ = w.Write([]byte(indexPage2))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	fixed := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Kind = "html"
	cfg.IndexURL = srv.URL + "/"
	cfg.LinkSelector = "ul.news a.title"
	cfg.LinkPattern = `/news/[^/]+\.html$`
	cfg.NextSelector = "a.next"
	cfg.MaxPages = 5

	l, err := NewLister(cfg, WithRetryPolicy(fastPolicy()), WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatal(err)
	}

	var got []article.SourceArticle
	if err := l.Walk(context.Background(), func(a article.SourceArticle) bool {
		got = append(got, a)
		return true
	}); err != nil {
		t.Fatalf("Walk() error = %v", err)
	}

	want := []string{srv.URL + "/news/a.html", srv.URL + "/news/b.html", srv.URL + "/news/c.html"}
	if len(got) != len(want) {
		t.Fatalf("listed %d articles, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].URL != w {
			t.Errorf("got[%d].URL = %q, want %q", i, got[i].URL, w)
		}
	}
	if got[0].Title != "カメラA 発表" || got[1].Title != "제목 없음" {
		t.Errorf("titles = %q, %q", got[0].Title, got[1].Title)
	}
	if want := time.Date(2024, 3, 1, 1, 30, 0, 0, time.UTC); !got[0].PublishedAt.Equal(want) {
		t.Errorf("dated entry published = %v", got[0].PublishedAt)
	}
	if !got[1].PublishedAt.Equal(fixed) {
		t.Errorf("undated entry published = %v, want clock", got[1].PublishedAt)
	}
	if hits["/"] != 1 || hits["/page/2/"] != 1 {
		t.Errorf("page hits = %v, each page should be fetched once", hits)
	}
}

func TestHTMLLister_StopsAtMaxPages(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte(`<a class="title" href="/news/` + r.URL.Path[1:] + `x.html">x</a><a class="next" href="/` + r.URL.Path[1:] + `n">next</a>`))
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Kind = "html"
	cfg.IndexURL = srv.URL + "/"
	cfg.LinkSelector = "a.title"
	cfg.NextSelector = "a.next"
	cfg.MaxPages = 3

	l, err := NewHTMLLister(cfg, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatal(err)
	}
	n := 0
	if err := l.Walk(context.Background(), func(article.SourceArticle) bool { n++; return true }); err != nil {
		t.Fatal(err)
	}
	if hits != 3 || n != 3 {
		t.Errorf("hits = %d, listed = %d, want 3 each", hits, n)
	}
}

func TestHTMLLister_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	cfg := DefaultConfig()
	cfg.Kind = "html"
	cfg.IndexURL = srv.URL
	l, err := NewHTMLLister(cfg, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Walk(context.Background(), func(article.SourceArticle) bool { return true }); err == nil {
		t.Error("expected error for 410 index")
	}

	cfg.LinkPattern = "("
	if _, err := NewHTMLLister(cfg); err == nil {
		t.Error("expected error for bad link pattern")
	}
	cfg.IndexURL = ""
	if _, err := NewHTMLLister(cfg); err == nil {
		t.Error("expected error without index url")
	}
}
