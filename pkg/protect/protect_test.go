package protect

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/newsbridge/pkg/article"
)

func bodyOf(t *testing.T, inner string) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><div id="b">` + inner + `</div></body></html>`))
	if err != nil {
		t.Fatal(err)
	}
	return doc.Find("#b")
}

func TestProtect_IdentityRoundTrip(t *testing.T) {
	bodies := map[string]string{
		"paragraphs":      `<p>一段落目。<strong>強調</strong>と<a href="https://example.com/x?a=1&amp;b=2">リンク</a>。</p><p>二段落目</p>`,
		"media":           `<p>前</p><figure class="wp-block-image"><img src="https://jp.pronews.com/a.jpg" alt="写真" width="800"><figcaption>キャプション</figcaption></figure><p>後</p>`,
		"inline media":    `<p>文中に<img src="/icon.png">画像</p>`,
		"headings":        `<h2 id="s1" class="wp-block-heading">見出し<em>一</em></h2><p>本文</p><h3>小見出し</h3>`,
		"lists":           `<ul class="list"><li>項目1</li><li>親<ul><li>子</li></ul></li></ul><ol><li>番号</li></ol>`,
		"loose text":      "<div>\n  テキスト<br>続き\n  <span>スパン</span>\n</div>",
		"quote and table": `<blockquote><p>引用文</p>出典</blockquote><table><tbody><tr><th>見出し</th><td>値</td></tr></tbody></table>`,
		"embeds": `<p>動画</p><iframe src="https://www.youtube.com/embed/abc" allowfullscreen=""></iframe><picture><source srcset="a.webp"><img src="a.jpg"></picture><pre>code  &lt;x&gt;
  indented</pre>`,
		"comments and entities": `<!-- c --><p>&lt;タグ&gt; &amp; &#34;引用&#34; &nbsp;空白</p>`,
	}

	for name, inner := range bodies {
		t.Run(name, func(t *testing.T) {
			sel := bodyOf(t, inner)
			original, err := sel.Html()
			if err != nil {
				t.Fatal(err)
			}

			doc, err := NewWithNonce("t3st").Protect(sel)
			if err != nil {
				t.Fatalf("Protect() error = %v", err)
			}

			restored, report := doc.Restore(nil)
			if !report.OK() {
				t.Errorf("unexpected restore report %+v", report)
			}
			if restored != original {
				t.Errorf("round trip mismatch\n got: %q\nwant: %q", restored, original)
			}
			if strings.Contains(doc.Skeleton, "項目") || strings.Contains(doc.Skeleton, "本文") {
				t.Errorf("skeleton should not hold block text: %q", doc.Skeleton)
			}
		})
	}
}

func TestProtect_BlockOrderAndKinds(t *testing.T) {
	sel := bodyOf(t, `<h2>見出し</h2><p>P1</p><figure><img src="a.jpg"><figcaption>キャプション</figcaption></figure><ul><li>項目1</li><li>項目2</li></ul><blockquote>引用</blockquote><p><img src="b.jpg"></p>`)
	doc, err := NewWithNonce("n").Protect(sel)
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		kind   article.Kind
		markup string
	}{
		{article.KindHeading, "見出し"},
		{article.KindParagraph, "P1"},
		{article.KindMedia, `<img src="a.jpg"/>`},
		{article.KindParagraph, "キャプション"},
		{article.KindListItem, "項目1"},
		{article.KindListItem, "項目2"},
		{article.KindQuote, "引用"},
		{article.KindMedia, `<img src="b.jpg"/>`},
	}
	if len(doc.Blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d: %+v", len(doc.Blocks), len(want), doc.Blocks)
	}
	for i, w := range want {
		b := doc.Blocks[i]
		if b.Index != i {
			t.Errorf("block %d has index %d", i, b.Index)
		}
		if b.Kind != w.kind || b.Markup != w.markup {
			t.Errorf("block %d = %s %q, want %s %q", i, b.Kind, b.Markup, w.kind, w.markup)
		}
	}
	if doc.Blocks[0].Level != 2 {
		t.Errorf("heading level = %d, want 2", doc.Blocks[0].Level)
	}
	if got := len(doc.Headings()); got != 1 {
		t.Errorf("Headings() = %d, want 1", got)
	}
	if got := len(doc.BodyBlocks()); got != 5 {
		t.Errorf("BodyBlocks() = %d, want 5", got)
	}
}

func TestProtect_TokensUniqueAndOpaque(t *testing.T) {
	sel := bodyOf(t, `<p>A<img src="1.jpg">B<img src="2.jpg">C</p>`)
	doc, err := New().Protect(sel)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Media) != 2 {
		t.Fatalf("expected 2 media tokens, got %d", len(doc.Media))
	}
	blocks := doc.TextBlocks()
	if len(blocks) != 1 {
		t.Fatalf("expected 1 text block, got %d", len(blocks))
	}
	toks := doc.MediaTokensIn(blocks[0].Markup)
	if len(toks) != 2 || toks[0] == toks[1] {
		t.Fatalf("inline tokens = %v", toks)
	}
	for _, tok := range toks {
		if !strings.HasPrefix(tok, "{{MEDIA_") || !strings.HasSuffix(tok, "}}") {
			t.Errorf("unexpected token form %q", tok)
		}
	}

	other, err := New().Protect(bodyOf(t, `<p><img src="1.jpg">x</p>`))
	if err != nil {
		t.Fatal(err)
	}
	for tok := range other.Media {
		if _, clash := doc.Media[tok]; clash {
			t.Errorf("token %q reused across protectors", tok)
		}
	}
}

func TestDocument_RestoreTranslated(t *testing.T) {
	sel := bodyOf(t, `<p>一<img src="x.jpg"></p><h2>二</h2>`)
	doc, err := NewWithNonce("r").Protect(sel)
	if err != nil {
		t.Fatal(err)
	}
	p, h := doc.Blocks[0], doc.Blocks[1]
	tok := doc.MediaTokensIn(p.Markup)[0]

	out, report := doc.Restore(map[int]string{
		p.Index: "하나" + tok,
		h.Index: "둘",
	})
	if !report.OK() {
		t.Errorf("report = %+v", report)
	}
	want := `<p>하나<img src="x.jpg"/></p><h2>둘</h2>`
	if out != want {
		t.Errorf("got %q, want %q", out, want)
	}

	out, report = doc.Restore(map[int]string{p.Index: "하나", h.Index: "둘" + tok + tok})
	if len(report.Duplicated) != 1 || len(report.Missing) != 0 {
		t.Errorf("duplicate report = %+v", report)
	}
	if strings.Count(out, "x.jpg") != 1 {
		t.Errorf("duplicate token should restore once: %q", out)
	}

	_, report = doc.Restore(map[int]string{p.Index: "하나"})
	if len(report.Missing) != 1 || report.Missing[0] != tok {
		t.Errorf("missing report = %+v", report)
	}
}

func TestProtect_Empty(t *testing.T) {
	if _, err := New().Protect(&goquery.Selection{}); err != ErrEmptyBody {
		t.Errorf("expected ErrEmptyBody, got %v", err)
	}
}
