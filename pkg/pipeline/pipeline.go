// Package pipeline runs source articles through extraction, translation,
// reconstruction and publication, one article at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/pkg/article"
	"github.com/jmylchreest/newsbridge/pkg/chunk"
	"github.com/jmylchreest/newsbridge/pkg/extract"
	"github.com/jmylchreest/newsbridge/pkg/fetcher"
	"github.com/jmylchreest/newsbridge/pkg/ledger"
	"github.com/jmylchreest/newsbridge/pkg/protect"
	"github.com/jmylchreest/newsbridge/pkg/publish"
	"github.com/jmylchreest/newsbridge/pkg/reassemble"
	"github.com/jmylchreest/newsbridge/pkg/residual"
	"github.com/jmylchreest/newsbridge/pkg/retry"
	"github.com/jmylchreest/newsbridge/pkg/source"
	"github.com/jmylchreest/newsbridge/pkg/translate"
)

// Translator is the translation client the pipeline drives.
type Translator interface {
	Mode() translate.Mode
	Throttled() bool
	TranslateChunk(ctx context.Context, text string, segments int) (string, error)
	TranslateTitle(ctx context.Context, title string) (string, error)
	TranslateHeading(ctx context.Context, heading string) (string, error)
	TranslateArticle(ctx context.Context, title, content string, segments int) (*translate.Structured, error)
	Repair(ctx context.Context, body string) (string, error)
}

// Collector selects the articles for a batch.
type Collector interface {
	Collect(ctx context.Context, limit int, force bool) ([]article.SourceArticle, error)
}

// Config holds orchestration settings.
type Config struct {
	DailyLimit   int           `mapstructure:"daily_limit" json:"daily_limit" validate:"gte=0"`
	ArticleDelay time.Duration `mapstructure:"article_delay" json:"article_delay"`
	ChunkBudget  int           `mapstructure:"-" json:"-"`
	SlugPrefix   string        `mapstructure:"-" json:"-"`
	// FeaturedImage uploads the lead image and sets it as the post thumbnail.
	FeaturedImage bool `mapstructure:"-" json:"-"`
	// ExcerptLength caps the excerpt derived in plain mode, in characters.
	ExcerptLength int    `mapstructure:"excerpt_length" json:"excerpt_length"`
	Labels        Labels `mapstructure:"labels" json:"labels"`
}

// DefaultConfig returns the batch defaults.
func DefaultConfig() Config {
	return Config{
		DailyLimit:    10,
		ArticleDelay:  3 * time.Second,
		ChunkBudget:   chunk.DefaultBudget,
		FeaturedImage: true,
		ExcerptLength: 150,
		Labels:        DefaultLabels(),
	}
}

// Deps are the collaborators of a Pipeline. Publisher may be nil for dry
// runs; Collector is only needed by Run.
type Deps struct {
	Collector  Collector
	Fetcher    fetcher.Fetcher
	Extractor  *extract.Extractor
	Translator Translator
	Detector   *residual.Detector
	Repair     bool
	Publisher  publish.Publisher
	Ledger     ledger.Ledger
	Canon      *source.Canonicalizer
	SourceZone *time.Location
}

// Pipeline processes articles. It is not safe for concurrent use.
type Pipeline struct {
	deps         Deps
	cfg          Config
	chunker      *chunk.Chunker
	sleep        func(context.Context, time.Duration) error
	now          func() time.Time
	newProtector func() *protect.Protector
}

// New creates a Pipeline.
func New(deps Deps, cfg Config) (*Pipeline, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("pipeline: fetcher required")
	case deps.Extractor == nil:
		return nil, errors.New("pipeline: extractor required")
	case deps.Translator == nil:
		return nil, errors.New("pipeline: translator required")
	case deps.Detector == nil:
		return nil, errors.New("pipeline: residual detector required")
	case deps.Canon == nil:
		return nil, errors.New("pipeline: canonicalizer required")
	}
	if deps.SourceZone == nil {
		deps.SourceZone = time.UTC
	}
	if cfg.Labels == (Labels{}) {
		cfg.Labels = DefaultLabels()
	}
	return &Pipeline{
		deps:         deps,
		cfg:          cfg,
		chunker:      chunk.New(cfg.ChunkBudget),
		sleep:        retry.Sleep,
		now:          time.Now,
		newProtector: protect.New,
	}, nil
}

// Options controls one article or batch.
type Options struct {
	// Force skips the ledger check and the destination search.
	Force bool
	// DryRun translates without publishing or recording.
	DryRun bool
	// Limit caps the batch size; zero uses Config.DailyLimit.
	Limit int
}

// Process runs one article through the pipeline. It never returns an error:
// the outcome and any failure are in the Result.
func (p *Pipeline) Process(ctx context.Context, a article.SourceArticle, opts Options) Result {
	start := p.now()
	res := Result{URL: a.URL, SourceTitle: a.Title}
	finish := func(o Outcome, stage string, err error) Result {
		res.Outcome = o
		res.Stage = stage
		if err != nil {
			res.Err = err
			res.Error = err.Error()
		}
		res.Duration = p.now().Sub(start)
		return res
	}

	canonical, err := p.deps.Canon.Canonicalize(a.URL)
	if err != nil {
		return finish(OutcomeSkipped, StageSource, err)
	}
	res.URL = canonical
	log := logger.With("url", canonical)

	if !opts.Force && p.deps.Ledger != nil {
		posted, err := p.deps.Ledger.Has(ctx, canonical)
		if err != nil {
			return finish(OutcomeFailed, StageLedger, err)
		}
		if posted {
			log.Info("already published, skipping")
			return finish(OutcomeDuplicate, StageLedger, nil)
		}
	}

	if !opts.Force && !opts.DryRun && p.deps.Publisher != nil {
		if found, ok := p.corroborate(ctx, log, canonical); ok {
			res.PostURL = found
			return finish(OutcomeCorroborated, StageLedger, nil)
		}
	}

	raw := a.RawHTML
	if raw == "" {
		page, err := p.deps.Fetcher.Fetch(ctx, canonical, fetcher.Options{})
		if err != nil {
			log.Warn("fetch failed", "error", err)
			return finish(OutcomeFailed, StageFetch, err)
		}
		raw = page.HTML()
	}

	ex, err := p.deps.Extractor.Extract(raw, canonical)
	if err != nil {
		log.Warn("extraction failed, skipping", "error", err)
		return finish(OutcomeSkipped, StageExtract, err)
	}
	if strings.TrimSpace(a.Title) == "" {
		a.Title = ex.Title
		res.SourceTitle = ex.Title
	}

	doc, err := p.newProtector().Protect(ex.Body)
	if err != nil {
		return finish(OutcomeSkipped, StageExtract, err)
	}

	tr, err := p.translate(ctx, a.Title, doc)
	if err != nil {
		log.Warn("translation failed", "error", err)
		if errors.Is(err, translate.ErrThrottleExhausted) {
			return finish(OutcomeAborted, StageTranslate, err)
		}
		return finish(OutcomeFailed, StageTranslate, err)
	}

	// Repair runs with media tokens still in place so lost media is detectable.
	repairer := residual.NewRepairer(p.deps.Detector, p.deps.Translator, p.deps.Repair, doc.MediaTokensIn)
	checked, err := repairer.Check(ctx, tr.re.Body())
	if errors.Is(err, translate.ErrThrottleExhausted) {
		return finish(OutcomeAborted, StageRepair, err)
	}
	// Domains are repaired before media comes back so media stays verbatim.
	body := tr.re.Restore(p.deps.Canon.RepairDomains(checked.Body))
	warnings := append(tr.re.Warnings(), checked.Warnings...)

	title := p.deps.Canon.RepairDomains(tr.title)
	excerpt := p.deps.Canon.RepairDomains(tr.excerpt)
	summary := p.deps.Canon.RepairDomains(tr.summary)
	if excerpt == "" {
		excerpt = p.excerpt(body)
	}

	var media publish.Media
	if !opts.DryRun && p.cfg.FeaturedImage && p.deps.Publisher != nil && ex.FeaturedImage != "" {
		m, err := p.uploadFeatured(ctx, ex.FeaturedImage)
		if err != nil {
			log.Warn("featured image skipped", "image", ex.FeaturedImage, "error", err)
			warnings = append(warnings, article.Warning{Kind: article.WarnFeaturedImage, Message: err.Error(), Position: -1})
		} else {
			media = m
		}
	}

	composed, err := p.compose(composition{
		Title:         title,
		OriginalTitle: a.Title,
		Source:        canonical,
		Host:          p.deps.Canon.Host(),
		Published:     a.PublishedAt,
		Image:         media.SourceURL,
		Body:          body,
		Summary:       summary,
	})
	if err != nil {
		return finish(OutcomeFailed, StageCompose, err)
	}

	translated, err := article.NewTranslatedArticle(title, composed, excerpt, summary, warnings)
	if err != nil {
		return finish(OutcomeFailed, StageCompose, err)
	}
	res.Article = &translated
	res.Warnings = warnings
	for _, w := range warnings {
		log.Warn("article warning", "kind", w.Kind, "position", w.Position, "message", w.Message)
	}

	if opts.DryRun || p.deps.Publisher == nil {
		return finish(OutcomeTranslated, StagePublish, nil)
	}

	post, err := p.deps.Publisher.CreatePost(ctx, publish.Post{
		Title:         translated.Title,
		Content:       translated.BodyHTML,
		Slug:          p.cfg.SlugPrefix + source.Slug(canonical),
		Excerpt:       translated.Excerpt,
		Date:          a.PublishedAt,
		FeaturedMedia: media.ID,
	})
	if err != nil {
		log.Error("publish failed", "error", err)
		return finish(OutcomeFailed, StagePublish, err)
	}
	res.PostURL = post.URL

	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.Record(ctx, canonical); err != nil {
			// The post exists; the destination search catches it next run.
			log.Error("ledger record failed", "error", err)
			res.Error = err.Error()
		}
	}
	log.Info("article published", "post", post.URL, "warnings", len(warnings))
	return finish(OutcomePublished, StagePublish, nil)
}

// corroborate asks the destination whether a post already links canonical.
// A match is recorded in the ledger.
func (p *Pipeline) corroborate(ctx context.Context, log *slog.Logger, canonical string) (string, bool) {
	found, err := p.deps.Publisher.Search(ctx, canonical)
	if err != nil {
		log.Warn("destination search failed, continuing", "error", err)
		return "", false
	}
	if len(found) == 0 {
		return "", false
	}
	log.Info("destination already has this article", "post", found[0].URL)
	if p.deps.Ledger != nil {
		if err := p.deps.Ledger.Record(ctx, canonical); err != nil {
			log.Warn("ledger record failed", "error", err)
		}
	}
	return found[0].URL, true
}

type translation struct {
	re      *reassemble.Reassembler
	title   string
	excerpt string
	summary string
}

func (p *Pipeline) translate(ctx context.Context, title string, doc *protect.Document) (translation, error) {
	t := translation{re: reassemble.New(doc)}

	if p.deps.Translator.Mode() == translate.ModeStructured {
		whole := wholeChunk(doc.TextBlocks())
		s, err := p.deps.Translator.TranslateArticle(ctx, title, whole.Text, whole.Len())
		if err != nil {
			return t, err
		}
		if whole.Len() > 0 {
			t.re.Apply(whole, s.Content)
		}
		t.title, t.excerpt, t.summary = s.Title, s.Excerpt, s.Summary
		if t.title == "" {
			t.title = title
		}
		return t, nil
	}

	// Headings are short and go one call each; body blocks are chunked.
	for _, h := range doc.Headings() {
		out, err := p.deps.Translator.TranslateHeading(ctx, h.Markup)
		if err != nil {
			return t, fmt.Errorf("heading %d: %w", h.Index, err)
		}
		t.re.Set(h, out)
	}
	for _, c := range p.chunker.Split(doc.BodyBlocks()) {
		out, err := p.deps.Translator.TranslateChunk(ctx, c.Text, c.Len())
		if err != nil {
			return t, fmt.Errorf("chunk %d: %w", c.ID, err)
		}
		t.re.Apply(c, out)
	}
	var err error
	t.title, err = p.deps.Translator.TranslateTitle(ctx, title)
	if err != nil {
		return t, fmt.Errorf("title: %w", err)
	}
	return t, nil
}

func wholeChunk(blocks []article.Block) chunk.Chunk {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Markup
	}
	return chunk.Chunk{End: len(blocks), Blocks: blocks, Text: strings.Join(parts, chunk.Separator)}
}

func (p *Pipeline) uploadFeatured(ctx context.Context, imageURL string) (publish.Media, error) {
	var opts fetcher.Options
	if c, ok := p.deps.Publisher.(interface{ MaxMediaBytes() int }); ok {
		opts.MaxBodySize = c.MaxMediaBytes() + 1
	}
	img, err := p.deps.Fetcher.Fetch(ctx, imageURL, opts)
	if err != nil {
		return publish.Media{}, fmt.Errorf("download image: %w", err)
	}
	return p.deps.Publisher.UploadMedia(ctx, img.Body, imageURL)
}

// excerpt takes the opening text of body, cut at ExcerptLength characters.
func (p *Pipeline) excerpt(body string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return ""
	}
	var text string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text = strings.Join(strings.Fields(s.Text()), " ")
		return text == ""
	})
	if text == "" {
		text = strings.Join(strings.Fields(doc.Text()), " ")
	}
	limit := p.cfg.ExcerptLength
	if r := []rune(text); limit > 0 && len(r) > limit {
		text = strings.TrimSpace(string(r[:limit])) + "…"
	}
	return text
}
