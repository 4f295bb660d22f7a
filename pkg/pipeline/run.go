package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/pkg/translate"
)

// Run collects a batch and processes it sequentially. Once the translator
// is throttled the rest of the batch is marked aborted; results already
// published stay published. The error is non-nil only when collection
// fails or ctx ends.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	if p.deps.Collector == nil {
		return nil, errors.New("pipeline: collector required")
	}
	report := &Report{RunID: uuid.NewString(), StartedAt: p.now()}
	restore := logger.WithRun(report.RunID)
	defer restore()

	limit := opts.Limit
	if limit == 0 {
		limit = p.cfg.DailyLimit
	}
	articles, err := p.deps.Collector.Collect(ctx, limit, opts.Force)
	if err != nil {
		return report, fmt.Errorf("collect articles: %w", err)
	}
	report.Collected = len(articles)
	logger.Info("batch started", "articles", len(articles), "force", opts.Force, "dry_run", opts.DryRun)

	for i, a := range articles {
		if p.deps.Translator.Throttled() {
			report.Throttled = true
			for _, rest := range articles[i:] {
				report.add(Result{
					URL:         rest.URL,
					SourceTitle: rest.Title,
					Outcome:     OutcomeAborted,
					Stage:       StageTranslate,
					Error:       translate.ErrThrottleExhausted.Error(),
				})
			}
			logger.Warn("translation throttled, aborting batch", "remaining", len(articles)-i)
			break
		}
		if i > 0 {
			if err := p.sleep(ctx, p.cfg.ArticleDelay); err != nil {
				report.Duration = p.now().Sub(report.StartedAt)
				return report, err
			}
		}

		res := p.Process(ctx, a, opts)
		report.add(res)
		logger.Info("article done",
			"index", i+1,
			"of", len(articles),
			"url", res.URL,
			"outcome", res.Outcome,
			"stage", res.Stage,
			"duration", res.Duration)
	}

	if p.deps.Translator.Throttled() {
		report.Throttled = true
	}
	report.Duration = p.now().Sub(report.StartedAt)
	logger.Info("batch finished",
		"published", report.Counts[OutcomePublished],
		"translated", report.Counts[OutcomeTranslated],
		"failed", report.Counts[OutcomeFailed],
		"aborted", report.Counts[OutcomeAborted],
		"duration", report.Duration)
	return report, nil
}
