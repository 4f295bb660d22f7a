package commands

import (
	"context"
	"errors"
	"fmt"
	"time"

	clifetcher "github.com/jmylchreest/newsbridge/cmd/newsbridge/fetcher"
	"github.com/jmylchreest/newsbridge/internal/config"
	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/pkg/extract"
	"github.com/jmylchreest/newsbridge/pkg/fetcher"
	"github.com/jmylchreest/newsbridge/pkg/ledger"
	"github.com/jmylchreest/newsbridge/pkg/llm"
	"github.com/jmylchreest/newsbridge/pkg/pipeline"
	"github.com/jmylchreest/newsbridge/pkg/publish"
	"github.com/jmylchreest/newsbridge/pkg/residual"
	"github.com/jmylchreest/newsbridge/pkg/source"
	"github.com/jmylchreest/newsbridge/pkg/translate"
)

// app holds the wired components of one command invocation.
type app struct {
	cfg      *config.Config
	store    ledger.Store
	fetcher  fetcher.Fetcher
	totals   *llm.Totals
	pipeline *pipeline.Pipeline
}

type appOptions struct {
	// publish wires the WordPress client.
	publish bool
	// ledger opens the ledger and the source collector.
	ledger bool
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, totals: &llm.Totals{}}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	a.fetcher, err = newFetcher(cfg.Fetch)
	if err != nil {
		return nil, err
	}

	provider, err := llm.NewProvider(cfg.Translate.Provider, cfg.Provider())
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}
	tr := translate.New(provider, cfg.Translate,
		translate.WithObserver(llm.NewMultiObserver(a.totals, logObserver())))

	detector, err := residual.NewDetector(cfg.Residual)
	if err != nil {
		return nil, err
	}
	zone, err := time.LoadLocation(cfg.Source.Timezone)
	if err != nil {
		return nil, fmt.Errorf("source timezone: %w", err)
	}
	canon := source.NewCanonicalizer(cfg.Source.CanonicalHost, cfg.Source.HostAliases)

	deps := pipeline.Deps{
		Fetcher:    a.fetcher,
		Extractor:  extract.New(cfg.Extract),
		Translator: tr,
		Detector:   detector,
		Repair:     cfg.Residual.Repair,
		Canon:      canon,
		SourceZone: zone,
	}

	if opts.ledger {
		a.store, err = ledger.Open(ctx, cfg.Ledger)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		lister, err := source.NewLister(cfg.Source)
		if err != nil {
			return nil, err
		}
		deps.Ledger = a.store
		deps.Collector = source.NewCollector(lister, canon, a.store)
	}

	if opts.publish {
		client, err := publish.New(cfg.Publish)
		if err != nil {
			return nil, err
		}
		deps.Publisher = client
	}

	a.pipeline, err = pipeline.New(deps, cfg.Pipeline())
	if err != nil {
		return nil, err
	}

	logger.Debug("components ready",
		"provider", provider.Name(),
		"model", provider.Model(),
		"mode", tr.Mode(),
		"fetcher", a.fetcher.Type(),
		"ledger", cfg.Ledger.Backend,
		"publish", opts.publish)
	return a, nil
}

// Close releases the fetcher and the ledger.
func (a *app) Close() error {
	var errs []error
	if a.fetcher != nil {
		errs = append(errs, a.fetcher.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}

func newFetcher(fc config.FetchConfig) (fetcher.Fetcher, error) {
	sc, err := fc.Static()
	if err != nil {
		return nil, err
	}
	static := fetcher.NewStatic(sc)

	switch fc.Mode {
	case "dynamic":
		return clifetcher.NewDynamicFetcher(clifetcher.Config{
			UserAgent:     fc.UserAgent,
			Timeout:       fc.Timeout,
			ChromePath:    fc.ChromePath,
			ScreenshotDir: fc.ScreenshotDir,
		}, static)
	case "", "static":
		return static, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode: %s", fc.Mode)
	}
}

// logObserver reports every provider call at debug level, failures at warn.
func logObserver() llm.Observer {
	return llm.ObserverFunc(func(ctx context.Context, e llm.CallEvent) {
		args := []any{
			"provider", e.Provider,
			"model", e.Model,
			"purpose", e.Purpose,
			"attempt", e.Attempt,
			"input_chars", e.InputSize,
			"duration", e.Duration,
		}
		if e.Response != nil {
			args = append(args,
				"input_tokens", e.Response.Usage.InputTokens,
				"output_tokens", e.Response.Usage.OutputTokens,
				"finish", e.Response.FinishReason)
		}
		if e.Error != nil {
			logger.WarnContext(ctx, "llm call failed", append(args, "error", e.Error)...)
			return
		}
		logger.DebugContext(ctx, "llm call", args...)
	})
}
