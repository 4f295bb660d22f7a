package commands

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/jmylchreest/newsbridge/internal/logger"
	"github.com/jmylchreest/newsbridge/internal/output"
	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Translate and publish the next batch of articles",
	Long: `Collect new articles from the source, translate each one and publish it.

Articles already in the ledger, or already present on the destination site,
are skipped. Articles are processed one at a time; if the translation
provider keeps throttling, the rest of the batch is left for the next run.

Examples:
  # Publish up to the configured daily limit
  newsbridge run

  # Republish two articles even if they were posted before
  newsbridge run --force --limit 2

  # Preview without publishing
  newsbridge run --dry-run --format html -o preview.html`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.Int("limit", 0, "max articles this run (default: run.daily_limit)")
	flags.Bool("force", false, "ignore the ledger and the destination search")
	flags.Bool("dry-run", false, "translate without publishing or recording")
	flags.StringP("output", "o", "", "report file (default: stdout)")
	flags.String("format", "json", "report format: json, jsonl, yaml, html, markdown")
	flags.Bool("pretty", true, "indent the report")
}

func runBatch(cmd *cobra.Command, _ []string) error {
	cfg, err := setup()
	if err != nil {
		logError("%v", err)
		return err
	}

	flags := cmd.Flags()
	limit, _ := flags.GetInt("limit")
	force, _ := flags.GetBool("force")
	dryRun, _ := flags.GetBool("dry-run")
	outputPath, _ := flags.GetString("output")
	format, _ := flags.GetString("format")
	pretty, _ := flags.GetBool("pretty")

	if err := cfg.CheckCredentials(!dryRun); err != nil {
		logError("%v", err)
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{publish: !dryRun, ledger: true})
	if err != nil {
		logError("%v", err)
		return err
	}
	defer a.Close()

	w, closeOut, err := openWriter(outputPath, output.Format(format), pretty)
	if err != nil {
		logError("%v", err)
		return err
	}
	defer closeOut()

	report, runErr := a.pipeline.Run(ctx, pipeline.Options{Force: force, DryRun: dryRun, Limit: limit})
	if report != nil {
		if err := w.WriteReport(report); err != nil {
			logError("writing report: %v", err)
		}
		if err := w.Close(); err != nil {
			logError("writing report: %v", err)
		}
	}
	if runErr != nil {
		logError("%v", runErr)
		return runErr
	}

	if report.Throttled {
		logger.Warn("provider throttled, unprocessed articles will be retried next run",
			"aborted", report.Counts[pipeline.OutcomeAborted])
	}
	logInfo("%d collected, %d published, %d translated, %d failed; %s LLM calls, %s input / %s output tokens",
		report.Collected,
		report.Counts[pipeline.OutcomePublished],
		report.Counts[pipeline.OutcomeTranslated],
		report.Counts[pipeline.OutcomeFailed],
		humanize.Comma(int64(a.totals.Calls)),
		humanize.Comma(int64(a.totals.InputTokens)),
		humanize.Comma(int64(a.totals.OutputTokens)))
	return nil
}
