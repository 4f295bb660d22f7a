package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/newsbridge/internal/output"
	"github.com/jmylchreest/newsbridge/pkg/article"
	"github.com/jmylchreest/newsbridge/pkg/pipeline"
)

var translateCmd = &cobra.Command{
	Use:   "translate <url>",
	Short: "Translate a single article without publishing it",
	Long: `Fetch one article, translate it and print the composed post.

Nothing is published and the ledger is not touched.

Examples:
  newsbridge translate https://jp.pronews.com/news/202403011030.html
  newsbridge translate --format json https://jp.pronews.com/news/202403011030.html`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	rootCmd.AddCommand(translateCmd)

	flags := translateCmd.Flags()
	flags.StringP("output", "o", "", "output file (default: stdout)")
	flags.String("format", "html", "output format: json, jsonl, yaml, html, markdown")
	flags.Bool("pretty-html", false, "reindent the post markup (html format)")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		logError("%v", err)
		return err
	}
	if err := cfg.CheckCredentials(false); err != nil {
		logError("%v", err)
		return err
	}

	flags := cmd.Flags()
	outputPath, _ := flags.GetString("output")
	format, _ := flags.GetString("format")
	prettyHTML, _ := flags.GetBool("pretty-html")
	pretty := output.Format(format) != output.FormatHTML || prettyHTML

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := newApp(ctx, cfg, appOptions{})
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

	logInfo("Translating %s", args[0])
	res := a.pipeline.Process(ctx, article.SourceArticle{URL: args[0]}, pipeline.Options{Force: true, DryRun: true})
	for _, warn := range res.Warnings {
		logInfo("  warning: %s: %s", warn.Kind, warn.Message)
	}
	if err := w.WriteResult(res); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	if res.Outcome != pipeline.OutcomeTranslated {
		err := fmt.Errorf("%s at %s: %s", res.Outcome, res.Stage, res.Error)
		logError("%v", err)
		return err
	}
	logInfo("Done in %s (%d LLM calls)", res.Duration.Round(time.Millisecond), a.totals.Calls)
	return nil
}
