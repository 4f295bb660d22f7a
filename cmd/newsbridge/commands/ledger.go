package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/newsbridge/pkg/ledger"
	"github.com/jmylchreest/newsbridge/pkg/source"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Inspect or seed the ledger of published articles",
}

var ledgerListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every recorded URL",
	Args:  cobra.NoArgs,
	RunE: withLedger(func(ctx context.Context, store ledger.Store, _ *source.Canonicalizer, cmd *cobra.Command, _ []string) error {
		urls, err := store.List(ctx)
		if err != nil {
			return err
		}
		for _, u := range urls {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		return nil
	}),
}

var ledgerHasCmd = &cobra.Command{
	Use:   "has <url>",
	Short: "Report whether a URL is recorded",
	Args:  cobra.ExactArgs(1),
	RunE: withLedger(func(ctx context.Context, store ledger.Store, canon *source.Canonicalizer, cmd *cobra.Command, args []string) error {
		u, err := canon.Canonicalize(args[0])
		if err != nil {
			return err
		}
		ok, err := store.Has(ctx, u)
		if err != nil {
			return err
		}
		state := "not recorded"
		if ok {
			state = "recorded"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", u, state)
		return nil
	}),
}

var ledgerAddCmd = &cobra.Command{
	Use:   "add <url>...",
	Short: "Record URLs as published",
	Args:  cobra.MinimumNArgs(1),
	RunE: withLedger(func(ctx context.Context, store ledger.Store, canon *source.Canonicalizer, _ *cobra.Command, args []string) error {
		for _, raw := range args {
			u, err := canon.Canonicalize(raw)
			if err != nil {
				return err
			}
			if err := store.Record(ctx, u); err != nil {
				return fmt.Errorf("record %s: %w", u, err)
			}
			logInfo("recorded %s", u)
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.AddCommand(ledgerListCmd, ledgerHasCmd, ledgerAddCmd)
}

type ledgerFunc func(ctx context.Context, store ledger.Store, canon *source.Canonicalizer, cmd *cobra.Command, args []string) error

// withLedger loads the configuration and opens the ledger around fn.
func withLedger(fn ledgerFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := setup()
		if err != nil {
			logError("%v", err)
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		store, err := ledger.Open(ctx, cfg.Ledger)
		if err != nil {
			logError("open ledger: %v", err)
			return err
		}
		defer store.Close()

		if err := fn(ctx, store, source.NewCanonicalizer(cfg.Source.CanonicalHost, cfg.Source.HostAliases), cmd, args); err != nil {
			logError("%v", err)
			return err
		}
		return nil
	}
}
