// Package commands implements the CLI commands for newsbridge.
package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/newsbridge/internal/config"
	"github.com/jmylchreest/newsbridge/internal/logger"
)

var rootCmd = &cobra.Command{
	Use:   "newsbridge",
	Short: "Translate Japanese news articles and republish them in Korean",
	Long: `Newsbridge collects new articles from a Japanese news site, translates
them into Korean through an LLM while keeping their markup and media intact,
and publishes them to a WordPress site. Published URLs are recorded in a
ledger so no article is posted twice.

Examples:
  # Publish today's batch
  newsbridge run

  # Translate the batch without publishing and inspect the result
  newsbridge run --dry-run --limit 2 --format html

  # Translate one article
  newsbridge translate https://jp.pronews.com/news/202403011030.html

  # Use OpenAI in structured mode
  newsbridge run -p openai --mode structured`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.newsbridge.yaml or ./.newsbridge.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")

	flags.StringP("provider", "p", "", "LLM provider: anthropic, openai, openrouter, gemini, ollama, auto")
	flags.StringP("model", "m", "", "model name (provider-specific)")
	flags.String("mode", "", "translation mode: plain, structured")
	flags.StringP("api-key", "k", "", "API key (or use the provider's env var)")
	flags.String("fetch-mode", "", "fetch mode: static, dynamic")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("translate.provider", flags.Lookup("provider"))
	_ = viper.BindPFlag("translate.model", flags.Lookup("model"))
	_ = viper.BindPFlag("translate.mode", flags.Lookup("mode"))
	_ = viper.BindPFlag("api_key", flags.Lookup("api-key"))
	_ = viper.BindPFlag("fetch.mode", flags.Lookup("fetch-mode"))
}

func initConfig() {
	if err := config.Setup(viper.GetViper()); err != nil {
		logError("%v", err)
	}

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".newsbridge")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			logError("reading config: %v", err)
		}
	}
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// setup initialises logging and loads the configuration.
func setup() (*config.Config, error) {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug("config loaded", "file", f)
	}
	return cfg, nil
}

// logError prints an error message to stderr.
func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

// logInfo prints an info message to stderr (unless quiet mode).
func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
