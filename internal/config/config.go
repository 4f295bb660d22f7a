// Package config assembles the settings of every pipeline component from
// defaults, an optional config file and the environment.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/jmylchreest/newsbridge/internal/version"
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

// EnvPrefix prefixes every environment override, e.g.
// NEWSBRIDGE_TRANSLATE_PROVIDER.
const EnvPrefix = "NEWSBRIDGE"

// ErrMissingCredentials is returned when a secret needed by the requested
// command is not configured.
var ErrMissingCredentials = errors.New("missing credentials")

// ProviderAuto selects the first provider whose API key is set in the
// environment, falling back to ollama.
const ProviderAuto = "auto"

// Config is the full application configuration.
type Config struct {
	Source    source.Config    `mapstructure:"source" json:"source"`
	Fetch     FetchConfig      `mapstructure:"fetch" json:"fetch"`
	Extract   extract.Config   `mapstructure:"extract" json:"extract"`
	Translate translate.Config `mapstructure:"translate" json:"translate"`
	Residual  residual.Config  `mapstructure:"residual" json:"residual"`
	Ledger    ledger.Config    `mapstructure:"ledger" json:"ledger"`
	Publish   publish.Config   `mapstructure:"publish" json:"publish"`
	Run       pipeline.Config  `mapstructure:"run" json:"run"`

	// APIKey overrides the provider's own environment variable.
	APIKey string `mapstructure:"api_key" json:"-"`
}

// FetchConfig selects how article pages are retrieved.
type FetchConfig struct {
	Mode        string        `mapstructure:"mode" json:"mode" validate:"oneof=static dynamic"`
	UserAgent   string        `mapstructure:"user_agent" json:"user_agent,omitempty"`
	Timeout     time.Duration `mapstructure:"timeout" json:"timeout"`
	MaxBodySize string        `mapstructure:"max_body_size" json:"max_body_size"`
	// ChromePath overrides browser discovery in dynamic mode.
	ChromePath string `mapstructure:"chrome_path" json:"chrome_path,omitempty"`
	// ScreenshotDir receives a screenshot when a dynamic fetch fails.
	ScreenshotDir string `mapstructure:"screenshot_dir" json:"screenshot_dir,omitempty"`
}

// Static converts the settings for the static fetcher.
func (f FetchConfig) Static() (fetcher.StaticConfig, error) {
	cfg := fetcher.StaticConfig{UserAgent: f.UserAgent, Timeout: f.Timeout}
	if f.MaxBodySize != "" {
		n, err := humanize.ParseBytes(f.MaxBodySize)
		if err != nil {
			return cfg, fmt.Errorf("fetch.max_body_size: %w", err)
		}
		cfg.MaxBodySize = int(n)
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Source: source.DefaultConfig(),
		Fetch: FetchConfig{
			Mode:        "static",
			UserAgent:   version.UserAgent(),
			Timeout:     20 * time.Second,
			MaxBodySize: "10MB",
		},
		Extract:   extract.DefaultConfig(),
		Translate: translate.DefaultConfig(),
		Residual:  residual.DefaultConfig(),
		Ledger:    ledger.DefaultConfig(),
		Publish:   publish.DefaultConfig(),
		Run:       pipeline.DefaultConfig(),
	}
}

// Setup prepares v to read overrides: defaults for every key, the
// NEWSBRIDGE_ environment prefix and the WordPress credential variables.
func Setup(v *viper.Viper) error {
	var m map[string]any
	if err := mapstructure.Decode(Default(), &m); err != nil {
		return fmt.Errorf("flatten defaults: %w", err)
	}
	setDefaults(v, "", m)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range map[string]string{
		"publish.user":         "WP_USER",
		"publish.app_password": "WP_APP_PASSWORD",
		"ledger.postgres_dsn":  "DATABASE_URL",
	} {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return err
		}
	}
	return nil
}

func setDefaults(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := prefix + k
		if sub, ok := val.(map[string]any); ok {
			setDefaults(v, key+".", sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := Default()
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&cfg, hook); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Translate.Provider == ProviderAuto {
		cfg.Translate.Provider, _ = llm.DetectProvider()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if !slices.Contains(llm.AvailableProviders(), c.Translate.Provider) {
		return fmt.Errorf("invalid config: translate.provider %q (available: %s)",
			c.Translate.Provider, strings.Join(llm.AvailableProviders(), ", "))
	}
	for name, zone := range map[string]string{
		"source.timezone":  c.Source.Timezone,
		"publish.timezone": c.Publish.Timezone,
	} {
		if _, err := time.LoadLocation(zone); err != nil {
			return fmt.Errorf("invalid config: %s: %w", name, err)
		}
	}
	if _, err := c.Fetch.Static(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := humanize.ParseBytes(c.Publish.MediaMaxSize); c.Publish.MediaMaxSize != "" && err != nil {
		return fmt.Errorf("invalid config: publish.media_max_size: %w", err)
	}
	return nil
}

// ProviderKey returns the API key for the configured provider.
func (c *Config) ProviderKey() string {
	if c.APIKey != "" {
		return c.APIKey
	}
	return llm.APIKeyFromEnv(c.Translate.Provider)
}

// Provider returns the provider settings derived from the translate section.
func (c *Config) Provider() llm.ProviderConfig {
	model := c.Translate.Model
	if model == "" {
		model = llm.GetDefaultModel(c.Translate.Provider)
	}
	return llm.ProviderConfig{
		APIKey:      c.ProviderKey(),
		BaseURL:     c.Translate.BaseURL,
		Model:       model,
		Timeout:     c.Translate.CallTimeout,
		HTTPReferer: c.Publish.URL,
		AppTitle:    "newsbridge",
	}
}

// CheckCredentials reports every secret the command needs but lacks.
// publishing adds the WordPress application password to the check.
func (c *Config) CheckCredentials(publishing bool) error {
	var missing []string
	if llm.RequiresAPIKey(c.Translate.Provider) && c.ProviderKey() == "" {
		missing = append(missing, "API key for "+c.Translate.Provider)
	}
	if publishing {
		if c.Publish.User == "" {
			missing = append(missing, "WP_USER")
		}
		if c.Publish.AppPassword == "" {
			missing = append(missing, "WP_APP_PASSWORD")
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	return nil
}

// Pipeline returns the run settings with the values other sections own
// copied in.
func (c *Config) Pipeline() pipeline.Config {
	run := c.Run
	run.ChunkBudget = c.Translate.ChunkBudget
	run.SlugPrefix = c.Source.SlugPrefix
	run.FeaturedImage = c.Publish.FeaturedImage
	return run
}
