package config

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"

	"github.com/jmylchreest/newsbridge/pkg/translate"
)

func newViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	if err := Setup(v); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	return v
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Translate.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Translate.Provider)
	}
	if cfg.Translate.Mode != translate.ModePlain {
		t.Errorf("mode = %q", cfg.Translate.Mode)
	}
	if cfg.Source.Timezone != "Asia/Tokyo" || cfg.Publish.Timezone != "Asia/Seoul" {
		t.Errorf("timezones = %q, %q", cfg.Source.Timezone, cfg.Publish.Timezone)
	}
	if cfg.Fetch.Mode != "static" {
		t.Errorf("fetch mode = %q", cfg.Fetch.Mode)
	}
	if cfg.Run.DailyLimit != 10 || cfg.Run.ArticleDelay != 3*time.Second {
		t.Errorf("run = %+v", cfg.Run)
	}
	if cfg.Translate.Retry.MaxAttempts != 4 {
		t.Errorf("retry attempts = %d", cfg.Translate.Retry.MaxAttempts)
	}
	if len(cfg.Source.HostAliases) == 0 {
		t.Error("expected default host aliases")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("NEWSBRIDGE_TRANSLATE_MODE", "structured")
	t.Setenv("NEWSBRIDGE_RUN_ARTICLE_DELAY", "5s")
	t.Setenv("NEWSBRIDGE_RUN_DAILY_LIMIT", "3")
	t.Setenv("NEWSBRIDGE_SOURCE_HOST_ALIASES", "a.example,b.example")
	t.Setenv("WP_USER", "editor")
	t.Setenv("WP_APP_PASSWORD", "abcd efgh")

	cfg, err := Load(newViper(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Translate.Mode != translate.ModeStructured {
		t.Errorf("mode = %q", cfg.Translate.Mode)
	}
	if cfg.Run.ArticleDelay != 5*time.Second || cfg.Run.DailyLimit != 3 {
		t.Errorf("run = %+v", cfg.Run)
	}
	if !slices.Equal(cfg.Source.HostAliases, []string{"a.example", "b.example"}) {
		t.Errorf("aliases = %v", cfg.Source.HostAliases)
	}
	if cfg.Publish.User != "editor" || cfg.Publish.AppPassword != "abcd efgh" {
		t.Errorf("credentials = %q / %q", cfg.Publish.User, cfg.Publish.AppPassword)
	}
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".newsbridge.yaml")
	data := `
translate:
  provider: openai
  model: gpt-4o-mini
  retry:
    max_attempts: 2
    schedule: ["1s", "2s"]
ledger:
  backend: redis
  redis_addr: localhost:6379
run:
  labels:
    summary: Summary
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	v := newViper(t)
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		t.Fatalf("ReadInConfig() error = %v", err)
	}
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Translate.Provider != "openai" || cfg.Translate.Model != "gpt-4o-mini" {
		t.Errorf("translate = %+v", cfg.Translate)
	}
	if !slices.Equal(cfg.Translate.Retry.Schedule, []time.Duration{time.Second, 2 * time.Second}) {
		t.Errorf("schedule = %v", cfg.Translate.Retry.Schedule)
	}
	if cfg.Translate.SourceLang != "Japanese" {
		t.Errorf("unset keys should keep defaults, source_lang = %q", cfg.Translate.SourceLang)
	}
	if cfg.Ledger.Backend != "redis" || cfg.Ledger.RedisAddr != "localhost:6379" {
		t.Errorf("ledger = %+v", cfg.Ledger)
	}
	if cfg.Run.Labels.Summary != "Summary" || cfg.Run.Labels.Original != "원문 기사 보기" {
		t.Errorf("labels = %+v", cfg.Run.Labels)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
	}{
		{"unknown provider", "translate.provider", "bogus"},
		{"unknown mode", "translate.mode", "poetic"},
		{"bad source timezone", "source.timezone", "Mars/Olympus"},
		{"bad fetch mode", "fetch.mode", "carrier-pigeon"},
		{"bad body size", "fetch.max_body_size", "lots"},
		{"bad media size", "publish.media_max_size", "lots"},
		{"redis without addr", "ledger.backend", "redis"},
		{"bad post status", "publish.status", "scheduled"},
		{"rss without feed", "source.kind", "rss"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newViper(t)
			v.Set(tt.key, tt.value)
			if _, err := Load(v); err == nil {
				t.Errorf("Load() with %s=%v should fail", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_AutoProvider(t *testing.T) {
	for _, k := range []string{"OPENROUTER_API_KEY", "ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY"} {
		t.Setenv(k, "")
	}
	t.Setenv("OPENAI_API_KEY", "sk-test")

	v := newViper(t)
	v.Set("translate.provider", ProviderAuto)
	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Translate.Provider != "openai" {
		t.Errorf("provider = %q, want openai", cfg.Translate.Provider)
	}
	if cfg.Provider().APIKey != "sk-test" {
		t.Error("detected provider should use its env key")
	}
}

func TestCheckCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	cfg := Default()
	err := cfg.CheckCredentials(true)
	if !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
	for _, want := range []string{"anthropic", "WP_USER", "WP_APP_PASSWORD"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	if err := cfg.CheckCredentials(false); err != nil {
		t.Errorf("dry run with key: %v", err)
	}

	cfg.Translate.Provider = "ollama"
	cfg.Publish.User, cfg.Publish.AppPassword = "u", "p"
	if err := cfg.CheckCredentials(true); err != nil {
		t.Errorf("ollama needs no key: %v", err)
	}
}

func TestProvider(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "from-env")
	cfg := Default()
	cfg.Translate.Provider = "openai"

	p := cfg.Provider()
	if p.APIKey != "from-env" || p.Model != "gpt-4o" {
		t.Errorf("provider = %+v", p)
	}

	cfg.APIKey = "explicit"
	cfg.Translate.Model = "gpt-4o-mini"
	p = cfg.Provider()
	if p.APIKey != "explicit" || p.Model != "gpt-4o-mini" {
		t.Errorf("provider = %+v", p)
	}
}

func TestPipeline(t *testing.T) {
	cfg := Default()
	cfg.Translate.ChunkBudget = 1200
	cfg.Source.SlugPrefix = "pronews-"
	cfg.Publish.FeaturedImage = false

	run := cfg.Pipeline()
	if run.ChunkBudget != 1200 || run.SlugPrefix != "pronews-" || run.FeaturedImage {
		t.Errorf("pipeline = %+v", run)
	}
}

func TestFetchStatic(t *testing.T) {
	f := FetchConfig{Timeout: time.Second, MaxBodySize: "2MB"}
	sc, err := f.Static()
	if err != nil {
		t.Fatal(err)
	}
	if sc.MaxBodySize != 2_000_000 || sc.Timeout != time.Second {
		t.Errorf("static = %+v", sc)
	}
}
