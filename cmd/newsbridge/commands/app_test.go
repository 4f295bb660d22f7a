package commands

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jmylchreest/newsbridge/internal/config"
	"github.com/jmylchreest/newsbridge/pkg/llm"
)

func TestNewFetcher(t *testing.T) {
	fc := config.Default().Fetch

	f, err := newFetcher(fc)
	if err != nil {
		t.Fatalf("newFetcher() error = %v", err)
	}
	if f.Type() != "static" {
		t.Errorf("type = %q, want static", f.Type())
	}

	fc.Mode = "telnet"
	if _, err := newFetcher(fc); err == nil {
		t.Error("expected error for unknown mode")
	}

	fc.Mode = "static"
	fc.MaxBodySize = "huge"
	if _, err := newFetcher(fc); err == nil {
		t.Error("expected error for bad body size")
	}
}

func TestNewApp(t *testing.T) {
	cfg := config.Default()
	cfg.Translate.Provider = "ollama"
	cfg.Ledger.Path = filepath.Join(t.TempDir(), "posted.json")

	a, err := newApp(context.Background(), &cfg, appOptions{ledger: true})
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	if a.pipeline == nil || a.store == nil {
		t.Fatalf("app not wired: %+v", a)
	}
	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewApp_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Translate.Provider = "carrier-pigeon"

	if _, err := newApp(context.Background(), &cfg, appOptions{}); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestLogObserver(t *testing.T) {
	obs := logObserver()
	obs.OnCall(context.Background(), llm.CallEvent{Provider: "ollama", Response: &llm.Response{Content: "x"}})
	obs.OnCall(context.Background(), llm.CallEvent{Provider: "ollama", Error: errors.New("boom")})
}

func TestLedgerCommands(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "posted.json")
	cfgPath := filepath.Join(dir, "newsbridge.yaml")
	data := "ledger:\n  backend: file\n  path: " + ledgerPath + "\n"
	if err := os.WriteFile(cfgPath, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		rootCmd.SetOut(&out)
		rootCmd.SetArgs(append([]string{"--config", cfgPath, "--quiet"}, args...))
		if err := rootCmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	run("ledger", "add", "https://www.pronews.jp/news/a.html/", "http://jp.pronews.com/news/b.html?utm=x")

	if got := run("ledger", "list"); got != "https://jp.pronews.com/news/a.html\nhttps://jp.pronews.com/news/b.html\n" {
		t.Errorf("list = %q", got)
	}
	if got := run("ledger", "has", "https://pronews.jp/news/a.html"); !strings.HasSuffix(got, ": recorded\n") {
		t.Errorf("has = %q", got)
	}
	if got := run("ledger", "has", "https://jp.pronews.com/news/c.html"); !strings.HasSuffix(got, ": not recorded\n") {
		t.Errorf("has = %q", got)
	}

	if _, err := os.Stat(ledgerPath); err != nil {
		t.Errorf("ledger file not written: %v", err)
	}
}
