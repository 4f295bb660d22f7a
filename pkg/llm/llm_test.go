package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestOllamaProvider_Execute(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Model:           "llama3.2",
			Message:         ollamaMessage{Role: "assistant", Content: "안녕하세요"},
			PromptEvalCount: 12,
			EvalCount:       5,
		})
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := p.Execute(context.Background(), Request{
		Messages: []Message{
			{Role: RoleSystem, Content: "translate"},
			{Role: RoleUser, Content: "こんにちは"},
		},
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if resp.Content != "안녕하세요" || resp.FinishReason != "stop" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 5 {
		t.Errorf("usage = %+v", resp.Usage)
	}
	if got.Format != "json" || got.Stream || len(got.Messages) != 2 || got.Model != "llama3.2" {
		t.Errorf("request = %+v", got)
	}
}

func TestOllamaProvider_StatusClassification(t *testing.T) {
	tests := []struct {
		status    int
		rateLimit bool
		transient bool
	}{
		{status: http.StatusTooManyRequests, rateLimit: true, transient: true},
		{status: http.StatusServiceUnavailable, transient: true},
		{status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer srv.Close()

			p, _ := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
			_, err := p.Execute(context.Background(), Request{Messages: []Message{{Role: RoleUser, Content: "x"}}})
			if err == nil {
				t.Fatal("expected error")
			}
			if IsRateLimited(err) != tt.rateLimit {
				t.Errorf("IsRateLimited = %v, want %v (%v)", IsRateLimited(err), tt.rateLimit, err)
			}
			if IsTransient(err) != tt.transient {
				t.Errorf("IsTransient = %v, want %v (%v)", IsTransient(err), tt.transient, err)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	base := errors.New("boom")
	if err := classify("x", 529, nil, base); !IsRateLimited(err) || !errors.Is(err, base) {
		t.Errorf("529 should be rate limited and wrap cause: %v", err)
	}
	if err := classify("x", 502, nil, base); !errors.Is(err, ErrUnavailable) {
		t.Errorf("502 should be unavailable: %v", err)
	}
	if err := classify("x", 401, nil, base); IsTransient(err) {
		t.Errorf("401 should not be transient: %v", err)
	}
	if !IsTransient(context.DeadlineExceeded) {
		t.Error("deadline should be transient")
	}
}

func TestOllamaProvider_RetryAfterAndTruncation(t *testing.T) {
	throttle := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if throttle {
			w.Header().Set("Retry-After", "30")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Message:    ollamaMessage{Role: "assistant", Content: "잘린"},
			DoneReason: "length",
		})
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(ProviderConfig{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	req := Request{Messages: []Message{{Role: RoleUser, Content: "x"}}}

	_, err = p.Execute(context.Background(), req)
	if !IsRateLimited(err) {
		t.Fatalf("err = %v, want rate limited", err)
	}
	if d, ok := RetryAfter(err); !ok || d != 30*time.Second {
		t.Errorf("RetryAfter() = %v, %v", d, ok)
	}

	throttle = false
	resp, err := p.Execute(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if !resp.Truncated || resp.FinishReason != "length" {
		t.Errorf("response = %+v, want truncated", resp)
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := map[string]time.Duration{
		"":                              0,
		"12":                            12 * time.Second,
		"-3":                            0,
		"soon":                          0,
		"Fri, 01 Mar 2024 09:01:30 GMT": 90 * time.Second,
		"Fri, 01 Mar 2024 08:00:00 GMT": 0,
	}
	for in, want := range tests {
		if got := parseRetryAfter(in, now); got != want {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", in, got, want)
		}
	}
	if _, ok := RetryAfter(classify("x", 429, nil, errors.New("slow down"))); ok {
		t.Error("no header should carry no hint")
	}
}

func TestSplitSystem(t *testing.T) {
	sys, rest := splitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "u"},
		{Role: RoleSystem, Content: "b"},
	})
	if sys != "a\n\nb" || len(rest) != 1 || rest[0].Content != "u" {
		t.Errorf("splitSystem = %q %+v", sys, rest)
	}
}

func TestRegistry(t *testing.T) {
	if _, err := NewProvider("nope", ProviderConfig{}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewProvider("anthropic", ProviderConfig{}); err == nil {
		t.Error("expected error for missing API key")
	}
	p, err := NewProvider("ollama", ProviderConfig{})
	if err != nil {
		t.Fatal(err)
	}
	if p.Name() != "ollama" || p.Model() != DefaultModels["ollama"] {
		t.Errorf("provider = %s/%s", p.Name(), p.Model())
	}

	or, err := NewProvider("openrouter", ProviderConfig{APIKey: "k"})
	if err != nil {
		t.Fatal(err)
	}
	if or.Name() != "openrouter" {
		t.Errorf("openrouter name = %q", or.Name())
	}
}

func TestDetectProvider(t *testing.T) {
	for _, k := range providerEnvKeys {
		t.Setenv(k, "")
	}
	if name, _ := DetectProvider(); name != "ollama" {
		t.Errorf("no keys: got %q", name)
	}

	t.Setenv("GEMINI_API_KEY", "g")
	if name, key := DetectProvider(); name != "gemini" || key != "g" {
		t.Errorf("gemini key: got %q %q", name, key)
	}

	t.Setenv("ANTHROPIC_API_KEY", "a")
	if name, _ := DetectProvider(); name != "anthropic" {
		t.Errorf("anthropic should win over gemini, got %q", name)
	}
	if !RequiresAPIKey("anthropic") || RequiresAPIKey("ollama") {
		t.Error("RequiresAPIKey mismatch")
	}
}

func TestTotals(t *testing.T) {
	var totals Totals
	obs := NewMultiObserver(&totals)
	obs.OnCall(context.Background(), CallEvent{Response: &Response{Usage: Usage{InputTokens: 3, OutputTokens: 4}}})
	obs.OnCall(context.Background(), CallEvent{Error: errors.New("x")})
	if totals.Calls != 2 || totals.Failures != 1 || totals.InputTokens != 3 || totals.OutputTokens != 4 {
		t.Errorf("totals = %+v", totals)
	}
}
