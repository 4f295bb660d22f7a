package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// GeminiProvider implements Provider for the Google Gemini API.
type GeminiProvider struct {
	model string
	opts  []option.ClientOption
}

// NewGeminiProvider creates a new Gemini provider. A client is opened per
// call so the provider holds no connection between articles.
func NewGeminiProvider(cfg ProviderConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key required")
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModels["gemini"]
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}

	return &GeminiProvider{model: model, opts: opts}, nil
}

// Execute sends a completion request to Gemini.
func (p *GeminiProvider) Execute(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	client, err := genai.NewClient(ctx, p.opts...)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	defer func() { _ = client.Close() }()

	model := client.GenerativeModel(p.model)
	model.SetTemperature(float32(req.Temperature))
	model.SetMaxOutputTokens(int32(maxTokensOr(req.MaxTokens)))
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}

	system, msgs := splitSystem(req.Messages)
	if system != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(system))
	}

	parts := make([]genai.Part, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleUser {
			parts = append(parts, genai.Text(m.Content))
		}
	}

	resp, err := model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, classifyGemini(err)
	}

	var (
		sb        strings.Builder
		finish    string
		truncated bool
	)
	for _, cand := range resp.Candidates {
		finish = cand.FinishReason.String()
		truncated = cand.FinishReason == genai.FinishReasonMaxTokens
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		break
	}

	out := &Response{
		Content:      sb.String(),
		FinishReason: finish,
		Model:        p.model,
		Duration:     time.Since(start),
		Truncated:    truncated,
	}
	if resp.UsageMetadata != nil {
		out.Usage = Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

func classifyGemini(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return classify("gemini", gerr.Code, gerr.Header, err)
	}
	switch status.Code(err) {
	case codes.ResourceExhausted:
		return classify("gemini", 429, nil, err)
	case codes.Unavailable, codes.Internal:
		return classify("gemini", 503, nil, err)
	}
	return fmt.Errorf("gemini API error: %w", err)
}

// Name returns the provider identifier.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Model returns the configured model name.
func (p *GeminiProvider) Model() string {
	return p.model
}

var _ Provider = (*GeminiProvider)(nil)
