package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"ToolCurator/internal/config"
	"ToolCurator/internal/ports"
)

// GeminiProvider implements ports.ModelProvider on the Google GenAI SDK.
// Web-search grounding is attached per request via the GoogleSearch tool.
type GeminiProvider struct {
	client       *genai.Client
	defaultModel string
	timeout      time.Duration
	logger       *slog.Logger
}

var _ ports.ModelProvider = (*GeminiProvider)(nil)

// NewGeminiProvider builds a provider from configuration.
func NewGeminiProvider(ctx context.Context, cfg config.ModelConfig, timeout time.Duration, log *slog.Logger) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider: API key is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	if timeout <= 0 {
		timeout = 3 * time.Minute
	}

	return &GeminiProvider{
		client:       client,
		defaultModel: cfg.ValidatorModel,
		timeout:      timeout,
		logger:       log,
	}, nil
}

// Generate sends the prompt and returns the raw response text. Every call
// carries a bounded timeout; exceeding it is reported as an error to the
// caller's retry machinery.
func (p *GeminiProvider) Generate(ctx context.Context, req ports.ModelRequest) (string, error) {
	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.defaultModel
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.WebSearch {
		genCfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	}

	p.debug("model call", "model", model, "web_search", req.WebSearch, "prompt_len", len(req.Prompt))

	resp, err := p.client.Models.GenerateContent(ctx, model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("model %s returned empty response", model)
	}
	return text, nil
}

func (p *GeminiProvider) debug(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Debug(msg, args...)
	}
}
