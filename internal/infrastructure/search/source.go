package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

const leadSystemPrompt = `You are a research assistant collecting leads about AI tools.
For the given web search query, return the most relevant tool launch or release pages you can find.
Respond with a JSON array only. Each element must have the keys:
  "title": the tool or page title,
  "url": the canonical page URL,
  "description": one or two sentences describing the tool.
Do not include news roundups, listicles or search result pages.`

// ModelSource finds raw tool candidates by running discovery queries through
// a search-grounded model. One model call per query; a failed query is
// logged and skipped so the remaining queries still contribute.
type ModelSource struct {
	provider ports.ModelProvider
	model    string
	log      *slog.Logger
}

var _ ports.CandidateSource = (*ModelSource)(nil)

// NewModelSource wires the source over the given provider and model name.
func NewModelSource(provider ports.ModelProvider, model string, log *slog.Logger) *ModelSource {
	return &ModelSource{
		provider: provider,
		model:    model,
		log:      log.With("component", "search"),
	}
}

type lead struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

// FetchCandidates runs every query and merges the leads, deduplicating by
// normalized URL across queries. The first query to surface a URL wins.
func (s *ModelSource) FetchCandidates(ctx context.Context, queries []string, perQuery int) ([]domain.ToolCandidate, error) {
	seen := make(map[string]bool)
	var out []domain.ToolCandidate

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		leads, err := s.runQuery(ctx, query, perQuery)
		if err != nil {
			s.log.Warn("discovery query failed", "query", query, "error", err)
			continue
		}

		for _, l := range leads {
			key := domain.NormalizeURL(l.URL)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, domain.ToolCandidate{
				Title:          strings.TrimSpace(l.Title),
				URL:            strings.TrimSpace(l.URL),
				RawDescription: strings.TrimSpace(l.Description),
				SourceQuery:    query,
			})
		}
	}

	if len(out) == 0 && len(queries) > 0 {
		return nil, fmt.Errorf("no candidates from %d queries", len(queries))
	}
	return out, nil
}

func (s *ModelSource) runQuery(ctx context.Context, query string, perQuery int) ([]lead, error) {
	prompt := fmt.Sprintf("Search query: %s\nReturn up to %d leads.", query, perQuery)

	raw, err := s.provider.Generate(ctx, ports.ModelRequest{
		Model:     s.model,
		System:    leadSystemPrompt,
		Prompt:    prompt,
		WebSearch: true,
	})
	if err != nil {
		return nil, err
	}

	var leads []lead
	if err := llm.DecodeJSON(raw, &leads); err != nil {
		return nil, fmt.Errorf("decode leads: %w", err)
	}
	if perQuery > 0 && len(leads) > perQuery {
		leads = leads[:perQuery]
	}
	return leads, nil
}
