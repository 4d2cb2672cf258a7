package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

const enhancerSystemPrompt = `You write an in-depth profile of one AI tool for a curated directory.
Cover what the tool does, who it is for, pricing, notable capabilities and limitations.
Write markdown prose with citations as markdown links where you used web sources.
Never write meta commentary about being an AI or lacking information.`

// Enhancer refreshes per-tool long-form content under each tier's budget.
// Higher tiers refresh more often and get search-grounded calls; noindex
// entries are never touched.
type Enhancer struct {
	runner *Runner
	cfg    config.EnhancerConfig
	model  string
	log    *slog.Logger
	now    func() time.Time
}

// NewEnhancer wires the enhancement stage for one run.
func NewEnhancer(runner *Runner, cfg config.EnhancerConfig, model string, log *slog.Logger) *Enhancer {
	return &Enhancer{
		runner: runner,
		cfg:    cfg,
		model:  model,
		log:    log.With("component", "enhancer"),
		now:    time.Now,
	}
}

// Run refreshes up to maxPerRun due tools, best tier first, and returns
// how many were enhanced.
func (e *Enhancer) Run(ctx context.Context, snapshot *domain.Snapshot, maxPerRun int) (enhanced int, err error) {
	if maxPerRun <= 0 {
		maxPerRun = e.cfg.MaxPerRun
	}

	due := e.dueTools(snapshot)
	for _, idx := range due {
		if enhanced >= maxPerRun {
			break
		}
		tool := &snapshot.Tools[idx]

		content, genErr := e.enhanceOne(ctx, *tool)
		if genErr != nil {
			if Fatal(genErr) {
				return enhanced, genErr
			}
			e.log.Warn("enhancement rejected", "tool", tool.Name, "error", genErr)
			continue
		}

		tool.Enhancement = content
		tool.EnhancedAt = e.now()
		tool.LastUpdated = e.now()
		enhanced++
	}
	return enhanced, nil
}

// dueTools returns indexes of tools whose content is stale under their
// tier's refresh window, ordered best tier first, oldest content first.
func (e *Enhancer) dueTools(snapshot *domain.Snapshot) []int {
	var due []int
	now := e.now()
	for i, tool := range snapshot.Tools {
		if tool.Tier.RefreshDue(tool.EnhancedAt, now) {
			due = append(due, i)
		}
	}
	sort.SliceStable(due, func(a, b int) bool {
		ta, tb := snapshot.Tools[due[a]], snapshot.Tools[due[b]]
		if ta.Tier.Rank() != tb.Tier.Rank() {
			return ta.Tier.Rank() > tb.Tier.Rank()
		}
		return ta.EnhancedAt.Before(tb.EnhancedAt)
	})
	return due
}

func (e *Enhancer) enhanceOne(ctx context.Context, tool domain.Tool) (string, error) {
	budget := tool.Tier.Budget()
	prompt := fmt.Sprintf("Tool: %s\nURL: %s\nCategory: %s\nKnown description: %s",
		tool.Name, tool.URL, tool.Category, tool.Description)

	result := e.runner.Call(ctx, ports.ModelRequest{
		Model:     e.model,
		System:    enhancerSystemPrompt,
		Prompt:    prompt,
		WebSearch: budget.WebSearches > 0,
	})
	if result.Failed() {
		return "", result.Err
	}

	content := strings.TrimSpace(llm.StripFences(result.Text))
	if len(content) < e.cfg.MinLength {
		return "", fmt.Errorf("content length %d below %d", len(content), e.cfg.MinLength)
	}
	if llm.ContainsDisclaimer(content) {
		return "", fmt.Errorf("content contains model disclaimers")
	}
	return content, nil
}
