package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

const recategorizeSystemPrompt = `You assign AI tools to categories from a fixed list.
For each tool, pick the single best-fitting category. Use "Other" only when nothing else fits.
Respond with a JSON object mapping tool name to category, nothing else.`

// recategorizeBatch is how many tools one model call classifies.
const recategorizeBatch = 25

// Recategorizer reassigns every tool to the canonical category set. This
// is the only stage allowed to rewrite the snapshot's category list; the
// pipeline stages merely clamp into it.
type Recategorizer struct {
	runner *Runner
	model  string
	log    *slog.Logger
}

// NewRecategorizer wires the maintenance stage for one run.
func NewRecategorizer(runner *Runner, model string, log *slog.Logger) *Recategorizer {
	return &Recategorizer{
		runner: runner,
		model:  model,
		log:    log.With("component", "recategorize"),
	}
}

// Run reclassifies the whole registry into categories, installs the list
// on the snapshot, and returns how many tools moved. An empty categories
// slice means the default set.
func (r *Recategorizer) Run(ctx context.Context, snapshot *domain.Snapshot, categories []string) (moved int, err error) {
	if len(categories) == 0 {
		categories = domain.DefaultCategories
	}
	snapshot.Categories = append([]string(nil), categories...)

	for start := 0; start < len(snapshot.Tools); start += recategorizeBatch {
		end := start + recategorizeBatch
		if end > len(snapshot.Tools) {
			end = len(snapshot.Tools)
		}

		assignments, batchErr := r.classifyBatch(ctx, snapshot.Tools[start:end], categories)
		if batchErr != nil {
			if Fatal(batchErr) {
				return moved, batchErr
			}
			r.log.Warn("batch classification failed, clamping instead", "error", batchErr)
			for i := start; i < end; i++ {
				tool := &snapshot.Tools[i]
				if next := domain.ClampCategory(tool.Category, categories); next != tool.Category {
					tool.Category = next
					moved++
				}
			}
			continue
		}

		for i := start; i < end; i++ {
			tool := &snapshot.Tools[i]
			next, ok := assignments[strings.ToLower(tool.Name)]
			if !ok {
				next = tool.Category
			}
			next = domain.ClampCategory(next, categories)
			if next != tool.Category {
				r.log.Debug("tool recategorized", "tool", tool.Name, "from", tool.Category, "to", next)
				tool.Category = next
				moved++
			}
		}
	}
	return moved, nil
}

func (r *Recategorizer) classifyBatch(ctx context.Context, tools []domain.Tool, categories []string) (map[string]string, error) {
	var roster strings.Builder
	for _, tool := range tools {
		fmt.Fprintf(&roster, "- %s: %s\n", tool.Name, firstSentence(tool.Description))
	}

	prompt := fmt.Sprintf("Categories: %s\n\nTools:\n%s", strings.Join(categories, ", "), roster.String())

	result := r.runner.Call(ctx, ports.ModelRequest{
		Model:  r.model,
		System: recategorizeSystemPrompt,
		Prompt: prompt,
	})
	if result.Failed() {
		return nil, result.Err
	}

	var raw map[string]string
	if err := llm.DecodeJSON(result.Text, &raw); err != nil {
		return nil, fmt.Errorf("decode assignments: %w", err)
	}

	assignments := make(map[string]string, len(raw))
	for name, cat := range raw {
		assignments[strings.ToLower(strings.TrimSpace(name))] = cat
	}
	return assignments, nil
}
