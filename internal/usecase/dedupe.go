package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

// mergeThreshold is the minimum semantic-match confidence that may produce
// a merge. Below it a semantic match is treated as a distinct tool.
const mergeThreshold = 0.85

const duplicateSystemPrompt = `You decide whether a new AI tool entry duplicates one already in a registry.
Two entries duplicate each other when they are the same product, even under a rebrand, a version bump, or a different storefront URL.
Respond with JSON only:
{"duplicate": bool, "matched_name": "registry entry name or empty", "confidence": 0.0-1.0, "reason": "..."}.`

// Deduplicator decides, for every validated candidate, whether it enters
// the registry as a new entry or merges into an existing one. Merges are
// non-destructive: identity, tier, score and comparison references of the
// existing entry survive.
type Deduplicator struct {
	runner *Runner
	model  string
	log    *slog.Logger
	now    func() time.Time
}

// NewDeduplicator wires the stage for one run.
func NewDeduplicator(runner *Runner, model string, log *slog.Logger) *Deduplicator {
	return &Deduplicator{
		runner: runner,
		model:  model,
		log:    log.With("component", "dedupe"),
		now:    time.Now,
	}
}

type duplicateVerdict struct {
	Duplicate   bool    `json:"duplicate"`
	MatchedName string  `json:"matched_name"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}

// Apply admits every decision into the snapshot. It returns how many
// entries were added and how many merged. Applying the same decisions to
// the resulting snapshot again changes nothing.
func (d *Deduplicator) Apply(ctx context.Context, snapshot *domain.Snapshot, decisions []domain.ValidationDecision) (added, merged int, err error) {
	for _, decision := range decisions {
		status, err := d.classify(ctx, snapshot, decision)
		if err != nil {
			if Fatal(err) {
				return added, merged, err
			}
			d.log.Warn("duplicate analysis failed, keeping candidate out", "url", decision.Candidate.URL, "error", err)
			continue
		}

		switch status.Decision {
		case domain.DecisionMerge:
			existing, ok := snapshot.ToolByID(status.MatchedID)
			if !ok {
				return added, merged, fmt.Errorf("merge target %s vanished", status.MatchedID)
			}
			d.merge(existing, decision)
			merged++
		case domain.DecisionNew:
			snapshot.Tools = append(snapshot.Tools, d.newTool(decision))
			added++
		case domain.DecisionIgnore:
			d.log.Debug("candidate ignored", "url", decision.Candidate.URL, "reason", status.Rationale)
		}
	}
	return added, merged, nil
}

// classify runs the exact-URL pass first; only URL misses pay for a model
// call. The exact pass is authoritative at confidence 1.0.
func (d *Deduplicator) classify(ctx context.Context, snapshot *domain.Snapshot, decision domain.ValidationDecision) (domain.DuplicateStatus, error) {
	if existing, ok := snapshot.ToolByURL(decision.Candidate.URL); ok {
		return domain.DuplicateStatus{
			MatchedID:  existing.ID,
			Confidence: 1.0,
			Decision:   domain.DecisionMerge,
			Rationale:  "exact URL match",
		}, nil
	}
	if len(snapshot.Tools) == 0 {
		return domain.DuplicateStatus{Decision: domain.DecisionNew}, nil
	}

	verdict, err := d.semanticMatch(ctx, snapshot, decision)
	if err != nil {
		return domain.DuplicateStatus{}, err
	}

	if !verdict.Duplicate || verdict.Confidence < mergeThreshold {
		return domain.DuplicateStatus{
			Confidence: verdict.Confidence,
			Decision:   domain.DecisionNew,
			Rationale:  verdict.Reason,
		}, nil
	}

	matched, ok := snapshot.ToolByName(verdict.MatchedName)
	if !ok {
		d.log.Warn("semantic match names unknown entry, keeping as new", "matched", verdict.MatchedName)
		return domain.DuplicateStatus{Decision: domain.DecisionNew, Rationale: verdict.Reason}, nil
	}
	return domain.DuplicateStatus{
		MatchedID:  matched.ID,
		Confidence: verdict.Confidence,
		Decision:   domain.DecisionMerge,
		Rationale:  verdict.Reason,
	}, nil
}

func (d *Deduplicator) semanticMatch(ctx context.Context, snapshot *domain.Snapshot, decision domain.ValidationDecision) (duplicateVerdict, error) {
	var roster strings.Builder
	for _, t := range snapshot.Tools {
		fmt.Fprintf(&roster, "- %s (%s): %s\n", t.Name, t.URL, firstSentence(t.Description))
	}

	prompt := fmt.Sprintf("New entry:\nName: %s\nURL: %s\nDescription: %s\n\nRegistry:\n%s",
		decision.Name, decision.Candidate.URL, decision.Description, roster.String())

	result := d.runner.Call(ctx, ports.ModelRequest{
		Model:  d.model,
		System: duplicateSystemPrompt,
		Prompt: prompt,
	})
	if result.Failed() {
		return duplicateVerdict{}, result.Err
	}

	var verdict duplicateVerdict
	if err := llm.DecodeJSON(result.Text, &verdict); err != nil {
		return duplicateVerdict{}, fmt.Errorf("decode duplicate verdict: %w", err)
	}
	return verdict, nil
}

// merge refreshes the descriptive fields of an existing entry. The longer
// description wins; identity, tier, score, enhancement and comparison
// references stay untouched.
func (d *Deduplicator) merge(existing *domain.Tool, decision domain.ValidationDecision) {
	if len(decision.Description) > len(existing.Description) {
		existing.Description = decision.Description
	}
	if existing.Category == "" || existing.Category == domain.CategoryOther {
		existing.Category = decision.Category
	}
	existing.LastUpdated = d.now()
}

func (d *Deduplicator) newTool(decision domain.ValidationDecision) domain.Tool {
	return domain.Tool{
		ID:          uuid.NewString(),
		Name:        decision.Name,
		Description: decision.Description,
		URL:         decision.Candidate.URL,
		Category:    decision.Category,
		Tier:        domain.NoIndex,
		LastUpdated: d.now(),
	}
}

// Compact deduplicates the registry itself: entries sharing a normalized
// URL collapse into the oldest one, which absorbs the longer description
// and every comparison reference. Running it twice is a no-op.
func (d *Deduplicator) Compact(snapshot *domain.Snapshot) (removed int) {
	byURL := make(map[string]int)
	kept := snapshot.Tools[:0]

	for _, tool := range snapshot.Tools {
		key := domain.NormalizeURL(tool.URL)
		if key == "" {
			kept = append(kept, tool)
			continue
		}
		idx, ok := byURL[key]
		if !ok {
			byURL[key] = len(kept)
			kept = append(kept, tool)
			continue
		}

		winner := &kept[idx]
		if len(tool.Description) > len(winner.Description) {
			winner.Description = tool.Description
		}
		if tool.Tier.Rank() > winner.Tier.Rank() {
			winner.Tier = tool.Tier
			winner.Score = tool.Score
		}
		for _, slug := range tool.Comparisons {
			winner.AddComparison(slug)
		}
		removed++
	}

	snapshot.Tools = kept
	return removed
}

func firstSentence(text string) string {
	if idx := strings.IndexAny(text, ".!?"); idx > 0 && idx < len(text)-1 {
		return text[:idx+1]
	}
	if len(text) > 160 {
		return text[:160]
	}
	return text
}
