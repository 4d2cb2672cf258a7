package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

const detectorSystemPrompt = `You find pairs of AI tools that users actively compare before choosing one.
Only pair tools that solve the same problem for the same audience.
For each worthwhile pair, respond with an element in a JSON array:
{"tool1": "...", "tool2": "...", "value_score": 1-10, "search_potential": "high"|"medium"|"low", "rationale": "..."}.
value_score reflects how often users would search for this comparison.
The rationale must name the concrete overlap, at least one full sentence.
Return [] when no pair in the batch is worth comparing.`

// detectorConcurrency caps parallel batch calls.
const detectorConcurrency = 3

// Detector scans the registry for comparison opportunities. Tools are
// analyzed in category batches; each proposed pair passes a value-score
// gate, a search-potential gate and a rationale-length gate before it
// reaches the opportunity set.
type Detector struct {
	runner *Runner
	cfg    config.DetectorConfig
	model  string
	log    *slog.Logger
	now    func() time.Time
}

// NewDetector wires the detection stage for one run.
func NewDetector(runner *Runner, cfg config.DetectorConfig, model string, log *slog.Logger) *Detector {
	return &Detector{
		runner: runner,
		cfg:    cfg,
		model:  model,
		log:    log.With("component", "detector"),
		now:    time.Now,
	}
}

type pairProposal struct {
	Tool1           string `json:"tool1"`
	Tool2           string `json:"tool2"`
	ValueScore      int    `json:"value_score"`
	SearchPotential string `json:"search_potential"`
	Rationale       string `json:"rationale"`
}

// Detect analyzes the snapshot and returns a fresh opportunity set, ranked
// by value. When the stored set is younger than the staleness window the
// stored set comes back untouched and no model call is made.
func (d *Detector) Detect(ctx context.Context, snapshot *domain.Snapshot, stored domain.OpportunitySet) (domain.OpportunitySet, error) {
	window := time.Duration(d.cfg.StaleDays) * 24 * time.Hour
	if !stored.Stale(window, d.now()) {
		d.log.Info("opportunity set still fresh, skipping detection", "age", d.now().Sub(stored.GeneratedAt))
		return stored, nil
	}

	eligible := d.eligibleTools(snapshot)
	if len(eligible) < 2 {
		return domain.OpportunitySet{GeneratedAt: d.now(), ToolsAnalyzed: len(eligible)}, nil
	}

	batches := d.batch(eligible)

	var (
		mu            sync.Mutex
		opportunities []domain.ComparisonOpportunity
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(detectorConcurrency)

	for _, batch := range batches {
		batch := batch
		g.Go(func() error {
			found, err := d.detectBatch(gctx, snapshot, batch)
			if err != nil {
				if Fatal(err) {
					return err
				}
				d.log.Warn("batch detection failed", "batch_size", len(batch), "error", err)
				return nil
			}
			mu.Lock()
			opportunities = append(opportunities, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.OpportunitySet{}, err
	}

	ranked := d.rank(dedupePairs(opportunities))
	if d.cfg.MaxComparisons > 0 && len(ranked) > d.cfg.MaxComparisons {
		ranked = ranked[:d.cfg.MaxComparisons]
	}

	return domain.OpportunitySet{
		Opportunities: ranked,
		GeneratedAt:   d.now(),
		ToolsAnalyzed: len(eligible),
	}, nil
}

// eligibleTools skips noindex entries; they get no generation budget.
func (d *Detector) eligibleTools(snapshot *domain.Snapshot) []domain.Tool {
	out := make([]domain.Tool, 0, len(snapshot.Tools))
	for _, tool := range snapshot.Tools {
		if tool.Tier != domain.NoIndex {
			out = append(out, tool)
		}
	}
	return out
}

// batch groups tools by category first so pairs come from comparable
// products, then splits each group into model-sized batches.
func (d *Detector) batch(tools []domain.Tool) [][]domain.Tool {
	byCategory := map[string][]domain.Tool{}
	for _, tool := range tools {
		cat := tool.Category
		if cat == "" {
			cat = domain.CategoryOther
		}
		byCategory[cat] = append(byCategory[cat], tool)
	}

	cats := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		cats = append(cats, cat)
	}
	sort.Strings(cats)

	size := d.cfg.BatchSize
	if size <= 0 {
		size = 12
	}

	var batches [][]domain.Tool
	for _, cat := range cats {
		group := byCategory[cat]
		for start := 0; start < len(group); start += size {
			end := start + size
			if end > len(group) {
				end = len(group)
			}
			if end-start >= 2 {
				batches = append(batches, group[start:end])
			}
		}
	}
	return batches
}

func (d *Detector) detectBatch(ctx context.Context, snapshot *domain.Snapshot, batch []domain.Tool) ([]domain.ComparisonOpportunity, error) {
	var roster strings.Builder
	for _, tool := range batch {
		fmt.Fprintf(&roster, "- %s (%s): %s\n", tool.Name, tool.Category, firstSentence(tool.Description))
	}

	result := d.runner.Call(ctx, ports.ModelRequest{
		Model:  d.model,
		System: detectorSystemPrompt,
		Prompt: "Tools:\n" + roster.String(),
	})
	if result.Failed() {
		return nil, result.Err
	}

	var proposals []pairProposal
	if err := llm.DecodeJSON(result.Text, &proposals); err != nil {
		return nil, fmt.Errorf("decode proposals: %w", err)
	}

	detectedAt := d.now()
	var out []domain.ComparisonOpportunity
	for _, p := range proposals {
		opp, ok := d.gate(snapshot, p, detectedAt)
		if !ok {
			continue
		}
		out = append(out, opp)
	}
	return out, nil
}

// gate applies the acceptance rules to one proposal and resolves tool
// names to registry ids. Unknown names and self-pairs are dropped.
func (d *Detector) gate(snapshot *domain.Snapshot, p pairProposal, detectedAt time.Time) (domain.ComparisonOpportunity, bool) {
	if p.ValueScore < d.cfg.MinValueScore {
		return domain.ComparisonOpportunity{}, false
	}
	potential := domain.SearchPotential(strings.ToLower(p.SearchPotential))
	if potential != domain.PotentialHigh && potential != domain.PotentialMedium {
		return domain.ComparisonOpportunity{}, false
	}
	if len(strings.TrimSpace(p.Rationale)) < d.cfg.MinRationaleLen {
		return domain.ComparisonOpportunity{}, false
	}

	tool1, ok1 := snapshot.ToolByName(p.Tool1)
	tool2, ok2 := snapshot.ToolByName(p.Tool2)
	if !ok1 || !ok2 || tool1.ID == tool2.ID {
		d.log.Debug("proposal names unresolvable pair", "tool1", p.Tool1, "tool2", p.Tool2)
		return domain.ComparisonOpportunity{}, false
	}

	return domain.ComparisonOpportunity{
		Tool1ID:         tool1.ID,
		Tool2ID:         tool2.ID,
		ValueScore:      p.ValueScore,
		SearchPotential: potential,
		Rationale:       strings.TrimSpace(p.Rationale),
		Category:        tool1.Category,
		DetectedAt:      detectedAt,
	}, true
}

// rank orders by value score, then search potential, then pair key for a
// stable result.
func (d *Detector) rank(opportunities []domain.ComparisonOpportunity) []domain.ComparisonOpportunity {
	sort.SliceStable(opportunities, func(i, j int) bool {
		a, b := opportunities[i], opportunities[j]
		if a.ValueScore != b.ValueScore {
			return a.ValueScore > b.ValueScore
		}
		if pa, pb := potentialRank(a.SearchPotential), potentialRank(b.SearchPotential); pa != pb {
			return pa > pb
		}
		return a.PairKey() < b.PairKey()
	})
	return opportunities
}

func potentialRank(p domain.SearchPotential) int {
	switch p {
	case domain.PotentialHigh:
		return 2
	case domain.PotentialMedium:
		return 1
	default:
		return 0
	}
}

// dedupePairs keeps the highest-value proposal per unordered pair.
func dedupePairs(opportunities []domain.ComparisonOpportunity) []domain.ComparisonOpportunity {
	best := map[string]domain.ComparisonOpportunity{}
	for _, opp := range opportunities {
		key := opp.PairKey()
		if cur, ok := best[key]; !ok || opp.ValueScore > cur.ValueScore {
			best[key] = opp
		}
	}
	out := make([]domain.ComparisonOpportunity, 0, len(best))
	for _, opp := range best {
		out = append(out, opp)
	}
	return out
}
