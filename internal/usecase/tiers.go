package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

// Tier thresholds over the summed signal score.
const (
	tier1MinScore = 80
	tier2MinScore = 50
)

// minIndexableDescription is the shortest raw description that makes an
// un-enhanced tool worth indexing.
const minIndexableDescription = 60

// highValueCategories and mediumValueCategories are the static fallbacks
// used when no traffic-derived category scores are available.
var highValueCategories = []string{"language models", "image generation", "code assistants", "chatbots", "agents", "developer tools"}
var mediumValueCategories = []string{"audio", "video", "data analysis", "automation", "writing"}

// TierSignals are the externally gathered popularity inputs for one tool.
// Zero values mean "no signal", never "signal of zero strength".
type TierSignals struct {
	GitHubStars     int  `json:"github_stars"`
	PushedDaysAgo   int  `json:"pushed_days_ago"`
	ModelDownloads  int  `json:"model_downloads"`
	ModelLikes      int  `json:"model_likes"`
	TrafficScore    int  `json:"traffic_score"`
	HasGitHubRepo   bool `json:"has_github_repo"`
	HasModelListing bool `json:"has_model_listing"`
}

// TierScorer computes the content-generation budget score and tier for
// registry entries. Scoring is a pure function of the tool and its
// signals; recomputing with unchanged inputs changes nothing.
type TierScorer struct {
	categoryScores map[string]int
	log            *slog.Logger
}

// NewTierScorer wires a scorer. categoryScores may be nil; the static
// category lists then back the category bucket.
func NewTierScorer(categoryScores map[string]int, log *slog.Logger) *TierScorer {
	return &TierScorer{
		categoryScores: categoryScores,
		log:            log.With("component", "tiers"),
	}
}

// Score sums the capped signal buckets and clips to [0,100]. Each bucket
// is monotonic in its inputs, so the sum is too.
func (s *TierScorer) Score(tool domain.Tool, signals TierSignals) int {
	score := starsBucket(signals) +
		downloadsBucket(signals) +
		s.categoryBucket(tool.Category) +
		contentBucket(tool) +
		existingContentBucket(tool) +
		clamp(signals.TrafficScore, 0, 25)

	return clamp(score, 0, 100)
}

// Assign maps a score to a tier. Entries too thin to index go to noindex
// regardless of score.
func (s *TierScorer) Assign(tool domain.Tool, score int) domain.QualityTier {
	if !indexable(tool) {
		return domain.NoIndex
	}
	switch {
	case score >= tier1MinScore:
		return domain.Tier1
	case score >= tier2MinScore:
		return domain.Tier2
	case score > 0:
		return domain.Tier3
	default:
		return domain.NoIndex
	}
}

// Retier rescores in place every tool the collector reached and returns
// how many tiers changed. Tools absent from the signals map keep their
// prior tier and score; rescoring them from zero-value signals would
// demote entries the run never looked at.
func (s *TierScorer) Retier(snapshot *domain.Snapshot, signalsByID map[string]TierSignals) (changed int) {
	for i := range snapshot.Tools {
		tool := &snapshot.Tools[i]
		sig, ok := signalsByID[tool.ID]
		if !ok {
			continue
		}
		score := s.Score(*tool, sig)
		tier := s.Assign(*tool, score)
		if tier != tool.Tier || score != tool.Score {
			s.log.Debug("tier updated", "tool", tool.Name, "from", tool.Tier, "to", tier, "score", score)
			tool.Score = score
			tool.Tier = tier
			changed++
		}
	}
	return changed
}

func indexable(tool domain.Tool) bool {
	if tool.URL == "" {
		return false
	}
	if len(strings.TrimSpace(tool.Description)) >= minIndexableDescription {
		return true
	}
	return tool.Enhancement != ""
}

func starsBucket(sig TierSignals) int {
	if !sig.HasGitHubRepo {
		return 0
	}
	points := 0
	switch {
	case sig.GitHubStars >= 50000:
		points = 35
	case sig.GitHubStars >= 20000:
		points = 30
	case sig.GitHubStars >= 10000:
		points = 25
	case sig.GitHubStars >= 5000:
		points = 20
	case sig.GitHubStars >= 1000:
		points = 15
	case sig.GitHubStars >= 500:
		points = 10
	case sig.GitHubStars >= 100:
		points = 5
	}
	// Active development bonus, still capped at the bucket limit.
	if sig.PushedDaysAgo > 0 && sig.PushedDaysAgo <= 30 {
		points += 5
	} else if sig.PushedDaysAgo > 0 && sig.PushedDaysAgo <= 90 {
		points += 3
	}
	return clamp(points, 0, 35)
}

func downloadsBucket(sig TierSignals) int {
	if !sig.HasModelListing {
		return 0
	}
	points := 0
	switch {
	case sig.ModelDownloads >= 10_000_000:
		points = 35
	case sig.ModelDownloads >= 1_000_000:
		points = 30
	case sig.ModelDownloads >= 500_000:
		points = 25
	case sig.ModelDownloads >= 100_000:
		points = 20
	case sig.ModelDownloads >= 50_000:
		points = 15
	case sig.ModelDownloads >= 10_000:
		points = 10
	case sig.ModelDownloads >= 1000:
		points = 5
	}
	if sig.ModelLikes >= 1000 {
		points += 5
	} else if sig.ModelLikes >= 100 {
		points += 3
	}
	return clamp(points, 0, 35)
}

func (s *TierScorer) categoryBucket(category string) int {
	cat := strings.ToLower(strings.TrimSpace(category))
	if pts, ok := s.categoryScores[cat]; ok {
		return clamp(pts, 0, 15)
	}
	for _, c := range highValueCategories {
		if strings.Contains(cat, c) {
			return 15
		}
	}
	for _, c := range mediumValueCategories {
		if strings.Contains(cat, c) {
			return 10
		}
	}
	return 5
}

func contentBucket(tool domain.Tool) int {
	points := 0
	switch {
	case len(tool.Description) >= 200:
		points += 5
	case len(tool.Description) >= 100:
		points += 3
	case len(tool.Description) >= 50:
		points++
	}
	if tool.URL != "" {
		points += 2
	}
	return clamp(points, 0, 10)
}

func existingContentBucket(tool domain.Tool) int {
	points := 0
	if tool.Enhancement != "" {
		points += 2
		if len(tool.Comparisons) > 0 {
			points += 3
		}
	}
	return clamp(points, 0, 5)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// TrafficStats maps tool slugs to 30-day pageview counts, as exported by
// the analytics backend.
type TrafficStats map[string]int

// TrafficScores converts raw pageviews into the 0-25 traffic bucket by
// percentile rank among tools that received any traffic.
func TrafficScores(traffic TrafficStats) map[string]int {
	type entry struct {
		slug  string
		views int
	}
	entries := make([]entry, 0, len(traffic))
	for slug, views := range traffic {
		if views > 0 {
			entries = append(entries, entry{slug, views})
		}
	}
	if len(entries) == 0 {
		return map[string]int{}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].views != entries[j].views {
			return entries[i].views > entries[j].views
		}
		return entries[i].slug < entries[j].slug
	})

	scores := make(map[string]int, len(entries))
	for i, e := range entries {
		percentile := float64(i) / float64(len(entries))
		switch {
		case percentile < 0.10:
			scores[e.slug] = 25
		case percentile < 0.25:
			scores[e.slug] = 20
		case percentile < 0.50:
			scores[e.slug] = 15
		case percentile < 0.75:
			scores[e.slug] = 10
		default:
			scores[e.slug] = 5
		}
	}
	return scores
}

// CategoryScoresFromTraffic aggregates pageviews per category and assigns
// the category bucket by traffic percentile: top 20% of categories get 15
// points, the next 30% get 10, the rest 5.
func CategoryScoresFromTraffic(tools []domain.Tool, traffic TrafficStats) map[string]int {
	if len(traffic) == 0 {
		return nil
	}

	totals := map[string]int{}
	for _, tool := range tools {
		cat := strings.ToLower(strings.TrimSpace(tool.Category))
		if cat == "" {
			continue
		}
		if views, ok := traffic[tool.Slug()]; ok {
			totals[cat] += views
		}
	}
	if len(totals) == 0 {
		return nil
	}

	cats := make([]string, 0, len(totals))
	for cat := range totals {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool {
		if totals[cats[i]] != totals[cats[j]] {
			return totals[cats[i]] > totals[cats[j]]
		}
		return cats[i] < cats[j]
	})

	top20 := len(cats) * 20 / 100
	top50 := len(cats) * 50 / 100
	scores := make(map[string]int, len(cats))
	for i, cat := range cats {
		switch {
		case i < top20:
			scores[cat] = 15
		case i < top50:
			scores[cat] = 10
		default:
			scores[cat] = 5
		}
	}
	return scores
}

const signalsSystemPrompt = `You collect popularity metrics for an AI tool using web search.
Respond with JSON only:
{"has_github_repo": bool, "github_stars": int, "pushed_days_ago": int,
 "has_model_listing": bool, "model_downloads": int, "model_likes": int}.
Use 0 for anything you cannot confirm. pushed_days_ago is days since the last repository push, 0 if unknown.`

// SignalCollector gathers TierSignals through search-grounded model calls.
// One call per tool; failures yield empty signals so scoring still runs.
type SignalCollector struct {
	runner *Runner
	model  string
	log    *slog.Logger
}

// NewSignalCollector wires the collector for one run.
func NewSignalCollector(runner *Runner, model string, log *slog.Logger) *SignalCollector {
	return &SignalCollector{runner: runner, model: model, log: log.With("component", "signals")}
}

// Collect gathers signals for up to maxTools entries, preferring tools
// that have never been scored. The returned map is keyed by tool id.
func (c *SignalCollector) Collect(ctx context.Context, tools []domain.Tool, maxTools int) (map[string]TierSignals, error) {
	ordered := append([]domain.Tool(nil), tools...)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score < ordered[j].Score
	})
	if maxTools > 0 && len(ordered) > maxTools {
		ordered = ordered[:maxTools]
	}

	signals := make(map[string]TierSignals, len(ordered))
	for _, tool := range ordered {
		sig, err := c.collectOne(ctx, tool)
		if err != nil {
			if Fatal(err) {
				return signals, err
			}
			c.log.Warn("signal collection failed", "tool", tool.Name, "error", err)
			continue
		}
		signals[tool.ID] = sig
	}
	return signals, nil
}

func (c *SignalCollector) collectOne(ctx context.Context, tool domain.Tool) (TierSignals, error) {
	prompt := fmt.Sprintf("Tool: %s\nURL: %s\nDescription: %s", tool.Name, tool.URL, firstSentence(tool.Description))

	result := c.runner.Call(ctx, ports.ModelRequest{
		Model:     c.model,
		System:    signalsSystemPrompt,
		Prompt:    prompt,
		WebSearch: true,
	})
	if result.Failed() {
		return TierSignals{}, result.Err
	}

	var sig TierSignals
	if err := llm.DecodeJSON(result.Text, &sig); err != nil {
		return TierSignals{}, fmt.Errorf("decode signals: %w", err)
	}
	return sig, nil
}
