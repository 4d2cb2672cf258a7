package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

func generatorConfig() config.GeneratorConfig {
	return config.GeneratorConfig{
		MaxPerRun:    10,
		StaleDays:    7,
		MinLength:    1500,
		MinCitations: 2,
	}
}

func pairSnapshot() *domain.Snapshot {
	snapshot := domain.NewSnapshot()
	snapshot.Tools = []domain.Tool{
		{ID: "a", Name: "Alpha Coder", URL: "https://alpha.dev", Tier: domain.Tier1, Description: "First tool."},
		{ID: "b", Name: "Beta Coder", URL: "https://beta.dev", Tier: domain.Tier1, Description: "Second tool."},
	}
	return snapshot
}

func pairOpportunities() domain.OpportunitySet {
	return domain.OpportunitySet{
		Opportunities: []domain.ComparisonOpportunity{{
			Tool1ID:         "a",
			Tool2ID:         "b",
			ValueScore:      8,
			SearchPotential: domain.PotentialHigh,
			Rationale:       longRationale(),
		}},
		GeneratedAt: time.Now(),
	}
}

// docJSON builds a generator response whose body is close to bodyLen
// characters and carries exactly the given number of citation links.
func docJSON(t *testing.T, bodyLen, citations int) string {
	t.Helper()

	var cites strings.Builder
	for i := 0; i < citations; i++ {
		fmt.Fprintf(&cites, "[source %d](https://example.com/%d) ", i, i)
	}

	// Six sections share the body budget; the fixed fields take ~350 chars.
	filler := strings.Repeat("Concrete factual sentence about both tools. ", (bodyLen-350)/6/44)
	doc := map[string]any{
		"title":    "Alpha Coder vs Beta Coder",
		"overview": cites.String() + "Both tools assist developers.",
		"sections": map[string]string{
			"pricing":     filler,
			"features":    filler,
			"performance": filler,
			"ease_of_use": filler,
			"use_cases":   filler,
			"community":   filler,
		},
		"pros_cons": map[string][]string{
			"tool1_pros": {"fast"},
			"tool1_cons": {"pricey"},
			"tool2_pros": {"cheap"},
			"tool2_cons": {"slower"},
		},
		"verdict": "Pick Alpha Coder for speed, Beta Coder for budget.",
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal doc: %v", err)
	}
	return string(raw)
}

func runGenerator(t *testing.T, response string) (*domain.Snapshot, int, int, error) {
	t.Helper()

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return response, nil
	}}
	generator := NewGenerator(newTestRunner(provider, testLimits()), generatorConfig(), "m", testLogger())

	snapshot := pairSnapshot()
	accepted, rejected, err := generator.Run(context.Background(), snapshot, pairOpportunities(), 0)
	return snapshot, accepted, rejected, err
}

func TestGenerateRejectsShortContent(t *testing.T) {
	t.Parallel()

	_, accepted, rejected, err := runGenerator(t, docJSON(t, 1400, 3))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 0 || rejected != 1 {
		t.Fatalf("1400 chars with 3 citations must be rejected: accepted=%d rejected=%d", accepted, rejected)
	}
}

func TestGenerateRejectsFewCitations(t *testing.T) {
	t.Parallel()

	_, accepted, rejected, err := runGenerator(t, docJSON(t, 2000, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 0 || rejected != 1 {
		t.Fatalf("2000 chars with 1 citation must be rejected: accepted=%d rejected=%d", accepted, rejected)
	}
}

func TestGenerateAcceptsCompleteDocument(t *testing.T) {
	t.Parallel()

	snapshot, accepted, rejected, err := runGenerator(t, docJSON(t, 2000, 2))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 1 || rejected != 0 {
		t.Fatalf("complete document must be accepted: accepted=%d rejected=%d", accepted, rejected)
	}

	slug := domain.ComparisonSlug("Alpha Coder", "Beta Coder")
	comparison, ok := snapshot.ComparisonBySlug(slug)
	if !ok {
		t.Fatalf("accepted document missing under canonical slug %q", slug)
	}
	if comparison.ContentLength < 1500 || comparison.CitationCount < 2 {
		t.Fatalf("stored gate metrics inconsistent: %+v", comparison)
	}

	for _, id := range []string{"a", "b"} {
		tool, _ := snapshot.ToolByID(id)
		if !tool.HasComparison(slug) {
			t.Fatalf("tool %s not linked to %s", id, slug)
		}
	}
}

func TestGenerateRejectsEmptySection(t *testing.T) {
	t.Parallel()

	raw := docJSON(t, 2000, 2)
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	doc["sections"].(map[string]any)["community"] = ""
	broken, _ := json.Marshal(doc)

	_, accepted, rejected, err := runGenerator(t, string(broken))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 0 || rejected != 1 {
		t.Fatalf("document with empty section must be rejected: accepted=%d rejected=%d", accepted, rejected)
	}
}

func TestGenerateRejectsDisclaimers(t *testing.T) {
	t.Parallel()

	raw := docJSON(t, 2000, 2)
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	doc["verdict"] = "As an AI language model, I cannot recommend one tool."
	broken, _ := json.Marshal(doc)

	_, accepted, rejected, err := runGenerator(t, string(broken))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 0 || rejected != 1 {
		t.Fatalf("disclaimer must reject the document: accepted=%d rejected=%d", accepted, rejected)
	}
}

func TestGenerateSkipsFreshComparison(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		t.Fatalf("fresh comparison must not regenerate")
		return "", nil
	}}
	generator := NewGenerator(newTestRunner(provider, testLimits()), generatorConfig(), "m", testLogger())

	snapshot := pairSnapshot()
	slug := domain.ComparisonSlug("Alpha Coder", "Beta Coder")
	snapshot.PutComparison(domain.Comparison{Slug: slug, Tool1ID: "a", Tool2ID: "b", GeneratedAt: time.Now().Add(-24 * time.Hour)})

	accepted, rejected, err := generator.Run(context.Background(), snapshot, pairOpportunities(), 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 0 || rejected != 0 {
		t.Fatalf("fresh comparison should be a silent skip: accepted=%d rejected=%d", accepted, rejected)
	}
}

// manyPairFixtures builds n disjoint tool pairs with one opportunity each.
func manyPairFixtures(n int) (*domain.Snapshot, domain.OpportunitySet) {
	snapshot := domain.NewSnapshot()
	set := domain.OpportunitySet{GeneratedAt: time.Now()}
	for i := 0; i < n; i++ {
		t1 := domain.Tool{ID: fmt.Sprintf("x%d", i), Name: fmt.Sprintf("X %d", i), URL: fmt.Sprintf("https://x%d.dev", i), Tier: domain.Tier2}
		t2 := domain.Tool{ID: fmt.Sprintf("y%d", i), Name: fmt.Sprintf("Y %d", i), URL: fmt.Sprintf("https://y%d.dev", i), Tier: domain.Tier2}
		snapshot.Tools = append(snapshot.Tools, t1, t2)
		set.Opportunities = append(set.Opportunities, domain.ComparisonOpportunity{
			Tool1ID: t1.ID, Tool2ID: t2.ID, ValueScore: 8, SearchPotential: domain.PotentialHigh, Rationale: longRationale(),
		})
	}
	return snapshot, set
}

func TestGenerateAbortsOnFailureStreak(t *testing.T) {
	t.Parallel()

	limits := testLimits()
	limits.MaxAttempts = 1
	limits.ConsecutiveFailures = 2

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return "", fmt.Errorf("provider down")
	}}
	generator := NewGenerator(newTestRunner(provider, limits), generatorConfig(), "m", testLogger())

	snapshot, set := manyPairFixtures(5)
	_, _, err := generator.Run(context.Background(), snapshot, set, 0)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("expected ErrTooManyFailures, got %v", err)
	}
	if provider.calls != 2 {
		t.Fatalf("run must stop after the failure streak, saw %d provider calls", provider.calls)
	}
}

func TestGenerateAbortsOnRejectionStreak(t *testing.T) {
	t.Parallel()

	limits := testLimits()
	limits.ConsecutiveFailures = 2

	short := docJSON(t, 1400, 3)
	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return short, nil
	}}
	generator := NewGenerator(newTestRunner(provider, limits), generatorConfig(), "m", testLogger())

	snapshot, set := manyPairFixtures(6)
	accepted, rejected, err := generator.Run(context.Background(), snapshot, set, 0)
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("gate rejections must count toward the failure limit, got %v", err)
	}
	if accepted != 0 || rejected != 2 {
		t.Fatalf("run must stop after two rejections in a row: accepted=%d rejected=%d", accepted, rejected)
	}
	if provider.calls != 2 {
		t.Fatalf("remaining opportunities must not generate, saw %d provider calls", provider.calls)
	}
}

func TestGenerateSkipsFreshReversedComparison(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		t.Fatalf("fresh pair must not regenerate under a second slug")
		return "", nil
	}}
	generator := NewGenerator(newTestRunner(provider, testLimits()), generatorConfig(), "m", testLogger())

	snapshot := pairSnapshot()
	reversed := domain.ComparisonSlug("Beta Coder", "Alpha Coder")
	snapshot.PutComparison(domain.Comparison{Slug: reversed, Tool1ID: "b", Tool2ID: "a", GeneratedAt: time.Now().Add(-24 * time.Hour)})

	accepted, rejected, err := generator.Run(context.Background(), snapshot, pairOpportunities(), 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 0 || rejected != 0 {
		t.Fatalf("reversed fresh comparison should be a silent skip: accepted=%d rejected=%d", accepted, rejected)
	}
	if got := len(snapshot.AllComparisons()); got != 1 {
		t.Fatalf("unordered pair must map onto one document, got %d", got)
	}
}

func TestGenerateReplacesStaleReversedComparison(t *testing.T) {
	t.Parallel()

	doc := docJSON(t, 2000, 2)
	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return doc, nil
	}}
	generator := NewGenerator(newTestRunner(provider, testLimits()), generatorConfig(), "m", testLogger())

	snapshot := pairSnapshot()
	reversed := domain.ComparisonSlug("Beta Coder", "Alpha Coder")
	snapshot.PutComparison(domain.Comparison{Slug: reversed, Tool1ID: "b", Tool2ID: "a", GeneratedAt: time.Now().Add(-30 * 24 * time.Hour)})

	accepted, _, err := generator.Run(context.Background(), snapshot, pairOpportunities(), 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if accepted != 1 {
		t.Fatalf("stale document must regenerate, accepted=%d", accepted)
	}
	comparisons := snapshot.AllComparisons()
	if len(comparisons) != 1 {
		t.Fatalf("regeneration must replace, not add: %d documents", len(comparisons))
	}
	if comparisons[0].Slug != reversed {
		t.Fatalf("regenerated document must keep the stored slug %q, got %q", reversed, comparisons[0].Slug)
	}
	if comparisons[0].ContentLength < 1500 {
		t.Fatalf("replacement did not carry the new document: %+v", comparisons[0])
	}
}
