package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

func detectorConfig() config.DetectorConfig {
	return config.DetectorConfig{
		BatchSize:       12,
		MaxComparisons:  50,
		StaleDays:       30,
		MinValueScore:   6,
		MinRationaleLen: 50,
	}
}

func registryOf(n int) *domain.Snapshot {
	snapshot := domain.NewSnapshot()
	for i := 0; i < n; i++ {
		snapshot.Tools = append(snapshot.Tools, domain.Tool{
			ID:          fmt.Sprintf("id-%02d", i),
			Name:        fmt.Sprintf("Tool %02d", i),
			URL:         fmt.Sprintf("https://tool%02d.dev", i),
			Category:    "Developer Tools",
			Tier:        domain.Tier3,
			Description: strings.Repeat("Does something useful. ", 5),
		})
	}
	return snapshot
}

func longRationale() string {
	return "Both tools target the same developer audience and are constantly compared in forums."
}

func TestDetectGates(t *testing.T) {
	t.Parallel()

	proposals := `[
	  {"tool1": "Tool 00", "tool2": "Tool 01", "value_score": 5, "search_potential": "high", "rationale": "` + longRationale() + `"},
	  {"tool1": "Tool 00", "tool2": "Tool 02", "value_score": 6, "search_potential": "low", "rationale": "` + longRationale() + `"},
	  {"tool1": "Tool 00", "tool2": "Tool 03", "value_score": 6, "search_potential": "medium", "rationale": "too short"},
	  {"tool1": "Tool 00", "tool2": "Tool 04", "value_score": 6, "search_potential": "medium", "rationale": "` + longRationale() + `"}
	]`
	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return proposals, nil
	}}

	detector := NewDetector(newTestRunner(provider, testLimits()), detectorConfig(), "m", testLogger())
	set, err := detector.Detect(context.Background(), registryOf(5), domain.OpportunitySet{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if len(set.Opportunities) != 1 {
		t.Fatalf("only the 6/medium/long proposal passes, got %d", len(set.Opportunities))
	}
	opp := set.Opportunities[0]
	if opp.Tool2ID != "id-04" || opp.ValueScore != 6 || opp.SearchPotential != domain.PotentialMedium {
		t.Fatalf("wrong survivor: %+v", opp)
	}
}

func TestDetectEndToEndRanked(t *testing.T) {
	t.Parallel()

	proposals := `[
	  {"tool1": "Tool 00", "tool2": "Tool 01", "value_score": 7, "search_potential": "medium", "rationale": "` + longRationale() + `"},
	  {"tool1": "Tool 02", "tool2": "Tool 03", "value_score": 9, "search_potential": "high", "rationale": "` + longRationale() + `"},
	  {"tool1": "Tool 04", "tool2": "Tool 05", "value_score": 8, "search_potential": "high", "rationale": "` + longRationale() + `"},
	  {"tool1": "Tool 06", "tool2": "Tool 07", "value_score": 9, "search_potential": "low", "rationale": "` + longRationale() + `"}
	]`
	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return proposals, nil
	}}

	detector := NewDetector(newTestRunner(provider, testLimits()), detectorConfig(), "m", testLogger())
	set, err := detector.Detect(context.Background(), registryOf(12), domain.OpportunitySet{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}

	if set.ToolsAnalyzed != 12 {
		t.Fatalf("expected 12 analyzed tools, got %d", set.ToolsAnalyzed)
	}
	if len(set.Opportunities) != 3 {
		t.Fatalf("expected 3 surviving opportunities, got %d", len(set.Opportunities))
	}
	for i := 1; i < len(set.Opportunities); i++ {
		if set.Opportunities[i].ValueScore > set.Opportunities[i-1].ValueScore {
			t.Fatalf("opportunities not ranked descending: %+v", set.Opportunities)
		}
	}
	if set.Opportunities[0].ValueScore != 9 {
		t.Fatalf("highest value must rank first, got %d", set.Opportunities[0].ValueScore)
	}
}

func TestDetectSkipsFreshStoredSet(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		t.Fatalf("fresh stored set must not trigger model calls")
		return "", nil
	}}

	stored := domain.OpportunitySet{
		Opportunities: []domain.ComparisonOpportunity{{Tool1ID: "id-00", Tool2ID: "id-01", ValueScore: 7}},
		GeneratedAt:   time.Now().Add(-24 * time.Hour),
		ToolsAnalyzed: 12,
	}

	detector := NewDetector(newTestRunner(provider, testLimits()), detectorConfig(), "m", testLogger())
	set, err := detector.Detect(context.Background(), registryOf(12), stored)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(set.Opportunities) != 1 || set.ToolsAnalyzed != 12 {
		t.Fatalf("stored set must come back untouched: %+v", set)
	}
}

func TestDetectIgnoresNoIndexTools(t *testing.T) {
	t.Parallel()

	snapshot := registryOf(3)
	for i := range snapshot.Tools {
		snapshot.Tools[i].Tier = domain.NoIndex
	}

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		t.Fatalf("noindex-only registry must not trigger model calls")
		return "", nil
	}}

	detector := NewDetector(newTestRunner(provider, testLimits()), detectorConfig(), "m", testLogger())
	set, err := detector.Detect(context.Background(), snapshot, domain.OpportunitySet{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(set.Opportunities) != 0 || set.ToolsAnalyzed != 0 {
		t.Fatalf("unexpected result: %+v", set)
	}
}

func TestDetectKeepsBestProposalPerPair(t *testing.T) {
	t.Parallel()

	proposals := `[
	  {"tool1": "Tool 00", "tool2": "Tool 01", "value_score": 6, "search_potential": "medium", "rationale": "` + longRationale() + `"},
	  {"tool1": "Tool 01", "tool2": "Tool 00", "value_score": 8, "search_potential": "high", "rationale": "` + longRationale() + `"}
	]`
	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return proposals, nil
	}}

	detector := NewDetector(newTestRunner(provider, testLimits()), detectorConfig(), "m", testLogger())
	set, err := detector.Detect(context.Background(), registryOf(2), domain.OpportunitySet{})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(set.Opportunities) != 1 {
		t.Fatalf("reversed pairs are the same opportunity, got %d", len(set.Opportunities))
	}
	if set.Opportunities[0].ValueScore != 8 {
		t.Fatalf("highest-value duplicate must win, got %d", set.Opportunities[0].ValueScore)
	}
}
