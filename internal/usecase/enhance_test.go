package usecase

import (
	"context"
	"strings"
	"testing"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

func enhancerConfig() config.EnhancerConfig {
	return config.EnhancerConfig{MaxPerRun: 25, MinLength: 400}
}

func TestEnhanceRefreshesDueToolsBestTierFirst(t *testing.T) {
	t.Parallel()

	var searchFlags []bool
	provider := &fakeProvider{generate: func(_ int, req ports.ModelRequest) (string, error) {
		searchFlags = append(searchFlags, req.WebSearch)
		return strings.Repeat("A grounded fact about the tool. ", 20), nil
	}}
	enhancer := NewEnhancer(newTestRunner(provider, testLimits()), enhancerConfig(), "m", testLogger())

	snapshot := domain.NewSnapshot()
	snapshot.Tools = []domain.Tool{
		{ID: "t3", Name: "Gamma", URL: "https://gamma.dev", Tier: domain.Tier3},
		{ID: "t1", Name: "Alpha", URL: "https://alpha.dev", Tier: domain.Tier1},
		{ID: "skip", Name: "Quiet", URL: "https://quiet.dev", Tier: domain.NoIndex},
	}

	enhanced, err := enhancer.Run(context.Background(), snapshot, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if enhanced != 2 {
		t.Fatalf("noindex entries never enhance: enhanced=%d", enhanced)
	}

	// Tier1 goes first and gets a search-grounded call; tier3 does not.
	if len(searchFlags) != 2 || !searchFlags[0] || searchFlags[1] {
		t.Fatalf("unexpected web-search usage per tier: %v", searchFlags)
	}

	alpha, _ := snapshot.ToolByID("t1")
	if alpha.Enhancement == "" || alpha.EnhancedAt.IsZero() {
		t.Fatalf("enhanced tool missing content or timestamp: %+v", alpha)
	}
	quiet, _ := snapshot.ToolByID("skip")
	if quiet.Enhancement != "" {
		t.Fatalf("noindex tool was enhanced")
	}
}

func TestEnhanceRejectsShortContent(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		return "too short", nil
	}}
	enhancer := NewEnhancer(newTestRunner(provider, testLimits()), enhancerConfig(), "m", testLogger())

	snapshot := domain.NewSnapshot()
	snapshot.Tools = []domain.Tool{{ID: "t1", Name: "Alpha", URL: "https://alpha.dev", Tier: domain.Tier1}}

	enhanced, err := enhancer.Run(context.Background(), snapshot, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if enhanced != 0 {
		t.Fatalf("short content must be rejected, enhanced=%d", enhanced)
	}
	if snapshot.Tools[0].Enhancement != "" {
		t.Fatalf("rejected content must not be stored")
	}
}

func TestEnhanceSkipsFreshContent(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{generate: func(int, ports.ModelRequest) (string, error) {
		t.Fatalf("fresh content must not be refreshed")
		return "", nil
	}}
	enhancer := NewEnhancer(newTestRunner(provider, testLimits()), enhancerConfig(), "m", testLogger())

	snapshot := domain.NewSnapshot()
	snapshot.Tools = []domain.Tool{{
		ID: "t1", Name: "Alpha", URL: "https://alpha.dev", Tier: domain.Tier1,
		Enhancement: "existing", EnhancedAt: time.Now().Add(-24 * time.Hour),
	}}

	enhanced, err := enhancer.Run(context.Background(), snapshot, 0)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if enhanced != 0 {
		t.Fatalf("fresh tier1 content is inside its 7-day window, enhanced=%d", enhanced)
	}
}
