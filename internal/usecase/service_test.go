package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

type memRegistry struct {
	snapshot *domain.Snapshot
	replaced int
}

var _ ports.RegistryStore = (*memRegistry)(nil)

func (m *memRegistry) Read(context.Context) (*domain.Snapshot, error) {
	return m.snapshot, nil
}

func (m *memRegistry) Replace(_ context.Context, snapshot *domain.Snapshot) error {
	m.snapshot = snapshot
	m.replaced++
	return nil
}

type memOpportunities struct {
	set domain.OpportunitySet
}

var _ ports.OpportunityStore = (*memOpportunities)(nil)

func (m *memOpportunities) Load(context.Context) (domain.OpportunitySet, error) {
	return m.set, nil
}

func (m *memOpportunities) Save(_ context.Context, set domain.OpportunitySet) error {
	m.set = set
	return nil
}

func TestGenerateComparisonsPersistsAcceptedWorkOnAbort(t *testing.T) {
	t.Parallel()

	limits := testLimits()
	limits.MaxAttempts = 1
	limits.ConsecutiveFailures = 1

	cfg := config.Config{
		Model:     config.ModelConfig{GeneratorModel: "m"},
		Generator: generatorConfig(),
		Limits:    limits,
	}

	snapshot := pairSnapshot()
	snapshot.Tools = append(snapshot.Tools,
		domain.Tool{ID: "c", Name: "Gamma Coder", URL: "https://gamma.dev", Tier: domain.Tier1, Description: "Third tool."},
		domain.Tool{ID: "d", Name: "Delta Coder", URL: "https://delta.dev", Tier: domain.Tier1, Description: "Fourth tool."},
	)
	set := pairOpportunities()
	set.Opportunities = append(set.Opportunities, domain.ComparisonOpportunity{
		Tool1ID: "c", Tool2ID: "d", ValueScore: 7, SearchPotential: domain.PotentialHigh, Rationale: longRationale(),
	})
	set.GeneratedAt = time.Now()

	doc := docJSON(t, 2000, 2)
	provider := &fakeProvider{generate: func(call int, _ ports.ModelRequest) (string, error) {
		if call == 1 {
			return doc, nil
		}
		return "", fmt.Errorf("provider down")
	}}

	registry := &memRegistry{snapshot: snapshot}
	service := NewService(cfg, provider, registry, &memOpportunities{set: set}, nil, nil, nil, testLogger())

	err := service.GenerateComparisons(context.Background(), Options{})
	if !errors.Is(err, ErrTooManyFailures) {
		t.Fatalf("expected the abort error to propagate, got %v", err)
	}
	if registry.replaced != 1 {
		t.Fatalf("aborted run must persist the accepted document, replaced=%d", registry.replaced)
	}
	if got := len(registry.snapshot.AllComparisons()); got != 1 {
		t.Fatalf("persisted snapshot must hold the accepted document, got %d", got)
	}
}
