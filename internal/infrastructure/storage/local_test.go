package storage

import (
	"context"
	"errors"
	"testing"

	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	ctx := context.Background()

	if _, err := store.Get(ctx, "missing.json"); !errors.Is(err, ports.ErrBlobNotFound) {
		t.Fatalf("expected ErrBlobNotFound, got %v", err)
	}

	payload := []byte(`{"hello": "world"}`)
	if err := store.Put(ctx, "data.json", payload, "application/json"); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := store.Get(ctx, "data.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("round trip mismatch: %s", got)
	}

	// Overwrite must fully replace the previous object.
	if err := store.Put(ctx, "data.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, _ = store.Get(ctx, "data.json")
	if string(got) != "{}" {
		t.Fatalf("overwrite left stale content: %s", got)
	}
}

func TestOpportunityStoreEmptyWhenAbsent(t *testing.T) {
	t.Parallel()

	blobs, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	store := NewOpportunityStore(blobs)
	ctx := context.Background()

	set, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(set.Opportunities) != 0 || !set.GeneratedAt.IsZero() {
		t.Fatalf("absent blob must yield an empty set: %+v", set)
	}

	set.Opportunities = []domain.ComparisonOpportunity{{Tool1ID: "a", Tool2ID: "b", ValueScore: 7}}
	if err := store.Save(ctx, set); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if len(got.Opportunities) != 1 || got.Opportunities[0].ValueScore != 7 {
		t.Fatalf("round trip lost data: %+v", got)
	}
}
