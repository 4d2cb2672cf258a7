package domain

import (
	"testing"
	"time"
)

func TestPutComparisonLinksBothTools(t *testing.T) {
	t.Parallel()

	snapshot := NewSnapshot()
	snapshot.Tools = []Tool{
		{ID: "a", Name: "Alpha"},
		{ID: "b", Name: "Beta"},
	}

	c := Comparison{Slug: "alpha-vs-beta", Tool1ID: "a", Tool2ID: "b"}
	snapshot.PutComparison(c)
	// Replacing under the same slug must not duplicate references.
	snapshot.PutComparison(c)

	for _, id := range []string{"a", "b"} {
		tool, ok := snapshot.ToolByID(id)
		if !ok {
			t.Fatalf("tool %s missing", id)
		}
		if len(tool.Comparisons) != 1 || tool.Comparisons[0] != "alpha-vs-beta" {
			t.Fatalf("tool %s references %v", id, tool.Comparisons)
		}
	}
	if len(snapshot.Comparisons) != 1 {
		t.Fatalf("expected 1 stored comparison, got %d", len(snapshot.Comparisons))
	}
}

func TestAllComparisonsNewestFirst(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC)
	snapshot := NewSnapshot()
	snapshot.PutComparison(Comparison{Slug: "old-vs-older", GeneratedAt: base})
	snapshot.PutComparison(Comparison{Slug: "new-vs-newer", GeneratedAt: base.Add(48 * time.Hour)})

	all := snapshot.AllComparisons()
	if len(all) != 2 {
		t.Fatalf("expected 2 comparisons, got %d", len(all))
	}
	if all[0].Slug != "new-vs-newer" {
		t.Fatalf("expected newest first, got %s", all[0].Slug)
	}
}

func TestToolByURLNormalizes(t *testing.T) {
	t.Parallel()

	snapshot := NewSnapshot()
	snapshot.Tools = []Tool{{ID: "a", Name: "Alpha", URL: "https://www.alpha.dev/"}}

	tool, ok := snapshot.ToolByURL("http://alpha.dev")
	if !ok {
		t.Fatalf("normalized lookup failed")
	}
	if tool.ID != "a" {
		t.Fatalf("unexpected tool: %s", tool.ID)
	}
}

func TestCategorySetFallsBack(t *testing.T) {
	t.Parallel()

	snapshot := &Snapshot{}
	if got := snapshot.CategorySet(); len(got) != len(DefaultCategories) {
		t.Fatalf("expected default categories, got %v", got)
	}
}
