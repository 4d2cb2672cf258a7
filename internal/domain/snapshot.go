package domain

import (
	"sort"
	"strings"
	"time"
)

// Snapshot is the full registry dataset, read and replaced as one unit.
// Comparisons are owned by the slug-keyed index; tools carry only slug
// references, so a comparison is stored exactly once.
type Snapshot struct {
	Revision    int64                 `json:"revision"`
	Tools       []Tool                `json:"tools"`
	Comparisons map[string]Comparison `json:"comparisons,omitempty"`
	Categories  []string              `json:"categories,omitempty"`
	LastUpdated time.Time             `json:"last_updated"`
}

// NewSnapshot returns an empty registry with the default category set.
func NewSnapshot() *Snapshot {
	return &Snapshot{
		Comparisons: map[string]Comparison{},
		Categories:  append([]string(nil), DefaultCategories...),
	}
}

// CategorySet returns the allowed categories, falling back to the defaults
// for snapshots written before the set was persisted.
func (s *Snapshot) CategorySet() []string {
	if len(s.Categories) == 0 {
		return DefaultCategories
	}
	return s.Categories
}

// ToolByURL finds the tool owning the given URL under normalization.
func (s *Snapshot) ToolByURL(rawURL string) (*Tool, bool) {
	want := NormalizeURL(rawURL)
	if want == "" {
		return nil, false
	}
	for i := range s.Tools {
		if NormalizeURL(s.Tools[i].URL) == want {
			return &s.Tools[i], true
		}
	}
	return nil, false
}

// ToolByID finds a tool by registry id.
func (s *Snapshot) ToolByID(id string) (*Tool, bool) {
	for i := range s.Tools {
		if s.Tools[i].ID == id {
			return &s.Tools[i], true
		}
	}
	return nil, false
}

// ToolByName finds a tool by exact case-insensitive name.
func (s *Snapshot) ToolByName(name string) (*Tool, bool) {
	want := strings.ToLower(strings.TrimSpace(name))
	for i := range s.Tools {
		if strings.ToLower(s.Tools[i].Name) == want {
			return &s.Tools[i], true
		}
	}
	return nil, false
}

// ToolBySlug resolves a tool by its canonical slug.
func (s *Snapshot) ToolBySlug(slug string) (*Tool, bool) {
	for i := range s.Tools {
		if s.Tools[i].Slug() == slug {
			return &s.Tools[i], true
		}
	}
	return nil, false
}

// ToolsByCategory groups tools under their category name.
func (s *Snapshot) ToolsByCategory() map[string][]Tool {
	grouped := map[string][]Tool{}
	for _, tool := range s.Tools {
		cat := tool.Category
		if cat == "" {
			cat = CategoryOther
		}
		grouped[cat] = append(grouped[cat], tool)
	}
	return grouped
}

// AllComparisons returns every accepted comparison exactly once, newest
// first. Deduplication is structural: the slug index is the single owner,
// regardless of how many tools reference a slug.
func (s *Snapshot) AllComparisons() []Comparison {
	out := make([]Comparison, 0, len(s.Comparisons))
	for _, c := range s.Comparisons {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].GeneratedAt.Equal(out[j].GeneratedAt) {
			return out[i].GeneratedAt.After(out[j].GeneratedAt)
		}
		return out[i].Slug < out[j].Slug
	})
	return out
}

// ComparisonBySlug resolves a comparison document.
func (s *Snapshot) ComparisonBySlug(slug string) (Comparison, bool) {
	c, ok := s.Comparisons[slug]
	return c, ok
}

// PutComparison installs or replaces the document under its slug and links
// it from both participating tools.
func (s *Snapshot) PutComparison(c Comparison) {
	if s.Comparisons == nil {
		s.Comparisons = map[string]Comparison{}
	}
	s.Comparisons[c.Slug] = c
	for _, id := range []string{c.Tool1ID, c.Tool2ID} {
		if tool, ok := s.ToolByID(id); ok {
			tool.AddComparison(c.Slug)
		}
	}
}
