package domain

import (
	"strings"
	"time"
)

// ToolCandidate is a raw lead produced by a search provider. It lives only
// for the duration of one discovery run.
type ToolCandidate struct {
	Title          string `json:"title"`
	URL            string `json:"url"`
	RawDescription string `json:"raw_description"`
	SourceQuery    string `json:"source_query"`
}

// Tool is the registry entity. Unique by normalized URL; never deleted,
// only merged or superseded.
type Tool struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	URL         string      `json:"url"`
	Category    string      `json:"category"`
	Tier        QualityTier `json:"quality_tier"`
	Score       int         `json:"score"`
	Enhancement string      `json:"enhancement_content,omitempty"`
	EnhancedAt  time.Time   `json:"enhanced_at,omitempty"`
	Comparisons []string    `json:"comparisons,omitempty"`
	LastUpdated time.Time   `json:"last_updated"`
}

// Slug returns the canonical URL path segment for this tool.
func (t Tool) Slug() string {
	return Slugify(t.Name)
}

// HasComparison reports whether the tool already references a comparison slug.
func (t Tool) HasComparison(slug string) bool {
	for _, s := range t.Comparisons {
		if s == slug {
			return true
		}
	}
	return false
}

// AddComparison appends a comparison slug reference, keeping the set unique.
func (t *Tool) AddComparison(slug string) {
	if !t.HasComparison(slug) {
		t.Comparisons = append(t.Comparisons, slug)
	}
}

// ValidationDecision captures one confidence-gated classification of a candidate.
// Produced once per candidate and never persisted.
type ValidationDecision struct {
	Candidate   ToolCandidate
	Accept      bool
	Confidence  float64
	Name        string
	Description string
	Category    string
	Rationale   string
}

// DuplicateDecision enumerates the outcomes of duplicate analysis.
type DuplicateDecision string

const (
	DecisionNew    DuplicateDecision = "new"
	DecisionMerge  DuplicateDecision = "merge"
	DecisionIgnore DuplicateDecision = "ignore"
)

// DuplicateStatus drives the registry write for one candidate. A confidence
// below the engine's acceptance threshold never produces a merge.
type DuplicateStatus struct {
	MatchedID  string
	Confidence float64
	Decision   DuplicateDecision
	Rationale  string
}

// SearchPotential tags an opportunity's expected search traffic.
type SearchPotential string

const (
	PotentialHigh   SearchPotential = "high"
	PotentialMedium SearchPotential = "medium"
	PotentialLow    SearchPotential = "low"
)

// ComparisonOpportunity is a detected, not-yet-generated comparison pair.
type ComparisonOpportunity struct {
	Tool1ID         string          `json:"tool1_id"`
	Tool2ID         string          `json:"tool2_id"`
	ValueScore      int             `json:"value_score"`
	SearchPotential SearchPotential `json:"search_potential"`
	Rationale       string          `json:"rationale"`
	Category        string          `json:"category"`
	DetectedAt      time.Time       `json:"detected_at"`
}

// PairKey returns the unordered identity of the pair, used for deduplication.
func (o ComparisonOpportunity) PairKey() string {
	a, b := strings.ToLower(o.Tool1ID), strings.ToLower(o.Tool2ID)
	if a > b {
		a, b = b, a
	}
	return a + "|" + b
}

// OpportunitySet is the persisted output of one detection run.
type OpportunitySet struct {
	Opportunities []ComparisonOpportunity `json:"opportunities"`
	GeneratedAt   time.Time               `json:"generated_at"`
	ToolsAnalyzed int                     `json:"tools_analyzed"`
}

// Stale reports whether the set is older than the given window. An empty
// set is always stale.
func (s OpportunitySet) Stale(window time.Duration, now time.Time) bool {
	if s.GeneratedAt.IsZero() {
		return true
	}
	return now.Sub(s.GeneratedAt) >= window
}

// ComparisonSections holds the six required long-form sections.
type ComparisonSections struct {
	Pricing     string `json:"pricing"`
	Features    string `json:"features"`
	Performance string `json:"performance"`
	EaseOfUse   string `json:"ease_of_use"`
	UseCases    string `json:"use_cases"`
	Community   string `json:"community"`
}

// All returns the sections in stable order with their names.
func (s ComparisonSections) All() []struct{ Name, Text string } {
	return []struct{ Name, Text string }{
		{"pricing", s.Pricing},
		{"features", s.Features},
		{"performance", s.Performance},
		{"ease_of_use", s.EaseOfUse},
		{"use_cases", s.UseCases},
		{"community", s.Community},
	}
}

// ProsCons lists advantages and limitations for both tools of a pair.
type ProsCons struct {
	Tool1Pros []string `json:"tool1_pros"`
	Tool1Cons []string `json:"tool1_cons"`
	Tool2Pros []string `json:"tool2_pros"`
	Tool2Cons []string `json:"tool2_cons"`
}

// Comparison is an accepted comparison document. Immutable once accepted;
// regeneration replaces the whole value under the same slug.
type Comparison struct {
	Slug          string             `json:"slug"`
	Tool1ID       string             `json:"tool1_id"`
	Tool2ID       string             `json:"tool2_id"`
	Title         string             `json:"title"`
	Overview      string             `json:"overview"`
	Sections      ComparisonSections `json:"sections"`
	ProsCons      ProsCons           `json:"pros_cons"`
	Verdict       string             `json:"verdict"`
	CitationCount int                `json:"citation_count"`
	ContentLength int                `json:"content_length"`
	GeneratedAt   time.Time          `json:"generated_at"`
}

// Stale reports whether the document is older than the given window.
func (c Comparison) Stale(window time.Duration, now time.Time) bool {
	if c.GeneratedAt.IsZero() {
		return true
	}
	return now.Sub(c.GeneratedAt) >= window
}
