package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

const generatorSystemPrompt = `You write a factual, citation-backed comparison of two AI tools for readers choosing between them.
Ground every claim in web search results and cite sources as markdown links.
Respond with JSON only:
{"title": "...", "overview": "...",
 "sections": {"pricing": "...", "features": "...", "performance": "...", "ease_of_use": "...", "use_cases": "...", "community": "..."},
 "pros_cons": {"tool1_pros": [...], "tool1_cons": [...], "tool2_pros": [...], "tool2_cons": [...]},
 "verdict": "..."}.
Every section must be substantial prose with concrete facts. Never write meta commentary about being an AI or lacking information.`

// Generator turns detected opportunities into accepted comparison
// documents. Every generated document passes length, citation, section
// and disclaimer gates before the registry sees it; a rejected document
// is discarded whole.
type Generator struct {
	runner *Runner
	cfg    config.GeneratorConfig
	model  string
	log    *slog.Logger
	now    func() time.Time
}

// NewGenerator wires the generation stage for one run.
func NewGenerator(runner *Runner, cfg config.GeneratorConfig, model string, log *slog.Logger) *Generator {
	return &Generator{
		runner: runner,
		cfg:    cfg,
		model:  model,
		log:    log.With("component", "generator"),
		now:    time.Now,
	}
}

type generatedDoc struct {
	Title    string                    `json:"title"`
	Overview string                    `json:"overview"`
	Sections domain.ComparisonSections `json:"sections"`
	ProsCons domain.ProsCons           `json:"pros_cons"`
	Verdict  string                    `json:"verdict"`
}

// Run walks the ranked opportunity set and generates documents until the
// per-run cap, the budget, or the failure streak stops it. It mutates the
// snapshot through PutComparison and returns how many documents were
// accepted and how many attempts were rejected by the quality gates.
func (g *Generator) Run(ctx context.Context, snapshot *domain.Snapshot, set domain.OpportunitySet, maxPerRun int) (accepted, rejected int, err error) {
	if maxPerRun <= 0 {
		maxPerRun = g.cfg.MaxPerRun
	}
	window := time.Duration(g.cfg.StaleDays) * 24 * time.Hour
	rejectedStreak := 0

	for _, opp := range set.Opportunities {
		if accepted >= maxPerRun {
			break
		}

		tool1, ok1 := snapshot.ToolByID(opp.Tool1ID)
		tool2, ok2 := snapshot.ToolByID(opp.Tool2ID)
		if !ok1 || !ok2 {
			g.log.Debug("opportunity references missing tool", "tool1", opp.Tool1ID, "tool2", opp.Tool2ID)
			continue
		}

		// A pair detected in either order maps onto one stored document:
		// reuse the slug the registry already holds for the pair.
		slug := domain.ComparisonSlug(tool1.Name, tool2.Name)
		if _, ok := snapshot.ComparisonBySlug(slug); !ok {
			if reversed := domain.ComparisonSlug(tool2.Name, tool1.Name); reversed != slug {
				if _, ok := snapshot.ComparisonBySlug(reversed); ok {
					slug = reversed
				}
			}
		}
		if existing, ok := snapshot.ComparisonBySlug(slug); ok && !existing.Stale(window, g.now()) {
			continue
		}

		comparison, genErr := g.generateOne(ctx, *tool1, *tool2, opp, slug)
		if genErr != nil {
			if Fatal(genErr) {
				return accepted, rejected, genErr
			}
			g.log.Warn("comparison rejected", "slug", slug, "error", genErr)
			rejected++
			rejectedStreak++
			if limit := g.runner.FailureLimit(); limit > 0 && rejectedStreak >= limit {
				return accepted, rejected, fmt.Errorf("%w: %d rejected documents in a row", ErrTooManyFailures, rejectedStreak)
			}
			continue
		}

		snapshot.PutComparison(comparison)
		accepted++
		rejectedStreak = 0
		g.log.Info("comparison accepted", "slug", slug, "length", comparison.ContentLength, "citations", comparison.CitationCount)
	}

	return accepted, rejected, nil
}

func (g *Generator) generateOne(ctx context.Context, tool1, tool2 domain.Tool, opp domain.ComparisonOpportunity, slug string) (domain.Comparison, error) {
	prompt := fmt.Sprintf(`Compare these two AI tools.

Tool 1: %s
URL: %s
Description: %s

Tool 2: %s
URL: %s
Description: %s

Why this comparison matters: %s`,
		tool1.Name, tool1.URL, tool1.Description,
		tool2.Name, tool2.URL, tool2.Description,
		opp.Rationale)

	result := g.runner.Call(ctx, ports.ModelRequest{
		Model:     g.model,
		System:    generatorSystemPrompt,
		Prompt:    prompt,
		WebSearch: true,
	})
	if result.Failed() {
		return domain.Comparison{}, result.Err
	}

	var doc generatedDoc
	if err := llm.DecodeJSON(result.Text, &doc); err != nil {
		return domain.Comparison{}, fmt.Errorf("decode document: %w", err)
	}

	body := documentBody(doc)
	comparison := domain.Comparison{
		Slug:          slug,
		Tool1ID:       tool1.ID,
		Tool2ID:       tool2.ID,
		Title:         strings.TrimSpace(doc.Title),
		Overview:      strings.TrimSpace(doc.Overview),
		Sections:      doc.Sections,
		ProsCons:      doc.ProsCons,
		Verdict:       strings.TrimSpace(doc.Verdict),
		CitationCount: llm.CountCitations(body),
		ContentLength: len(body),
		GeneratedAt:   g.now(),
	}

	if err := g.gate(comparison, body); err != nil {
		return domain.Comparison{}, err
	}
	return comparison, nil
}

// gate enforces the acceptance rules. A document failing any rule is
// rejected whole; partial documents never reach the registry.
func (g *Generator) gate(c domain.Comparison, body string) error {
	if c.ContentLength < g.cfg.MinLength {
		return fmt.Errorf("content length %d below %d", c.ContentLength, g.cfg.MinLength)
	}
	if c.CitationCount < g.cfg.MinCitations {
		return fmt.Errorf("citation count %d below %d", c.CitationCount, g.cfg.MinCitations)
	}
	for _, section := range c.Sections.All() {
		if strings.TrimSpace(section.Text) == "" {
			return fmt.Errorf("section %s is empty", section.Name)
		}
	}
	if len(c.ProsCons.Tool1Pros) == 0 || len(c.ProsCons.Tool1Cons) == 0 ||
		len(c.ProsCons.Tool2Pros) == 0 || len(c.ProsCons.Tool2Cons) == 0 {
		return fmt.Errorf("pros and cons must cover both tools")
	}
	if c.Title == "" || c.Overview == "" || c.Verdict == "" {
		return fmt.Errorf("title, overview and verdict are required")
	}
	if llm.ContainsDisclaimer(body) {
		return fmt.Errorf("document contains model disclaimers")
	}
	return nil
}

// documentBody is the text the length and citation gates measure: every
// prose field of the document.
func documentBody(doc generatedDoc) string {
	var b strings.Builder
	b.WriteString(doc.Overview)
	for _, section := range doc.Sections.All() {
		b.WriteString("\n")
		b.WriteString(section.Text)
	}
	for _, list := range [][]string{doc.ProsCons.Tool1Pros, doc.ProsCons.Tool1Cons, doc.ProsCons.Tool2Pros, doc.ProsCons.Tool2Cons} {
		for _, item := range list {
			b.WriteString("\n")
			b.WriteString(item)
		}
	}
	b.WriteString("\n")
	b.WriteString(doc.Verdict)
	return b.String()
}
