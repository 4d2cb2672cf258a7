package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/infrastructure/llm"
	"ToolCurator/internal/ports"
)

const plausibilitySystemPrompt = `You judge whether a search lead points at a single real AI tool.
Reject news articles, listicles, aggregator pages and anything that is not a product.
Respond with JSON only: {"is_tool": bool, "confidence": 0.0-1.0, "reason": "..."}.`

const verificationSystemPrompt = `You verify an AI tool against its landing page content.
Confirm the page describes the claimed tool, then produce registry copy.
Categories must come from the provided list.
Respond with JSON only:
{"verified": bool, "confidence": 0.0-1.0, "name": "...", "description": "...", "category": "...", "reason": "..."}.
The description must be two to four factual sentences grounded in the page text.`

// Validator turns raw candidates into confidence-gated registry decisions.
// Two gates per candidate: a cheap plausibility check on the lead alone,
// then page verification on the fetched landing page. A candidate below
// either gate is rejected, never stored.
type Validator struct {
	runner  *Runner
	fetcher ports.PageFetcher
	cfg     config.DiscoveryConfig
	model   string
	log     *slog.Logger
}

// NewValidator wires the validation stage for one run.
func NewValidator(runner *Runner, fetcher ports.PageFetcher, cfg config.DiscoveryConfig, model string, log *slog.Logger) *Validator {
	return &Validator{
		runner:  runner,
		fetcher: fetcher,
		cfg:     cfg,
		model:   model,
		log:     log.With("component", "validator"),
	}
}

type plausibilityVerdict struct {
	IsTool     bool    `json:"is_tool"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type verificationVerdict struct {
	Verified    bool    `json:"verified"`
	Confidence  float64 `json:"confidence"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Category    string  `json:"category"`
	Reason      string  `json:"reason"`
}

// Validate gates every candidate and returns the accepted decisions.
// Per-candidate failures are logged and skipped; fatal runner errors stop
// the whole batch.
func (v *Validator) Validate(ctx context.Context, candidates []domain.ToolCandidate, categories []string) ([]domain.ValidationDecision, error) {
	accepted := make([]domain.ValidationDecision, 0, len(candidates))

	for _, cand := range candidates {
		decision, err := v.validateOne(ctx, cand, categories)
		if err != nil {
			if Fatal(err) {
				return accepted, err
			}
			v.log.Warn("candidate validation failed", "url", cand.URL, "error", err)
			continue
		}
		if decision.Accept {
			accepted = append(accepted, decision)
		} else {
			v.log.Debug("candidate rejected", "url", cand.URL, "reason", decision.Rationale)
		}
	}

	return accepted, nil
}

func (v *Validator) validateOne(ctx context.Context, cand domain.ToolCandidate, categories []string) (domain.ValidationDecision, error) {
	rejected := domain.ValidationDecision{Candidate: cand}

	plausible, err := v.checkPlausibility(ctx, cand)
	if err != nil {
		return rejected, err
	}
	if !plausible.IsTool || plausible.Confidence < v.cfg.PlausibilityGate {
		rejected.Confidence = plausible.Confidence
		rejected.Rationale = fmt.Sprintf("plausibility %.2f below %.2f: %s", plausible.Confidence, v.cfg.PlausibilityGate, plausible.Reason)
		return rejected, nil
	}

	page, err := v.fetcher.Fetch(ctx, cand.URL)
	if err != nil {
		return rejected, fmt.Errorf("fetch landing page: %w", err)
	}

	verdict, err := v.verifyPage(ctx, cand, page, categories)
	if err != nil {
		return rejected, err
	}
	if !verdict.Verified || verdict.Confidence < v.cfg.VerificationGate {
		rejected.Confidence = verdict.Confidence
		rejected.Rationale = fmt.Sprintf("verification %.2f below %.2f: %s", verdict.Confidence, v.cfg.VerificationGate, verdict.Reason)
		return rejected, nil
	}

	name := strings.TrimSpace(verdict.Name)
	if name == "" {
		name = cand.Title
	}

	return domain.ValidationDecision{
		Candidate:   cand,
		Accept:      true,
		Confidence:  verdict.Confidence,
		Name:        name,
		Description: strings.TrimSpace(verdict.Description),
		Category:    domain.ClampCategory(verdict.Category, categories),
		Rationale:   verdict.Reason,
	}, nil
}

func (v *Validator) checkPlausibility(ctx context.Context, cand domain.ToolCandidate) (plausibilityVerdict, error) {
	prompt := fmt.Sprintf("Title: %s\nURL: %s\nDescription: %s\nSource query: %s",
		cand.Title, cand.URL, cand.RawDescription, cand.SourceQuery)

	result := v.runner.Call(ctx, ports.ModelRequest{
		Model:  v.model,
		System: plausibilitySystemPrompt,
		Prompt: prompt,
	})
	if result.Failed() {
		return plausibilityVerdict{}, result.Err
	}

	var verdict plausibilityVerdict
	if err := llm.DecodeJSON(result.Text, &verdict); err != nil {
		return plausibilityVerdict{}, fmt.Errorf("decode plausibility verdict: %w", err)
	}
	return verdict, nil
}

func (v *Validator) verifyPage(ctx context.Context, cand domain.ToolCandidate, page ports.Page, categories []string) (verificationVerdict, error) {
	text := page.Text
	if len(text) > 6000 {
		text = text[:6000]
	}
	prompt := fmt.Sprintf("Claimed tool: %s\nClaimed URL: %s\nFinal URL: %s\nPage title: %s\nAllowed categories: %s\n\nPage text:\n%s",
		cand.Title, cand.URL, page.FinalURL, page.Title, strings.Join(categories, ", "), text)

	result := v.runner.Call(ctx, ports.ModelRequest{
		Model:  v.model,
		System: verificationSystemPrompt,
		Prompt: prompt,
	})
	if result.Failed() {
		return verificationVerdict{}, result.Err
	}

	var verdict verificationVerdict
	if err := llm.DecodeJSON(result.Text, &verdict); err != nil {
		return verificationVerdict{}, fmt.Errorf("decode verification verdict: %w", err)
	}
	return verdict, nil
}
