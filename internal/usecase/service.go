package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

// Options carry the shared CLI flags into a pipeline run. Zero values
// defer to configuration.
type Options struct {
	MaxPerRun int
	StaleDays int
	DryRun    bool
	Force     bool
}

// Service owns the pipeline entry points. Each method is one complete
// run: it builds a fresh call gate, executes the stages, replaces the
// registry snapshot, and records a run summary.
type Service struct {
	cfg           config.Config
	provider      ports.ModelProvider
	registry      ports.RegistryStore
	opportunities ports.OpportunityStore
	source        ports.CandidateSource
	fetcher       ports.PageFetcher
	recorder      ports.RunRecorder
	log           *slog.Logger
}

// NewService wires the pipeline entry points over their dependencies.
func NewService(
	cfg config.Config,
	provider ports.ModelProvider,
	registry ports.RegistryStore,
	opportunities ports.OpportunityStore,
	source ports.CandidateSource,
	fetcher ports.PageFetcher,
	recorder ports.RunRecorder,
	log *slog.Logger,
) *Service {
	return &Service{
		cfg:           cfg,
		provider:      provider,
		registry:      registry,
		opportunities: opportunities,
		source:        source,
		fetcher:       fetcher,
		recorder:      recorder,
		log:           log,
	}
}

// Discover runs the full intake pipeline: search leads, validate them,
// deduplicate against the registry, and persist the grown snapshot.
func (s *Service) Discover(ctx context.Context, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("discover")

	err := s.discover(ctx, runner, summary, opts)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) discover(ctx context.Context, runner *Runner, summary *domain.RunSummary, opts Options) error {
	candidates, err := s.source.FetchCandidates(ctx, s.cfg.Discovery.Queries, s.cfg.Discovery.ResultsPerQuery)
	if err != nil {
		return fmt.Errorf("fetch candidates: %w", err)
	}
	if opts.MaxPerRun > 0 && len(candidates) > opts.MaxPerRun {
		candidates = candidates[:opts.MaxPerRun]
	}
	summary.AddMetric("candidates", float64(len(candidates)))

	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	validator := NewValidator(runner, s.fetcher, s.cfg.Discovery, s.cfg.Model.ValidatorModel, s.log)
	decisions, valErr := validator.Validate(ctx, candidates, snapshot.CategorySet())
	summary.AddMetric("validated", float64(len(decisions)))
	if valErr != nil && len(decisions) == 0 {
		return valErr
	}

	dedupe := NewDeduplicator(runner, s.cfg.Model.ValidatorModel, s.log)
	added, merged, dedupeErr := dedupe.Apply(ctx, snapshot, decisions)
	summary.AddMetric("added", float64(added))
	summary.AddMetric("merged", float64(merged))
	if opts.DryRun {
		summary.AddAttribute("dry_run", "true")
	}

	// An aborted run still keeps what the gates already accepted.
	if err := s.persist(ctx, snapshot, opts, added > 0 || merged > 0); err != nil {
		return err
	}
	if valErr != nil {
		return valErr
	}
	if dedupeErr != nil {
		return dedupeErr
	}
	s.log.Info("discovery complete", "candidates", len(candidates), "added", added, "merged", merged)
	return nil
}

// persist replaces the registry snapshot unless the run was dry or
// changed nothing.
func (s *Service) persist(ctx context.Context, snapshot *domain.Snapshot, opts Options, changed bool) error {
	if opts.DryRun || !changed {
		return nil
	}
	if err := s.registry.Replace(ctx, snapshot); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}

// Enhance refreshes stale per-tool content under tier budgets.
func (s *Service) Enhance(ctx context.Context, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("enhance")

	err := s.enhance(ctx, runner, summary, opts)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) enhance(ctx context.Context, runner *Runner, summary *domain.RunSummary, opts Options) error {
	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	enhancer := NewEnhancer(runner, s.cfg.Enhancer, s.cfg.Model.EnhancerModel, s.log)
	enhanced, runErr := enhancer.Run(ctx, snapshot, opts.MaxPerRun)
	summary.AddMetric("enhanced", float64(enhanced))

	if err := s.persist(ctx, snapshot, opts, enhanced > 0); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	s.log.Info("enhancement complete", "enhanced", enhanced)
	return nil
}

// DetectComparisons refreshes the comparison-opportunity set.
func (s *Service) DetectComparisons(ctx context.Context, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("compare-detect")

	err := s.detect(ctx, runner, summary, opts)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) detect(ctx context.Context, runner *Runner, summary *domain.RunSummary, opts Options) error {
	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	stored, err := s.opportunities.Load(ctx)
	if err != nil {
		return err
	}

	cfg := s.cfg.Detector
	if opts.StaleDays > 0 {
		cfg.StaleDays = opts.StaleDays
	}
	if opts.Force {
		stored = domain.OpportunitySet{}
	}

	detector := NewDetector(runner, cfg, s.cfg.Model.DetectorModel, s.log)
	set, err := detector.Detect(ctx, snapshot, stored)
	if err != nil {
		return err
	}
	summary.AddMetric("opportunities", float64(len(set.Opportunities)))
	summary.AddMetric("tools_analyzed", float64(set.ToolsAnalyzed))

	if opts.DryRun {
		summary.AddAttribute("dry_run", "true")
		return nil
	}
	if err := s.opportunities.Save(ctx, set); err != nil {
		return err
	}
	s.log.Info("detection complete", "opportunities", len(set.Opportunities), "tools", set.ToolsAnalyzed)
	return nil
}

// GenerateComparisons turns stored opportunities into accepted documents.
func (s *Service) GenerateComparisons(ctx context.Context, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("compare-generate")

	err := s.generate(ctx, runner, summary, opts)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) generate(ctx context.Context, runner *Runner, summary *domain.RunSummary, opts Options) error {
	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	set, err := s.opportunities.Load(ctx)
	if err != nil {
		return err
	}
	if len(set.Opportunities) == 0 {
		s.log.Info("no opportunities stored, run compare-detect first")
		return nil
	}

	cfg := s.cfg.Generator
	if opts.StaleDays > 0 {
		cfg.StaleDays = opts.StaleDays
	}

	generator := NewGenerator(runner, cfg, s.cfg.Model.GeneratorModel, s.log)
	accepted, rejected, runErr := generator.Run(ctx, snapshot, set, opts.MaxPerRun)
	summary.AddMetric("accepted", float64(accepted))
	summary.AddMetric("rejected", float64(rejected))

	// Documents accepted before an abort stay accepted.
	if err := s.persist(ctx, snapshot, opts, accepted > 0); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	s.log.Info("generation complete", "accepted", accepted, "rejected", rejected)
	return nil
}

// Tier rescores the registry from freshly collected popularity signals.
func (s *Service) Tier(ctx context.Context, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("tier")

	err := s.tier(ctx, runner, summary, opts, nil)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

// TierTraffic rescores the registry with traffic-derived buckets applied
// on top of the popularity signals.
func (s *Service) TierTraffic(ctx context.Context, traffic TrafficStats, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("tier-traffic")

	err := s.tier(ctx, runner, summary, opts, traffic)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) tier(ctx context.Context, runner *Runner, summary *domain.RunSummary, opts Options, traffic TrafficStats) error {
	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	collector := NewSignalCollector(runner, s.cfg.Model.ValidatorModel, s.log)
	signals, collectErr := collector.Collect(ctx, snapshot.Tools, opts.MaxPerRun)
	summary.AddMetric("signals_collected", float64(len(signals)))
	if collectErr != nil && len(signals) == 0 {
		return collectErr
	}

	if len(traffic) > 0 {
		scores := TrafficScores(traffic)
		for id, sig := range signals {
			if tool, ok := snapshot.ToolByID(id); ok {
				sig.TrafficScore = scores[tool.Slug()]
				signals[id] = sig
			}
		}
	}

	scorer := NewTierScorer(CategoryScoresFromTraffic(snapshot.Tools, traffic), s.log)
	changed := scorer.Retier(snapshot, signals)
	summary.AddMetric("tiers_changed", float64(changed))

	// Signals collected before an abort still rescore their tools.
	if err := s.persist(ctx, snapshot, opts, changed > 0); err != nil {
		return err
	}
	if collectErr != nil {
		return collectErr
	}
	s.log.Info("tiering complete", "changed", changed)
	return nil
}

// Recategorize reassigns every tool to the canonical category set.
func (s *Service) Recategorize(ctx context.Context, categories []string, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("recategorize")

	err := s.recategorize(ctx, runner, summary, categories, opts)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) recategorize(ctx context.Context, runner *Runner, summary *domain.RunSummary, categories []string, opts Options) error {
	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	rec := NewRecategorizer(runner, s.cfg.Model.ValidatorModel, s.log)
	moved, runErr := rec.Run(ctx, snapshot, categories)
	summary.AddMetric("moved", float64(moved))
	if opts.DryRun {
		summary.AddAttribute("dry_run", "true")
	}

	if err := s.persist(ctx, snapshot, opts, moved > 0); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	s.log.Info("recategorization complete", "moved", moved)
	return nil
}

// Deduplicate compacts the registry itself, collapsing entries that share
// a normalized URL.
func (s *Service) Deduplicate(ctx context.Context, opts Options) error {
	runner := NewRunner(s.provider, s.cfg.Limits, s.log)
	summary := runner.NewRunSummary("deduplicate")

	err := s.deduplicate(ctx, runner, summary, opts)
	runner.FinishRun(ctx, s.recorder, summary, err)
	return err
}

func (s *Service) deduplicate(ctx context.Context, runner *Runner, summary *domain.RunSummary, opts Options) error {
	snapshot, err := s.registry.Read(ctx)
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}

	dedupe := NewDeduplicator(runner, s.cfg.Model.ValidatorModel, s.log)
	removed := dedupe.Compact(snapshot)
	summary.AddMetric("removed", float64(removed))

	if opts.DryRun || removed == 0 {
		s.log.Info("deduplication dry run or no-op", "removed", removed)
		return nil
	}
	if err := s.registry.Replace(ctx, snapshot); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	s.log.Info("deduplication complete", "removed", removed)
	return nil
}
