package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ToolCurator/internal/app"
	"ToolCurator/internal/config"
	"ToolCurator/internal/usecase"
)

type rootFlags struct {
	maxPerRun int
	staleDays int
	dryRun    bool
	yes       bool
	force     bool
}

func (f rootFlags) options() usecase.Options {
	return usecase.Options{
		MaxPerRun: f.maxPerRun,
		StaleDays: f.staleDays,
		DryRun:    f.dryRun,
		Force:     f.force,
	}
}

func newRootCommand(cfg config.Config, logger *slog.Logger) *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "toolcurator",
		Short:         "Curated AI tool registry pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().IntVar(&flags.maxPerRun, "max-per-run", 0, "cap items processed this run (0 = configured default)")
	root.PersistentFlags().IntVar(&flags.staleDays, "stale-days", 0, "override staleness window in days (0 = configured default)")
	root.PersistentFlags().BoolVar(&flags.dryRun, "dry-run", false, "run the pipeline without writing results")
	root.PersistentFlags().BoolVarP(&flags.yes, "yes", "y", false, "skip interactive confirmation")
	root.PersistentFlags().BoolVar(&flags.force, "force", false, "ignore freshness checks and recompute")

	// The application opens stores and the model client, so it is built
	// once a subcommand actually runs, not at parse time.
	withApp := func(run func(ctx context.Context, a *app.Application) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			return run(cmd.Context(), a)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "discover",
			Short: "Search for new tools, validate and merge them into the registry",
			RunE: withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.Discover(ctx, flags.options())
			}),
		},
		&cobra.Command{
			Use:   "enhance",
			Short: "Refresh stale per-tool content under tier budgets",
			RunE: withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.Enhance(ctx, flags.options())
			}),
		},
		&cobra.Command{
			Use:   "compare-detect",
			Short: "Detect comparison opportunities between registry tools",
			RunE: withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.DetectComparisons(ctx, flags.options())
			}),
		},
		&cobra.Command{
			Use:   "compare-generate",
			Short: "Generate comparison documents from stored opportunities",
			RunE: withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.GenerateComparisons(ctx, flags.options())
			}),
		},
		&cobra.Command{
			Use:   "tier",
			Short: "Rescore and retier every registry entry",
			RunE: withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.Tier(ctx, flags.options())
			}),
		},
		newTierTrafficCommand(flags, withApp),
		newRecategorizeCommand(flags, withApp),
		newDeduplicateCommand(flags, withApp),
		newHistoryCommand(withApp),
	)

	return root
}

func newTierTrafficCommand(flags *rootFlags, withApp func(func(context.Context, *app.Application) error) func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "tier-traffic <traffic.json>",
		Short: "Retier using an analytics traffic export (slug to 30-day pageviews)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			traffic, err := loadTraffic(args[0])
			if err != nil {
				return err
			}
			return withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.TierTraffic(ctx, traffic, flags.options())
			})(cmd, nil)
		},
	}
}

func newRecategorizeCommand(flags *rootFlags, withApp func(func(context.Context, *app.Application) error) func(*cobra.Command, []string) error) *cobra.Command {
	var categories []string
	cmd := &cobra.Command{
		Use:   "recategorize",
		Short: "Reassign every tool to the canonical category set",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !flags.yes && !confirm("Recategorize the whole registry?") {
				return fmt.Errorf("aborted")
			}
			return withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.Recategorize(ctx, categories, flags.options())
			})(cmd, nil)
		},
	}
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "category set to install (default: built-in set)")
	return cmd
}

func newDeduplicateCommand(flags *rootFlags, withApp func(func(context.Context, *app.Application) error) func(*cobra.Command, []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   "deduplicate",
		Short: "Collapse registry entries that share a normalized URL",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !flags.yes && !flags.dryRun && !confirm("Compact the registry in place?") {
				return fmt.Errorf("aborted")
			}
			return withApp(func(ctx context.Context, a *app.Application) error {
				return a.Service.Deduplicate(ctx, flags.options())
			})(cmd, nil)
		},
	}
}

func newHistoryCommand(withApp func(func(context.Context, *app.Application) error) func(*cobra.Command, []string) error) *cobra.Command {
	var pipeline string
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent pipeline runs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(ctx context.Context, a *app.Application) error {
				runs, err := a.RunLog.History(ctx, pipeline, limit)
				if err != nil {
					return err
				}
				for _, run := range runs {
					fmt.Printf("%s  %-18s %-8s %8s  %s\n",
						run.FinishedAt.Format("2006-01-02 15:04"),
						run.Pipeline,
						run.Outcome,
						run.Duration.Truncate(time.Millisecond),
						run.ErrorNote)
				}
				return nil
			})(cmd, nil)
		},
	}
	cmd.Flags().StringVar(&pipeline, "pipeline", "", "only runs of this pipeline")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func loadTraffic(path string) (usecase.TrafficStats, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read traffic export: %w", err)
	}
	var traffic usecase.TrafficStats
	if err := json.Unmarshal(raw, &traffic); err != nil {
		return nil, fmt.Errorf("parse traffic export: %w", err)
	}
	return traffic, nil
}

func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
