package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ToolCurator/internal/config"
	"ToolCurator/internal/domain"
	"ToolCurator/internal/ports"
)

// ErrBudgetExhausted is returned once a run's estimated spend reaches the
// configured ceiling. The run stops before the call that would exceed it.
var ErrBudgetExhausted = errors.New("call budget exhausted")

// ErrTooManyFailures aborts a run after the configured number of
// consecutive failed calls.
var ErrTooManyFailures = errors.New("too many consecutive call failures")

// CallResult is the outcome of one gated model call including retries.
// Err is set instead of raised; callers branch on it explicitly.
type CallResult struct {
	Text     string
	Attempts int
	Err      error
}

// Failed reports whether the call ultimately produced no usable text.
func (r CallResult) Failed() bool {
	return r.Err != nil
}

// Runner gates every model call of one pipeline run: per-call retry with
// backoff, a run-level cost ceiling, and a consecutive-failure abort. One
// Runner per run; safe for concurrent callers.
type Runner struct {
	provider ports.ModelProvider
	limits   config.LimitsConfig
	log      *slog.Logger

	mu            sync.Mutex
	calls         int
	spentCents    int
	failureStreak int

	sleep func(time.Duration)
	now   func() time.Time
}

// NewRunner wires the gate over a provider for one pipeline run.
func NewRunner(provider ports.ModelProvider, limits config.LimitsConfig, log *slog.Logger) *Runner {
	return &Runner{
		provider: provider,
		limits:   limits,
		log:      log.With("component", "runner"),
		sleep:    time.Sleep,
		now:      time.Now,
	}
}

// Call performs one gated model call. Budget and failure-streak checks run
// before the provider is touched; their errors wrap the package sentinels.
func (r *Runner) Call(ctx context.Context, req ports.ModelRequest) CallResult {
	if err := r.admit(); err != nil {
		return CallResult{Err: err}
	}

	var lastErr error
	for attempt := 1; attempt <= r.limits.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return CallResult{Attempts: attempt - 1, Err: err}
		}

		text, err := r.provider.Generate(ctx, req)
		if err == nil {
			r.settle(true)
			return CallResult{Text: text, Attempts: attempt}
		}

		lastErr = err
		r.log.Warn("model call failed", "model", req.Model, "attempt", attempt, "error", err)
		if attempt < r.limits.MaxAttempts {
			r.sleep(r.limits.RetryBackoff * time.Duration(attempt))
		}
	}

	r.settle(false)
	return CallResult{
		Attempts: r.limits.MaxAttempts,
		Err:      fmt.Errorf("call failed after %d attempts: %w", r.limits.MaxAttempts, lastErr),
	}
}

// admit charges the call against the budget, or refuses it.
func (r *Runner) admit() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.limits.ConsecutiveFailures > 0 && r.failureStreak >= r.limits.ConsecutiveFailures {
		return fmt.Errorf("%w: %d in a row", ErrTooManyFailures, r.failureStreak)
	}
	if r.limits.CostCeilingCents > 0 && r.spentCents+r.limits.CostPerCallCents > r.limits.CostCeilingCents {
		return fmt.Errorf("%w: spent %d of %d cents", ErrBudgetExhausted, r.spentCents, r.limits.CostCeilingCents)
	}

	r.calls++
	r.spentCents += r.limits.CostPerCallCents
	return nil
}

func (r *Runner) settle(success bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if success {
		r.failureStreak = 0
	} else {
		r.failureStreak++
	}
}

// Fatal reports whether the error means the whole run must stop, as opposed
// to skipping the current item.
func Fatal(err error) bool {
	return errors.Is(err, ErrBudgetExhausted) ||
		errors.Is(err, ErrTooManyFailures) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// FailureLimit returns the configured consecutive-failure limit. Stages
// whose quality gates reject results count those rejections against the
// same limit.
func (r *Runner) FailureLimit() int {
	return r.limits.ConsecutiveFailures
}

// Calls returns how many calls this run admitted.
func (r *Runner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// SpentCents returns the estimated spend of this run.
func (r *Runner) SpentCents() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.spentCents
}

// NewRunSummary opens a run record for the named pipeline.
func (r *Runner) NewRunSummary(pipeline string) *domain.RunSummary {
	return &domain.RunSummary{
		Pipeline:  pipeline,
		Outcome:   domain.OutcomeSuccess,
		StartedAt: r.now(),
	}
}

// FinishRun stamps the summary, classifies the outcome from err, and writes
// it to the recorder. Recording failures are logged, never fatal.
func (r *Runner) FinishRun(ctx context.Context, recorder ports.RunRecorder, summary *domain.RunSummary, err error) {
	summary.FinishedAt = r.now()
	summary.Duration = summary.FinishedAt.Sub(summary.StartedAt)
	summary.AddMetric("model_calls", float64(r.Calls()))
	summary.AddMetric("spend_cents", float64(r.SpentCents()))

	switch {
	case err == nil:
		summary.Outcome = domain.OutcomeSuccess
	case Fatal(err):
		summary.Outcome = domain.OutcomeAborted
		summary.ErrorNote = err.Error()
	default:
		summary.Outcome = domain.OutcomeError
		summary.ErrorNote = err.Error()
	}

	if recorder == nil {
		return
	}
	if recErr := recorder.Record(ctx, *summary); recErr != nil {
		r.log.Warn("run history write failed", "pipeline", summary.Pipeline, "error", recErr)
	}
}
