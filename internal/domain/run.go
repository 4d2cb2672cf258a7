package domain

import "time"

// RunOutcome classifies how a pipeline invocation ended.
type RunOutcome string

const (
	OutcomeSuccess RunOutcome = "success"
	OutcomeError   RunOutcome = "error"
	OutcomeAborted RunOutcome = "aborted"
)

// RunSummary is the structured record of one pipeline invocation. One per
// run, appended to the run-history log.
type RunSummary struct {
	Pipeline   string             `json:"pipeline"`
	Outcome    RunOutcome         `json:"outcome"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt time.Time          `json:"finished_at"`
	Duration   time.Duration      `json:"duration"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Attributes map[string]string  `json:"attributes,omitempty"`
	ErrorNote  string             `json:"error_note,omitempty"`
}

// AddMetric records a numeric counter or duration under a stable name.
func (r *RunSummary) AddMetric(name string, value float64) {
	if r.Metrics == nil {
		r.Metrics = map[string]float64{}
	}
	r.Metrics[name] = value
}

// AddAttribute attaches non-numeric run metadata (flags, skip reasons).
func (r *RunSummary) AddAttribute(name, value string) {
	if r.Attributes == nil {
		r.Attributes = map[string]string{}
	}
	r.Attributes[name] = value
}
