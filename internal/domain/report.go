package domain

import "time"

// CheckResult is the outcome of processing one alias.
//
// Deactivated implies Breaches is non-empty and the provider accepted the
// update. Error set implies Deactivated is false.
type CheckResult struct {
	Alias       Alias          `json:"alias"`
	Breaches    []BreachRecord `json:"breaches"`
	Deactivated bool           `json:"deactivated"`
	Error       *ResultError   `json:"error,omitempty"`
}

// Breached reports whether any breach was found for the alias.
func (r CheckResult) Breached() bool {
	return len(r.Breaches) > 0
}

// Report is the ordered outcome of one run.
type Report struct {
	RunID      string        `json:"run_id"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	DryRun     bool          `json:"dry_run"`
	Results    []CheckResult `json:"results"`
}

// Checked returns the number of aliases processed.
func (r *Report) Checked() int {
	return len(r.Results)
}

// Breached returns the number of aliases with at least one breach.
func (r *Report) Breached() int {
	n := 0
	for _, res := range r.Results {
		if res.Breached() {
			n++
		}
	}
	return n
}

// Deactivated returns the number of aliases deactivated in this run.
func (r *Report) Deactivated() int {
	n := 0
	for _, res := range r.Results {
		if res.Deactivated {
			n++
		}
	}
	return n
}

// Failed returns the number of aliases with a per-alias error.
func (r *Report) Failed() int {
	n := 0
	for _, res := range r.Results {
		if res.Error != nil {
			n++
		}
	}
	return n
}

// Duration returns how long the run took.
func (r *Report) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
