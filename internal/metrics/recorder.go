package metrics

import "time"

// Outcome enumerates request serving outcomes for counters.
type Outcome string

const (
	OutcomeMiss  Outcome = "miss"  // no artifact, synchronous generation
	OutcomeFresh Outcome = "fresh" // artifact within horizon
	OutcomeStale Outcome = "stale" // stale artifact served, regeneration may trigger
	OutcomeError Outcome = "error" // synchronous generation failed
)

// Recorder defines observability hooks for page serving and regeneration.
// Implementations may forward to Prometheus, OpenTelemetry, etc. All methods
// must be safe for nil receivers when using the NoopRecorder (allowing
// optional injection).
type Recorder interface {
	ObserveRequest(outcome Outcome, d time.Duration)
	ObserveGeneration(kind string, d time.Duration, success bool) // kind: sync|background
	IncRegenSuppressed()
	IncInvalidation(trigger string) // trigger: watch|admin|sweep
	SetRegenInflight(n int)
	SetRegenQueueLength(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveRequest(Outcome, time.Duration)         {}
func (NoopRecorder) ObserveGeneration(string, time.Duration, bool) {}
func (NoopRecorder) IncRegenSuppressed()                           {}
func (NoopRecorder) IncInvalidation(string)                        {}
func (NoopRecorder) SetRegenInflight(int)                          {}
func (NoopRecorder) SetRegenQueueLength(int)                       {}
