// Package artifact defines the stored output of a page generation run and the
// resource keys that name generatable pages.
package artifact

import (
	"time"
)

// Artifact is the last successfully produced output for a resource key.
//
// An artifact is created on first successful generation, replaced in place on
// successful regeneration, and never deleted by the serving path. The horizon
// travels with the artifact so per-page overrides survive restarts.
type Artifact struct {
	Key         Key           `json:"key"`
	Content     []byte        `json:"content"`
	ContentType string        `json:"content_type"`
	Revision    string        `json:"revision"`
	GeneratedAt time.Time     `json:"generated_at"`
	Horizon     time.Duration `json:"horizon"`
}

// Age returns how old the artifact is relative to now.
func (a *Artifact) Age(now time.Time) time.Duration {
	return now.Sub(a.GeneratedAt)
}

// Fresh reports whether the artifact is still within its freshness horizon.
// A zero or negative horizon means the artifact is stale as soon as it exists.
func (a *Artifact) Fresh(now time.Time) bool {
	if a.Horizon <= 0 {
		return false
	}
	return a.Age(now) < a.Horizon
}

// State describes the generation state of a resource key.
type State string

const (
	StateAbsent       State = "absent"
	StateFresh        State = "fresh"
	StateStaleServing State = "stale-serving"
	StateRegenerating State = "regenerating"
)
