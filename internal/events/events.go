// Package events publishes regeneration lifecycle events to interested
// external consumers. Publishing is best effort: a failed publish never
// affects page serving or regeneration outcomes.
package events

import (
	"context"
	"time"
)

// RegenerationEvent describes one completed generation run.
type RegenerationEvent struct {
	TaskID     string    `json:"task_id"`
	Key        string    `json:"key"`
	Kind       string    `json:"kind"`    // sync | background
	Outcome    string    `json:"outcome"` // success | failed
	Error      string    `json:"error,omitempty"`
	DurationMS float64   `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// Sink receives regeneration events.
type Sink interface {
	PublishRegeneration(ctx context.Context, evt RegenerationEvent) error
	Close() error
}

// NoopSink discards all events (default when event publishing is disabled).
type NoopSink struct{}

func (NoopSink) PublishRegeneration(context.Context, RegenerationEvent) error { return nil }
func (NoopSink) Close() error                                                 { return nil }
