package graph

import (
	"taskgraph/internal/scheduler"
	"taskgraph/internal/trace"
)

// Option configures a Start call.
type Option func(*scheduler.Options)

// WithMode selects the concurrency discipline (spec.md §4.4). The default
// is scheduler.ModeConcurrent.
func WithMode(mode scheduler.Mode) Option {
	return func(o *scheduler.Options) { o.Mode = mode }
}

// WithTraceSink attaches an observer of worker lifecycle events. It has no
// effect on scheduling decisions.
func WithTraceSink(sink trace.Sink) Option {
	return func(o *scheduler.Options) { o.Sink = sink }
}
