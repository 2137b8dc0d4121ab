package stats

import (
	"context"
	"time"

	"github.com/atlassian/gocollectd"
)

// TaggedStatser adds tags and submits metrics to another Statser.
type TaggedStatser struct {
	statser Statser
	tags    gocollectd.Tags
}

// NewTaggedStatser creates a new Statser which adds additional tags
// all metrics submitted.
func NewTaggedStatser(statser Statser, tags gocollectd.Tags) Statser {
	return &TaggedStatser{
		statser: statser,
		tags:    tags,
	}
}

func (ts *TaggedStatser) NotifyFlush(ctx context.Context, d time.Duration) {
	ts.statser.NotifyFlush(ctx, d)
}

func (ts *TaggedStatser) RegisterFlush() (<-chan time.Duration, func()) {
	return ts.statser.RegisterFlush()
}

// Gauge sends a gauge metric
func (ts *TaggedStatser) Gauge(name string, value float64, tags gocollectd.Tags) {
	ts.statser.Gauge(name, value, ts.tags.Concat(tags))
}

// Count sends a counter metric
func (ts *TaggedStatser) Count(name string, amount float64, tags gocollectd.Tags) {
	ts.statser.Count(name, amount, ts.tags.Concat(tags))
}

// Increment sends a counter metric with a value of 1
func (ts *TaggedStatser) Increment(name string, tags gocollectd.Tags) {
	ts.statser.Increment(name, ts.tags.Concat(tags))
}

// TimingMS sends a timing metric from a millisecond value
func (ts *TaggedStatser) TimingMS(name string, ms float64, tags gocollectd.Tags) {
	ts.statser.TimingMS(name, ms, ts.tags.Concat(tags))
}

// TimingDuration sends a timing metric from a time.Duration
func (ts *TaggedStatser) TimingDuration(name string, d time.Duration, tags gocollectd.Tags) {
	ts.statser.TimingDuration(name, d, ts.tags.Concat(tags))
}

// NewTimer returns a new timer with time set to now
func (ts *TaggedStatser) NewTimer(name string, tags gocollectd.Tags) *Timer {
	return newTimer(ts, name, tags)
}

// WithTags creates a new Statser with additional tags
func (ts *TaggedStatser) WithTags(tags gocollectd.Tags) Statser {
	return NewTaggedStatser(ts, tags)
}
