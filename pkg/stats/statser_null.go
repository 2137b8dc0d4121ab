package stats

import (
	"time"

	"github.com/atlassian/gocollectd"
)

// NullStatser is a null implementation of Statser, intended primarily
// for test purposes
type NullStatser struct {
	flushNotifier
}

// NewNullStatser creates a new NullStatser
func NewNullStatser() Statser {
	return &NullStatser{}
}

// Gauge does nothing
func (ns *NullStatser) Gauge(name string, value float64, tags gocollectd.Tags) {}

// Count does nothing
func (ns *NullStatser) Count(name string, amount float64, tags gocollectd.Tags) {}

// Increment does nothing
func (ns *NullStatser) Increment(name string, tags gocollectd.Tags) {}

// TimingMS does nothing
func (ns *NullStatser) TimingMS(name string, ms float64, tags gocollectd.Tags) {}

// TimingDuration does nothing
func (ns *NullStatser) TimingDuration(name string, d time.Duration, tags gocollectd.Tags) {}

// NewTimer returns a new timer with time set to now
func (ns *NullStatser) NewTimer(name string, tags gocollectd.Tags) *Timer {
	return newTimer(ns, name, tags)
}

// WithTags creates a new Statser with additional tags
func (ns *NullStatser) WithTags(tags gocollectd.Tags) Statser {
	return ns
}
