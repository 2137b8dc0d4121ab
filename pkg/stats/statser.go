package stats

import (
	"context"
	"time"

	"github.com/atlassian/gocollectd"
)

// Statser is the interface for sending internal metrics
type Statser interface {
	// NotifyFlush is called when a flush occurs.  It signals all known subscribers.
	NotifyFlush(ctx context.Context, d time.Duration)
	// RegisterFlush returns a channel which will receive a notification after every flush, and a cleanup
	// function which should be called to signal the channel is no longer being monitored.  If the channel
	// blocks, the notification will be silently dropped.
	RegisterFlush() (ch <-chan time.Duration, unregister func())

	Gauge(name string, value float64, tags gocollectd.Tags)
	Count(name string, amount float64, tags gocollectd.Tags)
	Increment(name string, tags gocollectd.Tags)
	TimingMS(name string, ms float64, tags gocollectd.Tags)
	TimingDuration(name string, d time.Duration, tags gocollectd.Tags)
	NewTimer(name string, tags gocollectd.Tags) *Timer
	WithTags(tags gocollectd.Tags) Statser
}
