package stats

import (
	"context"
	"time"

	"github.com/tilinna/clock"
)

// Flusher periodically notifies the Statser in its context that a flush occurred, which makes every
// component registered with RegisterFlush report its statistics.
type Flusher struct {
	interval time.Duration
}

// NewFlusher creates a Flusher ticking every interval.
func NewFlusher(interval time.Duration) *Flusher {
	return &Flusher{
		interval: interval,
	}
}

// Run runs the Flusher until ctx is done.  It must not run on a goroutine which drains the queue an
// InternalStatser dispatches to.
func (f *Flusher) Run(ctx context.Context) {
	statser := FromContext(ctx)
	clck := clock.FromContext(ctx)
	ticker := clck.NewTicker(f.interval)
	defer ticker.Stop()

	lastFlush := clck.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case thisFlush := <-ticker.C:
			statser.NotifyFlush(ctx, thisFlush.Sub(lastFlush))
			lastFlush = thisFlush
		}
	}
}
