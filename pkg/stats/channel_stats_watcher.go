package stats

import (
	"context"

	"github.com/atlassian/gocollectd"
)

// ChannelStatsWatcher reports metrics about channel usage to a Statser on every flush
type ChannelStatsWatcher struct {
	tags     gocollectd.Tags
	capacity int
	lenFunc  func() int
}

// NewChannelStatsWatcher creates a new ChannelStatsWatcher
func NewChannelStatsWatcher(channelName string, tags gocollectd.Tags, capacity int, lenFunc func() int) *ChannelStatsWatcher {
	t := gocollectd.Tags{"channel:" + channelName}
	return &ChannelStatsWatcher{
		tags:     t.Concat(tags),
		capacity: capacity,
		lenFunc:  lenFunc,
	}
}

// Run will run a ChannelStatsWatcher in the background until the supplied context is closed.
func (csw *ChannelStatsWatcher) Run(ctx context.Context) {
	statser := FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()

	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			csw.emit(statser)
		}
	}
}

func (csw *ChannelStatsWatcher) emit(statser Statser) {
	capacity := float64(csw.capacity)
	queued := float64(csw.lenFunc())
	percentUsed := 0.0
	if capacity > 0 {
		percentUsed = 100.0 * (queued / capacity)
	}

	// Statsers may keep the tags, so each call gets its own copy.
	statser.Gauge("channel.capacity", capacity, csw.tags.Copy())
	statser.Gauge("channel.queued", queued, csw.tags.Copy())
	statser.Gauge("channel.pct_used", percentUsed, csw.tags.Copy())
}
