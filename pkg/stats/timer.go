package stats

import (
	"time"

	"github.com/atlassian/gocollectd"
)

// Timer times an operation and reports the elapsed time to a Statser.
type Timer struct {
	statser   Statser
	name      string
	tags      gocollectd.Tags
	startTime time.Time
	stopped   bool
}

func newTimer(statser Statser, name string, tags gocollectd.Tags) *Timer {
	return &Timer{
		statser:   statser,
		name:      name,
		tags:      tags,
		startTime: time.Now(),
	}
}

// Stop will stop the timer and send the elapsed time to the Statser.  Subsequent calls do nothing.
func (t *Timer) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	t.statser.TimingDuration(t.name, time.Since(t.startTime), t.tags)
}

// SendGauge sends the elapsed time as a gauge without stopping the timer.
func (t *Timer) SendGauge() {
	t.statser.Gauge(t.name, float64(time.Since(t.startTime))/float64(time.Millisecond), t.tags)
}
