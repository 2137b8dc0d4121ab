package stats

import (
	"context"
	"sync"
	"time"

	"github.com/atlassian/gocollectd"
)

type recorded struct {
	kind  string
	name  string
	value float64
	tags  gocollectd.Tags
}

type recordingStatser struct {
	NullStatser

	lock    sync.Mutex
	records []recorded
}

func (rs *recordingStatser) add(kind, name string, value float64, tags gocollectd.Tags) {
	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.records = append(rs.records, recorded{kind: kind, name: name, value: value, tags: tags})
}

func (rs *recordingStatser) Gauge(name string, value float64, tags gocollectd.Tags) {
	rs.add("gauge", name, value, tags)
}

func (rs *recordingStatser) Count(name string, amount float64, tags gocollectd.Tags) {
	rs.add("count", name, amount, tags)
}

func (rs *recordingStatser) Increment(name string, tags gocollectd.Tags) {
	rs.add("count", name, 1, tags)
}

func (rs *recordingStatser) TimingMS(name string, ms float64, tags gocollectd.Tags) {
	rs.add("timing", name, ms, tags)
}

func (rs *recordingStatser) TimingDuration(name string, d time.Duration, tags gocollectd.Tags) {
	rs.TimingMS(name, float64(d)/float64(time.Millisecond), tags)
}

func (rs *recordingStatser) WithTags(tags gocollectd.Tags) Statser {
	return NewTaggedStatser(rs, tags)
}

type capturingHandler struct {
	lock    sync.Mutex
	samples []gocollectd.Sample
}

func (ch *capturingHandler) DispatchSamples(ctx context.Context, samples ...gocollectd.Sample) error {
	ch.lock.Lock()
	defer ch.lock.Unlock()
	ch.samples = append(ch.samples, samples...)
	return nil
}

func (rs *recordingStatser) NewTimer(name string, tags gocollectd.Tags) *Timer {
	return newTimer(rs, name, tags)
}
