package stats

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tilinna/clock"

	"github.com/atlassian/gocollectd"
)

type internalKind int

const (
	internalGauge internalKind = iota
	internalCount
)

type internalValue struct {
	kind  internalKind
	value float64
}

// InternalStatser is a Statser which feeds its own metrics back into the sample pipeline, so they reach the
// same sinks as collectd samples.  Counts are summed and gauges keep their last value until the next flush,
// when everything collected is dispatched as samples named <namespace>.<name>[.<tag value>...].
//
// Dispatch happens on the goroutine calling NotifyFlush, which must not be the one draining the handler.
type InternalStatser struct {
	flushNotifier

	tags      gocollectd.Tags
	namespace string
	handler   gocollectd.SampleHandler

	lock    sync.Mutex
	pending map[string]*internalValue
}

// NewInternalStatser creates a new Statser which sends metrics to the
// supplied SampleHandler.
func NewInternalStatser(tags gocollectd.Tags, namespace string, handler gocollectd.SampleHandler) *InternalStatser {
	return &InternalStatser{
		tags:      tags,
		namespace: namespace,
		handler:   handler,
		pending:   map[string]*internalValue{},
	}
}

// NotifyFlush dispatches everything collected since the last flush, then notifies subscribers.
func (is *InternalStatser) NotifyFlush(ctx context.Context, d time.Duration) {
	is.lock.Lock()
	pending := is.pending
	is.pending = make(map[string]*internalValue, len(pending))
	is.lock.Unlock()

	if len(pending) > 0 {
		ts := gocollectd.Unix(clock.FromContext(ctx).Now())
		samples := make([]gocollectd.Sample, 0, len(pending))
		for name, v := range pending {
			samples = append(samples, gocollectd.NewSample(name, v.value, ts))
		}
		sort.Slice(samples, func(i, j int) bool {
			return samples[i].Name < samples[j].Name
		})
		if err := is.handler.DispatchSamples(ctx, samples...); err != nil {
			return
		}
	}
	is.flushNotifier.NotifyFlush(ctx, d)
}

// Gauge sends a gauge metric
func (is *InternalStatser) Gauge(name string, value float64, tags gocollectd.Tags) {
	is.record(internalGauge, name, value, tags)
}

// Count sends a counter metric
func (is *InternalStatser) Count(name string, amount float64, tags gocollectd.Tags) {
	is.record(internalCount, name, amount, tags)
}

// Increment sends a counter metric with a value of 1
func (is *InternalStatser) Increment(name string, tags gocollectd.Tags) {
	is.Count(name, 1, tags)
}

// TimingMS records the last timing as a gauge
func (is *InternalStatser) TimingMS(name string, ms float64, tags gocollectd.Tags) {
	is.Gauge(name, ms, tags)
}

// TimingDuration sends a timing metric from a time.Duration
func (is *InternalStatser) TimingDuration(name string, d time.Duration, tags gocollectd.Tags) {
	is.TimingMS(name, float64(d)/float64(time.Millisecond), tags)
}

// NewTimer returns a new timer with time set to now
func (is *InternalStatser) NewTimer(name string, tags gocollectd.Tags) *Timer {
	return newTimer(is, name, tags)
}

// WithTags creates a new Statser with additional tags
func (is *InternalStatser) WithTags(tags gocollectd.Tags) Statser {
	return NewTaggedStatser(is, tags)
}

func (is *InternalStatser) metricName(name string, tags gocollectd.Tags) string {
	parts := make([]string, 0, 2+len(is.tags)+len(tags))
	if is.namespace != "" {
		parts = append(parts, is.namespace)
	}
	parts = append(parts, name)
	parts = append(parts, is.tags.Values()...)
	parts = append(parts, tags.Values()...)
	return strings.Join(parts, ".")
}

func (is *InternalStatser) record(kind internalKind, name string, value float64, tags gocollectd.Tags) {
	fullName := is.metricName(name, tags)
	is.lock.Lock()
	defer is.lock.Unlock()
	v, ok := is.pending[fullName]
	if !ok {
		is.pending[fullName] = &internalValue{kind: kind, value: value}
		return
	}
	if kind == internalCount && v.kind == internalCount {
		v.value += value
	} else {
		v.kind = kind
		v.value = value
	}
}
