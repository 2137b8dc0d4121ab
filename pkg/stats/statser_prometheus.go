package stats

import (
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/gocollectd"
)

// PrometheusStatser is a Statser that exposes gocollectd's internal metrics to Prometheus.  Tag keys become
// labels, so a metric name must always be used with the same set of tag keys.
type PrometheusStatser struct {
	flushNotifier

	logger     logrus.FieldLogger
	registerer prometheus.Registerer
	namespace  string
	tags       gocollectd.Tags

	lock       sync.Mutex
	gauges     map[string]*prometheus.GaugeVec
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	rejected   map[string]struct{}
}

// NewPrometheusStatser creates a Statser registering its collectors with registerer.
func NewPrometheusStatser(logger logrus.FieldLogger, registerer prometheus.Registerer, namespace string, tags gocollectd.Tags) *PrometheusStatser {
	return &PrometheusStatser{
		logger:     logger,
		registerer: registerer,
		namespace:  promName(namespace),
		tags:       tags,
		gauges:     map[string]*prometheus.GaugeVec{},
		counters:   map[string]*prometheus.CounterVec{},
		histograms: map[string]*prometheus.HistogramVec{},
		rejected:   map[string]struct{}{},
	}
}

// Gauge sets a gauge
func (ps *PrometheusStatser) Gauge(name string, value float64, tags gocollectd.Tags) {
	labels := ps.tags.Concat(tags).ToMap()
	ps.lock.Lock()
	defer ps.lock.Unlock()
	key := vecKey(name, labels)
	vec, ok := ps.gauges[key]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ps.namespace,
			Name:      promName(name),
			Help:      "Internal gauge " + name,
		}, labelNames(labels))
		registered, ok := ps.register(key, vec).(*prometheus.GaugeVec)
		if !ok {
			return
		}
		vec = registered
		ps.gauges[key] = vec
	}
	vec.With(labels).Set(value)
}

// Count adds to a counter
func (ps *PrometheusStatser) Count(name string, amount float64, tags gocollectd.Tags) {
	if amount < 0 {
		return
	}
	labels := ps.tags.Concat(tags).ToMap()
	ps.lock.Lock()
	defer ps.lock.Unlock()
	key := vecKey(name, labels)
	vec, ok := ps.counters[key]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ps.namespace,
			Name:      promName(name) + "_total",
			Help:      "Internal counter " + name,
		}, labelNames(labels))
		registered, ok := ps.register(key, vec).(*prometheus.CounterVec)
		if !ok {
			return
		}
		vec = registered
		ps.counters[key] = vec
	}
	vec.With(labels).Add(amount)
}

// Increment adds 1 to a counter
func (ps *PrometheusStatser) Increment(name string, tags gocollectd.Tags) {
	ps.Count(name, 1, tags)
}

// TimingMS observes a duration in milliseconds
func (ps *PrometheusStatser) TimingMS(name string, ms float64, tags gocollectd.Tags) {
	labels := ps.tags.Concat(tags).ToMap()
	ps.lock.Lock()
	defer ps.lock.Unlock()
	key := vecKey(name, labels)
	vec, ok := ps.histograms[key]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ps.namespace,
			Name:      promName(name) + "_seconds",
			Help:      "Internal timing " + name,
			Buckets:   prometheus.DefBuckets,
		}, labelNames(labels))
		registered, ok := ps.register(key, vec).(*prometheus.HistogramVec)
		if !ok {
			return
		}
		vec = registered
		ps.histograms[key] = vec
	}
	vec.With(labels).Observe(ms / 1000)
}

// TimingDuration observes a time.Duration
func (ps *PrometheusStatser) TimingDuration(name string, d time.Duration, tags gocollectd.Tags) {
	ps.TimingMS(name, float64(d)/float64(time.Millisecond), tags)
}

// NewTimer returns a new timer with time set to now
func (ps *PrometheusStatser) NewTimer(name string, tags gocollectd.Tags) *Timer {
	return newTimer(ps, name, tags)
}

// WithTags creates a new Statser with additional tags
func (ps *PrometheusStatser) WithTags(tags gocollectd.Tags) Statser {
	return NewTaggedStatser(ps, tags)
}

// register registers c, or returns the collector already registered under the same name and labels.  It
// returns nil if the name is taken by a collector with different labels.  Must be called with the lock held.
func (ps *PrometheusStatser) register(key string, c prometheus.Collector) prometheus.Collector {
	if _, ok := ps.rejected[key]; ok {
		return nil
	}
	err := ps.registerer.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		return are.ExistingCollector
	}
	ps.rejected[key] = struct{}{}
	ps.logger.WithError(err).WithField("metric", key).Warn("could not register internal metric")
	return nil
}

func vecKey(name string, labels map[string]string) string {
	return name + "{" + strings.Join(labelNames(labels), ",") + "}"
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func promName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == ':':
			return r
		}
		return '_'
	}, name)
}
