package collectd

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/gocollectd/pkg/stats"
)

// DefaultStateShards is the number of independently locked partitions of a StateStore.
const DefaultStateShards = 64

type seriesState struct {
	last     Value
	lastTime float64   // Sample timestamp of last
	lastSeen time.Time // Local time last was stored, used for expiry
}

type stateShard struct {
	mu     sync.Mutex
	series map[SeriesKey]*seriesState
}

// StateStore holds the previous raw observation of every rate tracked series.  Series are spread over
// shards by hash, and each observation swaps the stored value under the shard lock, so concurrent
// decoders never compute two deltas from the same previous value.
type StateStore struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	evicted uint64
	size    int64

	logger logrus.FieldLogger
	expiry time.Duration
	shards []stateShard
}

// NewStateStore creates a StateStore.  Series not observed for expiry are dropped by Run, 0 keeps them forever.
func NewStateStore(logger logrus.FieldLogger, shards int, expiry time.Duration) *StateStore {
	if shards <= 0 {
		shards = DefaultStateShards
	}
	s := &StateStore{
		logger: logger,
		expiry: expiry,
		shards: make([]stateShard, shards),
	}
	for i := range s.shards {
		s.shards[i].series = map[SeriesKey]*seriesState{}
	}
	return s
}

// observe stores cur as the latest observation of key and returns the one it replaced.
func (s *StateStore) observe(key SeriesKey, cur Value, curTime float64, now time.Time) (Value, float64, bool) {
	shard := &s.shards[key.hash()%uint64(len(s.shards))]
	shard.mu.Lock()
	defer shard.mu.Unlock()
	st, ok := shard.series[key]
	if !ok {
		shard.series[key] = &seriesState{
			last:     cur,
			lastTime: curTime,
			lastSeen: now,
		}
		atomic.AddInt64(&s.size, 1)
		return Value{}, 0, false
	}
	prev, prevTime := st.last, st.lastTime
	st.last = cur
	st.lastTime = curTime
	st.lastSeen = now
	return prev, prevTime, true
}

// Len returns the number of tracked series.
func (s *StateStore) Len() int {
	return int(atomic.LoadInt64(&s.size))
}

// Run evicts idle series until ctx is done.  It returns immediately if expiry is disabled.
func (s *StateStore) Run(ctx context.Context) {
	if s.expiry <= 0 {
		return
	}
	interval := s.expiry / 2
	if interval < time.Second {
		interval = time.Second
	}
	clck := clock.FromContext(ctx)
	ticker := clck.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.Evict(now)
		}
	}
}

// Evict drops every series last observed more than the expiry before now, returning how many were dropped.
func (s *StateStore) Evict(now time.Time) int {
	if s.expiry <= 0 {
		return 0
	}
	cutoff := now.Add(-s.expiry)
	total := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, st := range shard.series {
			if st.lastSeen.Before(cutoff) {
				delete(shard.series, key)
				total++
			}
		}
		shard.mu.Unlock()
	}
	if total > 0 {
		atomic.AddInt64(&s.size, -int64(total))
		atomic.AddUint64(&s.evicted, uint64(total))
		s.logger.WithField("series", total).Debug("evicted idle series")
	}
	return total
}

// RunMetricsContext reports the size of the store on every flush.
func (s *StateStore) RunMetricsContext(ctx context.Context) {
	statser := stats.FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()
	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			statser.Gauge("state.series", float64(s.Len()), nil)
			statser.Count("state.evicted", float64(atomic.SwapUint64(&s.evicted, 0)), nil)
		}
	}
}
