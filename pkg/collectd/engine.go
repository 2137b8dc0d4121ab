package collectd

import (
	"context"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"github.com/tilinna/clock"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/stats"
	"github.com/atlassian/gocollectd/pkg/typesdb"
)

// Engine turns ValueLists into calibrated samples, using the types database to interpret each value and the
// state store to turn cumulative values into rates.
type Engine struct {
	// Counter fields below must be read/written only using atomic instructions.
	// 64-bit fields must be the first fields in the struct to guarantee proper memory alignment.
	// See https://golang.org/pkg/sync/atomic/#pkg-note-BUG
	unknownTypes    uint64
	arityMismatches uint64
	baselines       uint64
	nonMonotonic    uint64
	resets          uint64
	outOfBounds     uint64
	samples         uint64

	logger logrus.FieldLogger
	types  *typesdb.Database
	store  *StateStore
}

// NewEngine creates an Engine.  types must not be modified afterwards.
func NewEngine(logger logrus.FieldLogger, types *typesdb.Database, store *StateStore) *Engine {
	return &Engine{
		logger: logger,
		types:  types,
		store:  store,
	}
}

// Reconstruct calibrates every value of vl.  A type unknown to the types database yields no samples and no
// error.  A ValueList without a timestamp is stamped with the current time.
func (e *Engine) Reconstruct(ctx context.Context, vl ValueList) ([]gocollectd.Sample, error) {
	td, ok := e.types.Resolve(vl.Type)
	if !ok {
		atomic.AddUint64(&e.unknownTypes, 1)
		e.logger.WithFields(logrus.Fields{
			"type":   vl.Type,
			"plugin": vl.Plugin,
			"host":   vl.Host,
		}).Debug("dropping values of unknown type")
		return nil, nil
	}
	if len(td) != len(vl.Values) {
		atomic.AddUint64(&e.arityMismatches, 1)
		return nil, &ArityMismatchError{
			Type:     vl.Type,
			Expected: len(td),
			Got:      len(vl.Values),
		}
	}

	now := clock.FromContext(ctx).Now()
	ts := vl.Time
	if ts == 0 {
		ts = gocollectd.Unix(now)
	}

	samples := make([]gocollectd.Sample, 0, len(td))
	for i, ds := range td {
		raw := vl.Values[i]
		var value float64
		switch ds.Kind {
		case typesdb.Gauge:
			value = raw.Float()
		case typesdb.Counter, typesdb.Derive, typesdb.Absolute:
			prev, prevTime, found := e.store.observe(vl.Key(ds.Name), raw, ts, now)
			if !found {
				atomic.AddUint64(&e.baselines, 1)
				continue
			}
			var result rateResult
			value, result = reconstructRate(ds.Kind, prev, prevTime, raw, ts)
			switch result {
			case rateNonMonotonic:
				atomic.AddUint64(&e.nonMonotonic, 1)
				continue
			case rateReset:
				atomic.AddUint64(&e.resets, 1)
				continue
			}
		default:
			continue
		}
		if !ds.InBounds(value) {
			atomic.AddUint64(&e.outOfBounds, 1)
			continue
		}
		samples = append(samples, gocollectd.NewSample(vl.Name(ds.Name), value, ts))
	}
	atomic.AddUint64(&e.samples, uint64(len(samples)))
	return samples, nil
}

// EngineStats holds the drop counters of an Engine.
type EngineStats struct {
	UnknownTypes    uint64
	ArityMismatches uint64
	Baselines       uint64
	NonMonotonic    uint64
	Resets          uint64
	OutOfBounds     uint64
	Samples         uint64
}

// GetStats returns the counters accumulated since the Engine was created.  They are not reset by
// RunMetricsContext.
func (e *Engine) GetStats() EngineStats {
	return EngineStats{
		UnknownTypes:    atomic.LoadUint64(&e.unknownTypes),
		ArityMismatches: atomic.LoadUint64(&e.arityMismatches),
		Baselines:       atomic.LoadUint64(&e.baselines),
		NonMonotonic:    atomic.LoadUint64(&e.nonMonotonic),
		Resets:          atomic.LoadUint64(&e.resets),
		OutOfBounds:     atomic.LoadUint64(&e.outOfBounds),
		Samples:         atomic.LoadUint64(&e.samples),
	}
}

// RunMetricsContext reports the counters as deltas on every flush.
func (e *Engine) RunMetricsContext(ctx context.Context) {
	statser := stats.FromContext(ctx)
	flushed, unregister := statser.RegisterFlush()
	defer unregister()

	var last EngineStats
	for {
		select {
		case <-ctx.Done():
			return
		case <-flushed:
			cur := e.GetStats()
			statser.Count("engine.unknown_types", float64(cur.UnknownTypes-last.UnknownTypes), nil)
			statser.Count("engine.arity_mismatches", float64(cur.ArityMismatches-last.ArityMismatches), nil)
			statser.Count("engine.baselines", float64(cur.Baselines-last.Baselines), nil)
			statser.Count("engine.non_monotonic", float64(cur.NonMonotonic-last.NonMonotonic), nil)
			statser.Count("engine.resets", float64(cur.Resets-last.Resets), nil)
			statser.Count("engine.out_of_bounds", float64(cur.OutOfBounds-last.OutOfBounds), nil)
			statser.Count("engine.samples", float64(cur.Samples-last.Samples), nil)
			last = cur
		}
	}
}
