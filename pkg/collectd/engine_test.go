package collectd

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/internal/fixtures"
)

func TestEngineSquares(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		types    string
		interval float64
		metric   string
		expected []float64
	}{
		{
			name:     "gauge",
			types:    squaresTypes,
			interval: 1,
			metric:   "test.squares.gauge",
			expected: seq(10, func(i int) float64 { return float64(i * i) }),
		},
		{
			name:     "derive",
			types:    squaresTypes,
			interval: 2,
			metric:   "test.squares.derive",
			expected: seq(9, func(i int) float64 { return float64(2*i+1) / 2 }),
		},
		{
			name:     "counter",
			types:    squaresTypes,
			interval: 2,
			metric:   "test.squares.counter",
			expected: seq(9, func(i int) float64 { return float64(2*i+1) / 2 }),
		},
		{
			name:     "absolute",
			types:    squaresTypes,
			interval: 2,
			metric:   "test.squares.absolute",
			expected: seq(9, func(i int) float64 { return float64((i+1)*(i+1)) / 2 }),
		},
		{
			name:     "gauge bounds",
			types:    "gauge value:GAUGE:5:50\n",
			interval: 2,
			metric:   "test.squares.gauge",
			expected: seq(5, func(i int) float64 { return float64((i + 3) * (i + 3)) }),
		},
		{
			name:     "derive bounds",
			types:    "derive value:DERIVE:3:8\n",
			interval: 2,
			metric:   "test.squares.derive",
			expected: seq(5, func(i int) float64 { return 3 + float64(2*i+1)/2 }),
		},
		{
			name:     "counter bounds",
			types:    "counter value:COUNTER:3:8\n",
			interval: 2,
			metric:   "test.squares.counter",
			expected: seq(5, func(i int) float64 { return 3 + float64(2*i+1)/2 }),
		},
		{
			name:     "absolute bounds",
			types:    "absolute value:ABSOLUTE:5:35\n",
			interval: 2,
			metric:   "test.squares.absolute",
			expected: seq(5, func(i int) float64 { return float64((i+4)*(i+4)) / 2 }),
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newTestEngine(t, tc.types)
			samples := reconstructAll(t, e, squaresDatagrams(tc.interval, "gauge", "derive", "counter", "absolute"))
			require.Equal(t, tc.expected, valuesOf(samples, tc.metric))
		})
	}
}

func TestEngineSampleTimestamps(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, squaresTypes)
	samples := reconstructAll(t, e, squaresDatagrams(2, "derive"))
	require.Len(t, samples, 9)
	for i, s := range samples {
		assert.Equal(t, "test.squares.derive", s.Name)
		assert.Equal(t, float64(baseTime+2*(i+1)), s.Timestamp)
	}
}

func TestEngineCounterWraps(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, countersTypes)
	samples := reconstructAll(t, e, counterWrapDatagrams())
	expected := seq(9, func(int) float64 { return 512 })
	require.Equal(t, expected, valuesOf(samples, "test.counter-wraps.counters.a"))
	require.Equal(t, expected, valuesOf(samples, "test.counter-wraps.counters.b"))
	assert.Zero(t, e.GetStats().Resets)
}

func TestEngineGaugeIsRawValue(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, squaresTypes)
	ctx := testClockContext()
	for _, v := range []float64{0, -1.5, math.MaxFloat64, math.SmallestNonzeroFloat64, math.Inf(-1)} {
		vl := ValueList{
			Descriptor: Descriptor{Host: "h", Plugin: "p", Type: "gauge", Time: 10},
			Values:     []Value{GaugeValue(v)},
		}
		samples, err := e.Reconstruct(ctx, vl)
		require.NoError(t, err)
		require.Equal(t, []gocollectd.Sample{{Name: "h.p.gauge", Value: v, Timestamp: 10}}, samples)
	}
}

func TestEngineFirstObservationIsBaseline(t *testing.T) {
	t.Parallel()
	for _, typ := range []string{"derive", "counter", "absolute"} {
		e := newTestEngine(t, squaresTypes)
		dg := squaresDatagrams(2, typ)
		samples := reconstructAll(t, e, dg[:1])
		assert.Empty(t, samples, typ)
		assert.EqualValues(t, 1, e.GetStats().Baselines, typ)
		samples = reconstructAll(t, e, dg[1:2])
		assert.Len(t, samples, 1, typ)
	}
}

func TestEngineUnknownType(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, squaresTypes)
	samples, err := e.Reconstruct(testClockContext(), ValueList{
		Descriptor: Descriptor{Host: "h", Plugin: "p", Type: "nope", Time: 1},
		Values:     []Value{GaugeValue(1)},
	})
	require.NoError(t, err)
	require.Empty(t, samples)
	assert.EqualValues(t, 1, e.GetStats().UnknownTypes)
}

func TestEngineArityMismatchIsolated(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "if_octets rx:DERIVE:U:U, tx:DERIVE:U:U\n")
	ctx := testClockContext()
	d := Descriptor{Host: "h", Plugin: "interface", Type: "if_octets", Time: 10}

	samples, err := e.Reconstruct(ctx, ValueList{Descriptor: d, Values: []Value{DeriveValue(100), DeriveValue(200)}})
	require.NoError(t, err)
	require.Empty(t, samples)

	d.Time = 12
	samples, err = e.Reconstruct(ctx, ValueList{Descriptor: d, Values: []Value{DeriveValue(999999)}})
	require.Nil(t, samples)
	var arity *ArityMismatchError
	require.True(t, errors.As(err, &arity), err)
	assert.Equal(t, 2, arity.Expected)
	assert.Equal(t, 1, arity.Got)

	d.Time = 14
	samples, err = e.Reconstruct(ctx, ValueList{Descriptor: d, Values: []Value{DeriveValue(108), DeriveValue(240)}})
	require.NoError(t, err)
	require.Equal(t, []gocollectd.Sample{
		{Name: "h.interface.if_octets.rx", Value: 2, Timestamp: 14},
		{Name: "h.interface.if_octets.tx", Value: 10, Timestamp: 14},
	}, samples)
	assert.EqualValues(t, 1, e.GetStats().ArityMismatches)
}

func TestEngineRejectedSampleStillUpdatesState(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "derive value:DERIVE:0:1\n")
	ctx := testClockContext()
	observe := func(raw int64, ts float64) []gocollectd.Sample {
		s, err := e.Reconstruct(ctx, ValueList{
			Descriptor: Descriptor{Host: "h", Plugin: "p", Type: "derive", Time: ts},
			Values:     []Value{DeriveValue(raw)},
		})
		require.NoError(t, err)
		return s
	}
	require.Empty(t, observe(0, 0+baseTime))
	require.Empty(t, observe(10, 1+baseTime)) // rate 10 is out of bounds
	samples := observe(11, 2+baseTime)
	require.Len(t, samples, 1)
	assert.Equal(t, 1.0, samples[0].Value)
	assert.EqualValues(t, 1, e.GetStats().OutOfBounds)
}

func TestEngineNonMonotonicTime(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, squaresTypes)
	ctx := testClockContext()
	observe := func(raw uint64, ts float64) []gocollectd.Sample {
		s, err := e.Reconstruct(ctx, ValueList{
			Descriptor: Descriptor{Host: "h", Plugin: "p", Type: "counter", Time: ts},
			Values:     []Value{CounterValue(raw)},
		})
		require.NoError(t, err)
		return s
	}
	require.Empty(t, observe(0, 10))
	require.Empty(t, observe(5, 10))
	require.Empty(t, observe(6, 9))
	samples := observe(10, 11)
	require.Len(t, samples, 1)
	assert.Equal(t, 2.0, samples[0].Value)
	assert.EqualValues(t, 2, e.GetStats().NonMonotonic)
}

func TestEngineMissingTimeUsesClock(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, squaresTypes)
	ctx, clck := fixtures.NewMockClockContext(context.Background(), time.Unix(500, int64(250*time.Millisecond)))
	vl := ValueList{
		Descriptor: Descriptor{Host: "h", Plugin: "p", Type: "derive"},
		Values:     []Value{DeriveValue(0)},
	}
	_, err := e.Reconstruct(ctx, vl)
	require.NoError(t, err)

	clck.Add(2 * time.Second)
	vl.Values = []Value{DeriveValue(4)}
	samples, err := e.Reconstruct(ctx, vl)
	require.NoError(t, err)
	require.Equal(t, []gocollectd.Sample{{Name: "h.p.derive", Value: 2, Timestamp: 502.25}}, samples)
}

func TestEngineExactLargeCounters(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, squaresTypes)
	ctx := testClockContext()
	big := uint64(1<<62 + 1)
	for i, raw := range []uint64{big, big + 3} {
		samples, err := e.Reconstruct(ctx, ValueList{
			Descriptor: Descriptor{Host: "h", Plugin: "p", Type: "counter", Time: float64(10 + i)},
			Values:     []Value{CounterValue(raw)},
		})
		require.NoError(t, err)
		if i == 1 {
			// float64(big+3)-float64(big) would be 0 or 4.
			require.Equal(t, 3.0, samples[0].Value)
		}
	}
}

func TestEngineGaugeOnly(t *testing.T) {
	t.Parallel()
	e := newTestEngine(t, "load shortterm:GAUGE:0:5000, midterm:GAUGE:0:5000, longterm:GAUGE:0:5000\n")
	enc := NewEncoder(binary.LittleEndian)
	enc.Write(Descriptor{Host: "h", Plugin: "load", Type: "load", Time: 7}, GaugeValue(0.5), GaugeValue(6000), GaugeValue(0.25))
	samples := reconstructAll(t, e, [][]byte{enc.Bytes()})
	require.Equal(t, []gocollectd.Sample{
		{Name: "h.load.load.shortterm", Value: 0.5, Timestamp: 7},
		{Name: "h.load.load.longterm", Value: 0.25, Timestamp: 7},
	}, samples)
}
