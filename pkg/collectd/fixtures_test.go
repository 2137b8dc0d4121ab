package collectd

import (
	"context"
	"encoding/binary"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/internal/fixtures"
	"github.com/atlassian/gocollectd/pkg/typesdb"
)

const squaresTypes = "gauge value:GAUGE:U:U\n" +
	"derive value:DERIVE:U:U\n" +
	"counter value:COUNTER:U:U\n" +
	"absolute value:ABSOLUTE:U:U\n"

const countersTypes = "counters a:COUNTER:0:U, b:COUNTER:0:U\n"

// baseTime is the timestamp of the first test datagram.
const baseTime = 1500000000

func loadTypes(t *testing.T, types string) *typesdb.Database {
	db, err := typesdb.Load(strings.NewReader(types))
	require.NoError(t, err)
	return db
}

func newTestEngine(t *testing.T, types string) *Engine {
	logger := fixtures.NewTestLogger(t)
	return NewEngine(logger, loadTypes(t, types), NewStateStore(logger, 0, 0))
}

// squaresDatagrams returns 10 datagrams, interval seconds apart, each carrying i*i for i in [0, 9] under
// host "test", plugin "squares" and every type in types.
func squaresDatagrams(interval float64, types ...string) [][]byte {
	var datagrams [][]byte
	for i := 0; i < 10; i++ {
		enc := NewEncoder(binary.LittleEndian)
		for _, typ := range types {
			d := Descriptor{
				Host:     "test",
				Plugin:   "squares",
				Type:     typ,
				Time:     baseTime + float64(i)*interval,
				Interval: interval,
			}
			raw := uint64(i * i)
			switch typ {
			case "gauge":
				enc.Write(d, GaugeValue(float64(raw)))
			case "derive":
				enc.Write(d, DeriveValue(int64(raw)))
			case "counter":
				enc.Write(d, CounterValue(raw))
			case "absolute":
				enc.Write(d, AbsoluteValue(raw))
			}
		}
		datagrams = append(datagrams, append([]byte(nil), enc.Bytes()...))
	}
	return datagrams
}

// counterWrapDatagrams returns 10 datagrams, 2 seconds apart, of two counters growing by 1024 that wrap at
// 2^32 (a) and 2^64 (b) half way through.
func counterWrapDatagrams() [][]byte {
	var datagrams [][]byte
	a := uint64(1<<32 - 5*1024)
	b := ^uint64(0) - 5*1024 + 1
	for i := 0; i < 10; i++ {
		enc := NewEncoder(binary.LittleEndian)
		enc.Write(Descriptor{
			Host:   "test",
			Plugin: "counter-wraps",
			Type:   "counters",
			Time:   baseTime + float64(2*i),
		}, CounterValue(a), CounterValue(b))
		datagrams = append(datagrams, append([]byte(nil), enc.Bytes()...))
		a = (a + 1024) % (1 << 32)
		b += 1024
	}
	return datagrams
}

func testClockContext() context.Context {
	ctx, _ := fixtures.NewMockClockContext(context.Background(), time.Unix(baseTime+3600, 0))
	return ctx
}

// reconstructAll decodes and reconstructs every datagram, failing on any error.
func reconstructAll(t *testing.T, e *Engine, datagrams [][]byte) []gocollectd.Sample {
	ctx := testClockContext()
	dec := NewDecoder(binary.LittleEndian)
	var samples []gocollectd.Sample
	for _, dg := range datagrams {
		lists, err := dec.Decode(dg)
		require.NoError(t, err)
		for _, vl := range lists {
			s, err := e.Reconstruct(ctx, vl)
			require.NoError(t, err)
			samples = append(samples, s...)
		}
	}
	return samples
}

func valuesOf(samples []gocollectd.Sample, name string) []float64 {
	var values []float64
	for _, s := range samples {
		if s.Name == name {
			values = append(values, s.Value)
		}
	}
	return values
}

func seq(n int, f func(i int) float64) []float64 {
	values := make([]float64, n)
	for i := range values {
		values[i] = f(i)
	}
	return values
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

func (ch *capturingHandler) get() []gocollectd.Sample {
	ch.lock.Lock()
	defer ch.lock.Unlock()
	return append([]gocollectd.Sample(nil), ch.samples...)
}
