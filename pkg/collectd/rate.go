package collectd

import (
	"github.com/atlassian/gocollectd/pkg/typesdb"
)

const (
	wrap32 = float64(1 << 32)
	wrap64 = wrap32 * wrap32
)

// rateResult says why a rate was or was not produced.
type rateResult int

const (
	rateOK           rateResult = iota
	rateBaseline                // first observation of the series
	rateNonMonotonic            // time did not move forward
	rateReset                   // counter went backwards beyond any wraparound
)

// reconstructRate turns two consecutive raw observations into a per second value.  Kind must not be Gauge.
func reconstructRate(kind typesdb.Kind, prev Value, prevTime float64, cur Value, curTime float64) (float64, rateResult) {
	dt := curTime - prevTime
	if dt <= 0 {
		return 0, rateNonMonotonic
	}
	switch kind {
	case typesdb.Absolute:
		return cur.Float() / dt, rateOK
	case typesdb.Derive:
		return deriveDelta(prev, cur) / dt, rateOK
	case typesdb.Counter:
		delta, ok := counterDelta(prev, cur)
		if !ok {
			return 0, rateReset
		}
		return delta / dt, rateOK
	}
	return 0, rateReset
}

// deriveDelta is signed and never corrected for wraparound.
func deriveDelta(prev, cur Value) float64 {
	if prev.IsFloat() || cur.IsFloat() {
		return cur.Float() - prev.Float()
	}
	return float64(int64(cur.Bits - prev.Bits))
}

// counterDelta corrects a decrease as a 32 bit wrap if it can be one, then as a 64 bit wrap.  This is a
// guess: a counter that wrapped more than once between observations yields a wrong but positive delta.
func counterDelta(prev, cur Value) (float64, bool) {
	if prev.IsFloat() || cur.IsFloat() {
		delta := cur.Float() - prev.Float()
		if delta < 0 {
			delta += wrap32
		}
		if delta < 0 {
			delta += wrap64 - wrap32
		}
		if delta < 0 {
			return 0, false
		}
		return delta, true
	}
	if cur.Bits >= prev.Bits {
		return float64(cur.Bits - prev.Bits), true
	}
	if back := prev.Bits - cur.Bits; back <= 1<<32 {
		return float64(1<<32 - back), true
	}
	// Unsigned subtraction is exactly the 64 bit wraparound.
	return float64(cur.Bits - prev.Bits), true
}
