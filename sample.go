package gocollectd

import (
	"fmt"
	"math"
	"time"
)

// Sample is a single calibrated data point, ready to be forwarded to a sink.
type Sample struct {
	Name      string  // Fully qualified, dot separated metric name
	Value     float64 // Calibrated value (raw gauge, or per-second rate)
	Timestamp float64 // Seconds since January 1, 1970 UTC, may carry a fractional part
}

// NewSample builds a Sample.
func NewSample(name string, value, timestamp float64) Sample {
	return Sample{
		Name:      name,
		Value:     value,
		Timestamp: timestamp,
	}
}

// Time converts the Timestamp to a time.Time.
func (s Sample) Time() time.Time {
	sec, frac := math.Modf(s.Timestamp)
	return time.Unix(int64(sec), int64(frac*float64(time.Second)))
}

func (s Sample) String() string {
	return fmt.Sprintf("{%s, %f, %f}", s.Name, s.Value, s.Timestamp)
}

// Unix converts a time.Time to a float Timestamp.
func Unix(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}
