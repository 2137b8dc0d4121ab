package gocollectd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Runnable is a long running function intended to be launched in a goroutine.
type Runnable func(context.Context)

// Runner exposes a Runnable through an interface
type Runner interface {
	Run(context.Context)
}

// MetricsRunner is implemented by components which report internal statistics on their own goroutine.
type MetricsRunner interface {
	RunMetricsContext(context.Context)
}

// MaybeAppendRunnable appends the Run and RunMetricsContext methods of maybeRunner, if it has them.
func MaybeAppendRunnable(runnables []Runnable, maybeRunner interface{}) []Runnable {
	if r, ok := maybeRunner.(Runner); ok {
		runnables = append(runnables, r.Run)
	}
	if r, ok := maybeRunner.(MetricsRunner); ok {
		runnables = append(runnables, r.RunMetricsContext)
	}
	return runnables
}

// SampleHandler accepts calibrated samples for the next step in the pipeline.
type SampleHandler interface {
	// DispatchSamples hands samples on, blocking if the next step applies backpressure.  Only returns an
	// error if ctx is done, or the handler is not accepting samples any more.
	DispatchSamples(ctx context.Context, samples ...Sample) error
}

// SendCallback is called by Sink.SendSamplesAsync() to notify about the result of operation.
// A list of errors is passed to the callback. It may be empty or contain nil values. Every non-nil value is an error
// that happened while sending samples.
type SendCallback func([]error)

// Sink represents a downstream time-series store.
// If Sink implements the Runner interface, it's started in a new goroutine at creation.
type Sink interface {
	// Name returns the name of the sink.
	Name() string
	// SendSamplesAsync sends the samples to the sink, preparing payload synchronously but doing the send
	// asynchronously.  Must not retain samples after it returns.
	SendSamplesAsync(context.Context, []Sample, SendCallback)
}

// SinkFactory is a function that returns a Sink.
type SinkFactory func(*viper.Viper, logrus.FieldLogger) (Sink, error)
