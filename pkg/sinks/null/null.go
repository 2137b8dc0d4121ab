package null

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
)

// SinkName is the name of this sink.
const SinkName = "null"

// Client represents a discarding sink.
type Client struct{}

// NewClientFromViper constructs a discarding sink.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (gocollectd.Sink, error) {
	return NewClient(), nil
}

// NewClient constructs a client object.
func NewClient() *Client {
	return &Client{}
}

// SendSamplesAsync discards the samples.
func (Client) SendSamplesAsync(ctx context.Context, samples []gocollectd.Sample, cb gocollectd.SendCallback) {
	cb(nil)
}

// Name returns the name of the sink.
func (Client) Name() string {
	return SinkName
}
