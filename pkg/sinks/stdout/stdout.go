package stdout

import (
	"bytes"
	"context"
	"io"
	"os"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
)

// SinkName is the name of this sink.
const SinkName = "stdout"

// Client writes one "name value timestamp" line per sample.
type Client struct {
	mu sync.Mutex
	w  io.Writer
}

// NewClientFromViper constructs a stdout sink.
func NewClientFromViper(v *viper.Viper, logger logrus.FieldLogger) (gocollectd.Sink, error) {
	return NewClient(os.Stdout), nil
}

// NewClient constructs a sink writing to w.
func NewClient(w io.Writer) *Client {
	return &Client{w: w}
}

// SendSamplesAsync writes the samples synchronously.
func (client *Client) SendSamplesAsync(ctx context.Context, samples []gocollectd.Sample, cb gocollectd.SendCallback) {
	buf := new(bytes.Buffer)
	for _, s := range samples {
		buf.WriteString(s.Name)
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatFloat(s.Value, 'f', -1, 64))
		buf.WriteByte(' ')
		buf.WriteString(strconv.FormatFloat(s.Timestamp, 'f', -1, 64))
		buf.WriteByte('\n')
	}
	client.mu.Lock()
	_, err := buf.WriteTo(client.w)
	client.mu.Unlock()
	cb([]error{err})
}

// Name returns the name of the sink.
func (client *Client) Name() string {
	return SinkName
}
