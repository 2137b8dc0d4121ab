package sinks

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlassian/gocollectd/internal/fixtures"
	"github.com/atlassian/gocollectd/pkg/sinks/graphite"
	"github.com/atlassian/gocollectd/pkg/sinks/null"
	"github.com/atlassian/gocollectd/pkg/sinks/stdout"
)

func TestInitSink(t *testing.T) {
	t.Parallel()
	logger := fixtures.NewTestLogger(t)
	v := viper.New()
	for _, name := range []string{graphite.SinkName, null.SinkName, stdout.SinkName} {
		sink, err := InitSink(name, v, logger)
		require.NoError(t, err, name)
		assert.Equal(t, name, sink.Name())
	}
}

func TestInitSinkUnknown(t *testing.T) {
	t.Parallel()
	sink, err := InitSink("carbon-c-relay", viper.New(), fixtures.NewTestLogger(t))
	assert.Nil(t, sink)
	assert.EqualError(t, err, `unknown sink "carbon-c-relay"`)
}

func TestInitSinkEmpty(t *testing.T) {
	t.Parallel()
	sink, err := InitSink("", viper.New(), fixtures.NewTestLogger(t))
	assert.Nil(t, sink)
	assert.NoError(t, err)
}

func TestInitSinkBadConfig(t *testing.T) {
	t.Parallel()
	v := viper.New()
	v.Set("graphite.mode", "tags")
	_, err := InitSink(graphite.SinkName, v, fixtures.NewTestLogger(t))
	assert.Error(t, err)
}
