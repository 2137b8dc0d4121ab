package sinks

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/sinks/graphite"
	"github.com/atlassian/gocollectd/pkg/sinks/null"
	"github.com/atlassian/gocollectd/pkg/sinks/redis"
	"github.com/atlassian/gocollectd/pkg/sinks/stdout"
)

// All known sinks.
var sinks = map[string]gocollectd.SinkFactory{
	graphite.SinkName: graphite.NewClientFromViper,
	null.SinkName:     null.NewClientFromViper,
	redis.SinkName:    redis.NewClientFromViper,
	stdout.SinkName:   stdout.NewClientFromViper,
}

// GetSink creates an instance of the named sink, or nil if
// the name is not known. The error return is only used if the named sink
// was known but failed to initialize.
func GetSink(name string, v *viper.Viper, logger logrus.FieldLogger) (gocollectd.Sink, error) {
	f, found := sinks[name]
	if !found {
		return nil, nil
	}
	return f(v, logger)
}

// InitSink creates an instance of the named sink.
func InitSink(name string, v *viper.Viper, logger logrus.FieldLogger) (gocollectd.Sink, error) {
	if name == "" {
		logger.Info("No sink specified")
		return nil, nil
	}

	sink, err := GetSink(name, v, logger)
	if err != nil {
		return nil, fmt.Errorf("could not init sink %q: %v", name, err)
	}
	if sink == nil {
		return nil, fmt.Errorf("unknown sink %q", name)
	}
	logger.Infof("Initialised sink %q", name)

	return sink, nil
}
