package main

import (
	"context"
	_ "expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/ash2k/stager/wait"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/collectd"
	"github.com/atlassian/gocollectd/pkg/emitter"
	"github.com/atlassian/gocollectd/pkg/healthcheck"
	"github.com/atlassian/gocollectd/pkg/namer"
	"github.com/atlassian/gocollectd/pkg/server"
	"github.com/atlassian/gocollectd/pkg/sinks"
	"github.com/atlassian/gocollectd/pkg/typesdb"
	"github.com/atlassian/gocollectd/pkg/util"
	"github.com/atlassian/gocollectd/pkg/web"
)

const (
	// ParamVerbose enables verbose logging.
	ParamVerbose = "verbose"
	// ParamProfile enables profiler endpoint on the specified address and port.
	ParamProfile = "profile"
	// ParamJSON makes logger log in JSON format.
	ParamJSON = "json"
	// ParamConfigPath provides file with configuration.
	ParamConfigPath = "config-path"
	// ParamVersion makes program output its version.
	ParamVersion = "version"
)

func main() {
	v, version, err := setupConfiguration()
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		logrus.Fatalf("Error while parsing configuration: %v", err)
	}
	if version {
		fmt.Printf("Version: %s - Commit: %s - Date: %s\n", Version, GitCommit, BuildDate)
		return
	}
	if err := run(v); err != nil {
		logrus.Fatalf("%v", err)
	}
}

func run(v *viper.Viper) error {
	logrus.Info("Starting server")
	logger := logrus.StandardLogger()
	registry := prometheus.NewRegistry()

	s, err := constructServer(v, logger, registry)
	if err != nil {
		return err
	}

	var healthChecks, deepChecks []healthcheck.HealthcheckFunc
	for _, sink := range s.Sinks {
		healthChecks, deepChecks = healthcheck.MaybeAppendHealthChecks(healthChecks, deepChecks, sink)
	}
	httpServers, err := web.NewHttpServersFromViper(v, logger, web.Dependencies{
		Types:        s.Types,
		Gatherer:     registry,
		HealthChecks: healthChecks,
		DeepChecks:   deepChecks,
	})
	if err != nil {
		return err
	}

	profileAddr := v.GetString(ParamProfile)
	if profileAddr != "" {
		go func() {
			logrus.Errorf("Profiler server failed: %v", http.ListenAndServe(profileAddr, nil))
		}()
	}

	ctx, cancelFunc := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancelFunc()

	var wg wait.Group
	defer wg.Wait()
	for _, hs := range httpServers {
		wg.StartWithContext(ctx, hs.Run)
	}

	if err := s.Run(ctx); err != nil && err != context.Canceled {
		// Stop the http servers too
		cancelFunc()
		return fmt.Errorf("server error: %v", err)
	}
	return nil
}

func constructServer(v *viper.Viper, logger logrus.FieldLogger, registerer prometheus.Registerer) (*server.Server, error) {
	// Types database
	types, err := loadTypes(v.GetStringSlice(gocollectd.ParamTypesDB))
	if err != nil {
		return nil, err
	}
	logger.WithField("types", types.Len()).Info("Loaded types database")

	// Sinks
	sinkNames := v.GetStringSlice(gocollectd.ParamSinks)
	sinkList := make([]gocollectd.Sink, 0, len(sinkNames))
	for _, sinkName := range sinkNames {
		sink, errSink := sinks.InitSink(sinkName, v, logger)
		if errSink != nil {
			return nil, errSink
		}
		sinkList = append(sinkList, sink)
	}

	policy, err := emitter.ParsePolicy(v.GetString(gocollectd.ParamQueuePolicy))
	if err != nil {
		return nil, err
	}
	gaugeOrder, err := collectd.ParseByteOrder(v.GetString(gocollectd.ParamGaugeByteOrder))
	if err != nil {
		return nil, err
	}

	// Create server
	return &server.Server{
		Sinks:                 sinkList,
		Types:                 types,
		Namer:                 namer.NewNamerFromViper(v),
		InternalNamespace:     v.GetString(gocollectd.ParamInternalNamespace),
		StatserType:           v.GetString(gocollectd.ParamStatserType),
		PrometheusRegisterer:  registerer,
		CollectdAddr:          v.GetString(gocollectd.ParamCollectdAddr),
		MaxReaders:            v.GetInt(gocollectd.ParamMaxReaders),
		MaxParsers:            v.GetInt(gocollectd.ParamMaxParsers),
		ReceiveBatchSize:      v.GetInt(gocollectd.ParamReceiveBatchSize),
		ConnPerReader:         v.GetBool(gocollectd.ParamConnPerReader),
		MaxQueueSize:          v.GetInt(gocollectd.ParamMaxQueueSize),
		QueuePolicy:           policy,
		StateExpiryInterval:   v.GetDuration(gocollectd.ParamStateExpiryInterval),
		GaugeByteOrder:        gaugeOrder,
		BadDatagramsPerMinute: v.GetFloat64(gocollectd.ParamBadDatagramsPerMinute),
		FlushInterval:         v.GetDuration(gocollectd.ParamFlushInterval),
		MaxBatchSize:          v.GetInt(gocollectd.ParamMaxBatchSize),
		HeartbeatEnabled:      v.GetBool(gocollectd.ParamHeartbeatEnabled),
		HeartbeatTags: gocollectd.Tags{
			fmt.Sprintf("version:%s", Version),
			fmt.Sprintf("commit:%s", GitCommit),
		},
		Logger: logger,
	}, nil
}

// loadTypes returns the built in types database when no files are configured.
func loadTypes(files []string) (*typesdb.Database, error) {
	if len(files) == 0 {
		return typesdb.Builtin(), nil
	}
	return typesdb.LoadFiles(files...)
}

func setupConfiguration() (*viper.Viper, bool, error) {
	v := viper.New()
	defer setupLogger(v) // Apply logging configuration in case of early exit
	util.InitViper(v, "")

	var version bool

	cmd := pflag.NewFlagSet(os.Args[0], pflag.ContinueOnError)

	cmd.BoolVar(&version, ParamVersion, false, "Print the version and exit")
	cmd.Bool(ParamVerbose, false, "Verbose")
	cmd.Bool(ParamJSON, false, "Log in JSON format")
	cmd.String(ParamProfile, "", "Enable profiler endpoint on the specified address and port")
	cmd.String(ParamConfigPath, "", "Path to the configuration file")

	gocollectd.AddFlags(cmd)

	cmd.VisitAll(func(flag *pflag.Flag) {
		if err := v.BindPFlag(flag.Name, flag); err != nil {
			panic(err) // Should never happen
		}
	})

	if err := cmd.Parse(os.Args[1:]); err != nil {
		return nil, false, err
	}

	configPath := v.GetString(ParamConfigPath)
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, false, err
		}
	}

	return v, version, nil
}

func setupLogger(v *viper.Viper) {
	if v.GetBool(ParamVerbose) {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if v.GetBool(ParamJSON) {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
}
