package web

import (
	"context"
	"expvar"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/atlassian/gocollectd"
	"github.com/atlassian/gocollectd/pkg/healthcheck"
	"github.com/atlassian/gocollectd/pkg/typesdb"
	"github.com/atlassian/gocollectd/pkg/util"
)

// Dependencies are what the admin endpoints report on.
type Dependencies struct {
	Types        *typesdb.Database
	Gatherer     prometheus.Gatherer
	HealthChecks []healthcheck.HealthcheckFunc
	DeepChecks   []healthcheck.HealthcheckFunc
}

type httpServer struct {
	logger  logrus.FieldLogger
	address string
	Router  *mux.Router // should be private, but tests reach into it.
	ready   chan string
}

type route struct {
	path    string
	handler http.HandlerFunc
	method  string
	name    string
}

var done = struct{}{}

// NewHttpServersFromViper creates every server named in http-servers, configured under http.<name>.
func NewHttpServersFromViper(v *viper.Viper, logger logrus.FieldLogger, deps Dependencies) ([]*httpServer, error) {
	httpServerNames := v.GetStringSlice(gocollectd.ParamHTTPServers)
	servers := make([]*httpServer, 0, len(httpServerNames))
	for _, httpServerName := range httpServerNames {
		server, err := newHttpServerFromViper(logger, v, httpServerName, deps)
		if err != nil {
			return nil, fmt.Errorf("failed to make http-server %s: %v", httpServerName, err)
		}
		servers = append(servers, server)
	}
	return servers, nil
}

func newHttpServerFromViper(
	logger logrus.FieldLogger,
	vMain *viper.Viper,
	serverName string,
	deps Dependencies,
) (*httpServer, error) {
	vSub := util.GetSubViper(vMain, "http."+serverName)
	vSub.SetDefault("address", "127.0.0.1:8080")
	vSub.SetDefault("enable-prof", false)
	vSub.SetDefault("enable-expvar", false)
	vSub.SetDefault("enable-types", true)
	vSub.SetDefault("enable-metrics", true)
	vSub.SetDefault("enable-healthcheck", true)

	return NewHttpServer(
		logger.WithField("http-server", serverName),
		deps,
		vSub.GetString("address"),
		vSub.GetBool("enable-prof"),
		vSub.GetBool("enable-expvar"),
		vSub.GetBool("enable-types"),
		vSub.GetBool("enable-metrics"),
		vSub.GetBool("enable-healthcheck"),
	)
}

// NewHttpServer creates an admin server listening on address.
func NewHttpServer(
	logger logrus.FieldLogger,
	deps Dependencies,
	address string,
	enableProf,
	enableExpVar,
	enableTypes,
	enableMetrics,
	enableHealthcheck bool,
) (*httpServer, error) {
	var routes []route

	server := &httpServer{
		logger:  logger,
		address: address,
		ready:   make(chan string, 1),
	}

	if enableProf {
		profiler := &traceProfiler{}
		routes = append(routes,
			route{path: "/memprof", handler: profiler.MemProf, method: "POST", name: "profmem_post"},
			route{path: "/pprof", handler: profiler.PProf, method: "POST", name: "profpprof_post"},
			route{path: "/trace", handler: profiler.Trace, method: "POST", name: "proftrace_post"},
		)
	}

	if enableExpVar {
		routes = append(routes,
			route{path: "/expvar", handler: expvar.Handler().ServeHTTP, method: "GET", name: "expvar_get"},
		)
	}

	if enableTypes {
		if deps.Types == nil {
			return nil, fmt.Errorf("types endpoint enabled without a types database")
		}
		th := &typesHandler{logger: logger, types: deps.Types}
		routes = append(routes,
			route{path: "/types", handler: th.list, method: "GET", name: "types_get"},
			route{path: "/types/{name}", handler: th.get, method: "GET", name: "type_get"},
		)
	}

	if enableMetrics {
		gatherer := deps.Gatherer
		if gatherer == nil {
			gatherer = prometheus.DefaultGatherer
		}
		routes = append(routes,
			route{path: "/metrics", handler: promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}).ServeHTTP, method: "GET", name: "metrics_get"},
		)
	}

	if enableHealthcheck {
		hc := &healthChecker{
			logger:       logger,
			healthChecks: deps.HealthChecks,
			deepChecks:   deps.DeepChecks,
		}
		routes = append(routes,
			route{path: "/healthcheck", handler: hc.healthCheck, method: "GET", name: "healthcheck_get"},
			route{path: "/deepcheck", handler: hc.deepCheck, method: "GET", name: "deepcheck_get"},
		)
	}

	if len(routes) == 0 {
		return nil, fmt.Errorf("must enable at least one of prof, expvar, types, metrics, or healthcheck")
	}

	router, err := createRoutes(routes)
	if err != nil {
		return nil, err
	}
	router.NotFoundHandler = server.logRequest(http.HandlerFunc(server.notFound))
	router.Use(server.logRequest)
	server.Router = router

	logger.WithFields(logrus.Fields{
		"address":            address,
		"enable-pprof":       enableProf,
		"enable-expvar":      enableExpVar,
		"enable-types":       enableTypes,
		"enable-metrics":     enableMetrics,
		"enable-healthcheck": enableHealthcheck,
	}).Info("Created server")

	return server, nil
}

func (hs *httpServer) notFound(w http.ResponseWriter, req *http.Request) {
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte("not found"))
}

func createRoutes(routes []route) (*mux.Router, error) {
	router := mux.NewRouter()

	for _, route := range routes {
		r := router.HandleFunc(route.path, route.handler).Methods(route.method).Name(route.name)
		if err := r.GetError(); err != nil {
			return nil, fmt.Errorf("error creating route %s: %v", route.name, err)
		}
	}

	return router, nil
}

func (hs *httpServer) logRequest(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		logFields := logrus.Fields{
			"srcip": strings.Split(req.RemoteAddr, ":")[0],
			"path":  req.URL.Path,
		}
		if route := mux.CurrentRoute(req); route == nil {
			logFields["method"] = req.Method
		} else {
			logFields["route"] = route.GetName()
		}
		if source := req.Header.Get("X-Forwarded-For"); source != "" {
			logFields["forwarded_for"] = source
		}

		start := time.Now()
		handler.ServeHTTP(w, req)
		dur := time.Since(start)

		logFields["duration"] = float64(dur) / float64(time.Millisecond)
		hs.logger.WithFields(logFields).Debug("request")
	})
}

// Addr returns the address the server is listening on, once it is.
func (hs *httpServer) Addr(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case addr := <-hs.ready:
		hs.ready <- addr
		return addr, nil
	}
}

// Run serves requests until ctx is done.
func (hs *httpServer) Run(ctx context.Context) {
	server := &http.Server{
		Addr:    hs.address,
		Handler: hs.Router,
	}

	l, err := net.Listen("tcp", hs.address)
	if err != nil {
		hs.logger.WithError(err).Error("web server failed to listen")
		return
	}
	hs.ready <- l.Addr().String()

	chStopped := make(chan struct{}, 1)
	go hs.waitAndStop(ctx, server, chStopped)

	hs.logger.WithField("address", l.Addr().String()).Info("listening")

	err = server.Serve(l)
	if err != http.ErrServerClosed {
		hs.logger.WithError(err).Error("web server failed")
		return
	}

	// Wait for graceful shutdown of existing connections

	select {
	case <-chStopped:
		// happy
	case <-time.After(6 * time.Second):
		hs.logger.Info("timeout waiting for webserver to stop")
	}
}

// waitAndStop will gracefully shut down the Server when the Context passed is cancelled.  It signals
// on chStopped when it is done.  There is no guarantee that it will actually signal, if the server
// does not shutdown.
func (hs *httpServer) waitAndStop(ctx context.Context, server *http.Server, chStopped chan<- struct{}) {
	<-ctx.Done()

	hs.logger.Info("shutting down web server")
	timeoutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := server.Shutdown(timeoutCtx)
	if err != nil {
		hs.logger.WithError(err).Warn("failed to stop web server")
	}
	chStopped <- done
}
