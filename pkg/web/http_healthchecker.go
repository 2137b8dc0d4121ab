package web

import (
	"net/http"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/atlassian/gocollectd/pkg/healthcheck"
)

type healthChecker struct {
	logger       logrus.FieldLogger
	healthChecks []healthcheck.HealthcheckFunc
	deepChecks   []healthcheck.HealthcheckFunc
}

func runHealthChecks(checks []healthcheck.HealthcheckFunc) (good []string, bad []string) {
	// Force it render as an array, not null
	good = []string{}
	bad = []string{}
	for _, check := range checks {
		report, isHealthy := check()
		if isHealthy == healthcheck.Healthy {
			good = append(good, report)
		} else {
			bad = append(bad, report)
		}
	}
	return good, bad
}

func respondToHealthChecks(resp http.ResponseWriter, checks []healthcheck.HealthcheckFunc) {
	good, bad := runHealthChecks(checks)
	status := http.StatusOK
	if len(bad) > 0 {
		status = http.StatusInternalServerError
	}
	respondJSON(resp, status, map[string][]string{
		"ok":     good,
		"failed": bad,
	})
}

// healthCheck reports if the server is ready to process traffic.
func (hc *healthChecker) healthCheck(resp http.ResponseWriter, req *http.Request) {
	respondToHealthChecks(resp, hc.healthChecks)
}

// deepCheck reports on the status of downstream dependencies.
func (hc *healthChecker) deepCheck(resp http.ResponseWriter, req *http.Request) {
	hc.logger.Debug("deepCheck")
	respondToHealthChecks(resp, hc.deepChecks)
}

func respondJSON(resp http.ResponseWriter, status int, v interface{}) {
	resp.Header().Set("content-type", "application/json")
	resp.WriteHeader(status)
	enc := jsoniter.NewEncoder(resp)
	_ = enc.Encode(v)
}
