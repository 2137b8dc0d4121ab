// Package healthcheck defines how components report their health to the admin http servers.
package healthcheck

// HealthcheckFunc is a function that returns a status message, and if the check if healthy or not (false).
// healthchecks must not block, and downstream dependencies should be reported on via a watchdog style, and not by
// making a roundtrip.
type HealthcheckFunc func() (string, HealthyStatus)

// HealthyStatus is the result of a HealthcheckFunc.
type HealthyStatus bool

const (
	Healthy   = HealthyStatus(true)
	Unhealthy = HealthyStatus(false)
)

// HealthCheckProvider is implemented by components that can tell if the server is ready to process traffic.
type HealthCheckProvider interface {
	HealthChecks() []HealthcheckFunc
}

// DeepCheckProvider is implemented by components that watch a downstream dependency, such as a sink.
type DeepCheckProvider interface {
	DeepChecks() []HealthcheckFunc
}

// MaybeAppendHealthChecks appends the checks of maybeProvider, if it provides any.
func MaybeAppendHealthChecks(healthChecks []HealthcheckFunc, deepChecks []HealthcheckFunc, maybeProvider interface{}) ([]HealthcheckFunc, []HealthcheckFunc) {
	if hcp, ok := maybeProvider.(HealthCheckProvider); ok {
		healthChecks = append(healthChecks, hcp.HealthChecks()...)
	}
	if dcp, ok := maybeProvider.(DeepCheckProvider); ok {
		deepChecks = append(deepChecks, dcp.DeepChecks()...)
	}
	return healthChecks, deepChecks
}
