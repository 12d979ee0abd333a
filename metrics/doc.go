// Package metrics provides a lightweight tracker that keeps aggregated
// routing counters (tasks fetched, dispatch outcomes, cache and registry
// traffic, …) for a running service.  Counters are mirrored to OpenTelemetry
// instruments so any installed meter provider receives the same series.
package metrics
