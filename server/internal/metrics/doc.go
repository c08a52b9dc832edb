// Package metrics exposes operational counters and gauges in the Prometheus
// text exposition format at /metrics.
//
// Collector implements the observer hooks of the ingest orchestrator and
// the status scheduler, and is registered as an alert listener. Families are
// built directly as client_model protobufs and encoded with expfmt; there is
// no global registry.
package metrics
