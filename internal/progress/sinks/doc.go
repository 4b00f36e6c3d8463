// Package sinks implements progress consumers: structured logs, Prometheus
// collectors and an in-memory per-journal status table.
package sinks
