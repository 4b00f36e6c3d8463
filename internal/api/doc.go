// Package api serves the operator HTTP surface while a crawl runs:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/journals and /v1/journals/{name} for per-journal progress.
package api
