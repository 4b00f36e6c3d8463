// Package progress carries crawl milestones from the pipeline to pluggable
// sinks. Emitting never blocks the crawl: events are buffered, batched on a
// background goroutine and dropped under sustained backpressure.
package progress
