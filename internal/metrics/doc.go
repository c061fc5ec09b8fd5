// Package metrics records what the dashboard and the status backend do.
//
// The dashboard side is a channel-based event pipeline: the controller emits
// poll events and a dedicated goroutine folds them into counters and a
// latency window:
//   - Poll counts, successes and stale answers discarded
//   - Failures by kind (transport, http_status, malformed)
//   - Average and P95 poll latency
//   - Service count and time of the last successful poll
//
// Events are sent with non-blocking semantics so a slow collector never
// delays a refresh. Queued events are drained on shutdown.
//
// Example usage:
//
//	collector := metrics.NewCollector(256, logger)
//	collector.Start(ctx)
//
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventPollSucceeded,
//		Duration: 150 * time.Millisecond,
//		Services: 4,
//	})
//
//	snapshot := collector.Snapshot()
//
// The backend side is a prometheus Registry with per-route request counters
// and latency histograms, exposed on /metrics.
package metrics
