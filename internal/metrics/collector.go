package metrics

import (
	"context"
	"log/slog"
	"time"
)

type EventType string

const (
	EventPollStarted   EventType = "poll_started"
	EventPollSucceeded EventType = "poll_succeeded"
	EventPollFailed    EventType = "poll_failed"
	EventPollDiscarded EventType = "poll_discarded"
)

type MetricEvent struct {
	Type      EventType
	Timestamp time.Time
	Duration  time.Duration
	Services  int
	Kind      string
}

// Collector applies poll events to Metrics on its own goroutine so that
// the refresh path never blocks on bookkeeping.
type Collector struct {
	eventCh chan MetricEvent
	metrics *Metrics
	logger  *slog.Logger
}

func NewCollector(bufferSize int, logger *slog.Logger) *Collector {
	return &Collector{
		eventCh: make(chan MetricEvent, bufferSize),
		metrics: NewMetrics(),
		logger:  logger,
	}
}

// Emit queues event, dropping it when the buffer is full.
func (c *Collector) Emit(event MetricEvent) bool {
	select {
	case c.eventCh <- event:
		return true
	default:
		return false
	}
}

func (c *Collector) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Collector) run(ctx context.Context) {
	c.logger.Debug("Metrics collector started")
	defer c.logger.Debug("Metrics collector stopped")

	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		case <-ctx.Done():
			c.drain()
			return
		}
	}
}

func (c *Collector) processEvent(event MetricEvent) {
	switch event.Type {
	case EventPollStarted:
		c.metrics.IncrementPolls()

	case EventPollSucceeded:
		c.metrics.RecordSuccess(event.Duration, event.Services, event.Timestamp)

	case EventPollFailed:
		c.metrics.RecordFailure(event.Kind, event.Duration)

	case EventPollDiscarded:
		c.metrics.RecordDiscarded()
	}
}

func (c *Collector) drain() {
	for {
		select {
		case event := <-c.eventCh:
			c.processEvent(event)
		default:
			return
		}
	}
}

func (c *Collector) Snapshot() Snapshot {
	return c.metrics.Snapshot()
}
