package metrics_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/healthdash/internal/metrics"
	"github.com/angeloszaimis/healthdash/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, logger.Discard())
	})

	AfterEach(func() {
		cancel()
	})

	It("should process poll events", func() {
		collector.Start(ctx)

		Expect(collector.Emit(metrics.MetricEvent{Type: metrics.EventPollStarted, Timestamp: time.Now()})).To(BeTrue())
		Expect(collector.Emit(metrics.MetricEvent{Type: metrics.EventPollSucceeded, Timestamp: time.Now(), Duration: 50 * time.Millisecond, Services: 3})).To(BeTrue())
		Expect(collector.Emit(metrics.MetricEvent{Type: metrics.EventPollStarted, Timestamp: time.Now()})).To(BeTrue())
		Expect(collector.Emit(metrics.MetricEvent{Type: metrics.EventPollFailed, Timestamp: time.Now(), Kind: "http_status"})).To(BeTrue())
		Expect(collector.Emit(metrics.MetricEvent{Type: metrics.EventPollDiscarded, Timestamp: time.Now()})).To(BeTrue())

		Eventually(func() int64 { return collector.Snapshot().TotalPolls }).Should(Equal(int64(2)))
		Eventually(func() int64 { return collector.Snapshot().Discarded }).Should(Equal(int64(1)))

		snap := collector.Snapshot()
		Expect(snap.Successes).To(Equal(int64(1)))
		Expect(snap.LastServiceCount).To(Equal(3))
		Expect(snap.Failures["http_status"]).To(Equal(int64(1)))
	})

	It("should drain queued events on shutdown", func() {
		for i := 0; i < 5; i++ {
			Expect(collector.Emit(metrics.MetricEvent{Type: metrics.EventPollStarted})).To(BeTrue())
		}

		cancel()
		collector.Start(ctx)

		Eventually(func() int64 { return collector.Snapshot().TotalPolls }).Should(Equal(int64(5)))
	})

	It("should drop events when the buffer is full", func() {
		small := metrics.NewCollector(1, logger.Discard())
		Expect(small.Emit(metrics.MetricEvent{Type: metrics.EventPollStarted})).To(BeTrue())
		Expect(small.Emit(metrics.MetricEvent{Type: metrics.EventPollStarted})).To(BeFalse())
	})
})
