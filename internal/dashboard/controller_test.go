package dashboard_test

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/healthdash/internal/dashboard"
	"github.com/angeloszaimis/healthdash/internal/metrics"
	"github.com/angeloszaimis/healthdash/internal/scheduler"
	"github.com/angeloszaimis/healthdash/internal/status"
	"github.com/angeloszaimis/healthdash/internal/statusapi"
	"github.com/angeloszaimis/healthdash/pkg/logger"
)

var exampleServices = []status.Service{
	{Name: "api", Status: "OK", RestartsLastHour: 0, LastChecked: "12:00:00"},
	{Name: "db", Status: "CRITICAL", LastError: "connection refused", RestartsLastHour: 3, LastChecked: "12:00:01"},
}

var _ = Describe("Controller", func() {
	var (
		start time.Time
		clock *scheduler.Manual
		src   *fakeSource
		cfg   dashboard.Config
		ctrl  *dashboard.Controller
		ctx   context.Context
	)

	newController := func(opts ...dashboard.Option) *dashboard.Controller {
		return dashboard.New(src, clock, logger.Discard(), cfg, opts...)
	}

	errorNotifications := func() []dashboard.Notification {
		var out []dashboard.Notification
		for _, n := range ctrl.Snapshot().Notifications {
			if n.Severity == dashboard.SeverityError {
				out = append(out, n)
			}
		}
		return out
	}

	BeforeEach(func() {
		ctx = context.Background()
		start = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
		clock = scheduler.NewManual(start)
		src = &fakeSource{}
		src.answer(exampleServices, nil)
		cfg = dashboard.DefaultConfig()
		ctrl = newController()
	})

	AfterEach(func() {
		ctrl.Teardown()
	})

	Describe("Refresh", func() {
		It("should render the example scenario", func() {
			Expect(ctrl.Refresh(ctx)).To(Succeed())

			rows := ctrl.Snapshot().View.Rows
			Expect(rows).To(HaveLen(2))

			Expect(rows[0].Name).To(Equal("api"))
			Expect(rows[0].Tier).To(Equal(status.TierOK))
			Expect(rows[0].Marker).To(Equal(status.MarkerPositive))
			Expect(rows[0].Error).To(Equal(dashboard.PlaceholderError))

			Expect(rows[1].Name).To(Equal("db"))
			Expect(rows[1].Tier).To(Equal(status.TierCritical))
			Expect(rows[1].Marker).To(Equal(status.MarkerSevere))
			Expect(rows[1].Error).To(Equal("connection refused"))
			Expect(rows[1].Restarts).To(Equal(3))
		})

		It("should stamp the last update with the scheduler clock", func() {
			clock.Advance(5 * time.Second)
			Expect(ctrl.Refresh(ctx)).To(Succeed())

			st := ctrl.Snapshot()
			Expect(st.LastUpdated).To(Equal(start.Add(5 * time.Second)))
			Expect(st.LastUpdatedText).To(Equal("14/03/2025, 09:26:58"))
		})

		It("should replace the whole view on every poll", func() {
			Expect(ctrl.Refresh(ctx)).To(Succeed())

			src.answer([]status.Service{{Name: "cache", Status: "WARNING"}}, nil)
			Expect(ctrl.Refresh(ctx)).To(Succeed())

			rows := ctrl.Snapshot().View.Rows
			Expect(rows).To(HaveLen(1))
			Expect(rows[0].Name).To(Equal("cache"))
			Expect(rows[0].Tier).To(Equal(status.TierWarning))
		})

		DescribeTable("keeps the previous view and raises one error notification",
			func(failure error, fragment string) {
				Expect(ctrl.Refresh(ctx)).To(Succeed())
				before := ctrl.Snapshot().View

				src.answer(nil, failure)
				err := ctrl.Refresh(ctx)
				Expect(err).To(HaveOccurred())

				Expect(ctrl.Snapshot().View).To(Equal(before))
				notes := errorNotifications()
				Expect(notes).To(HaveLen(1))
				Expect(notes[0].Message).To(HavePrefix("Error updating data: "))
				Expect(notes[0].Message).To(ContainSubstring(fragment))
			},
			Entry("HTTP 500",
				&statusapi.FetchError{Kind: statusapi.HTTPStatusFailure, StatusCode: http.StatusInternalServerError},
				"HTTP error! status: 500"),
			Entry("transport failure",
				&statusapi.FetchError{Kind: statusapi.TransportFailure, Endpoint: "http://x/api/status", Err: errors.New("connection refused")},
				"connection refused"),
			Entry("malformed body",
				&statusapi.FetchError{Kind: statusapi.MalformedResponse, Endpoint: "http://x/api/status", Err: status.ErrMalformed},
				"malformed status payload"),
		)

		It("should not update the last update time on failure", func() {
			Expect(ctrl.Refresh(ctx)).To(Succeed())
			stamp := ctrl.Snapshot().LastUpdated

			clock.Advance(time.Minute)
			src.answer(nil, errors.New("down"))
			Expect(ctrl.Refresh(ctx)).NotTo(Succeed())

			Expect(ctrl.Snapshot().LastUpdated).To(Equal(stamp))
		})

		It("should convert a panicking source into a notification", func() {
			panicky := dashboard.New(panicSource{}, clock, logger.Discard(), cfg)
			defer panicky.Teardown()

			var err error
			Expect(func() { err = panicky.Refresh(ctx) }).NotTo(Panic())
			Expect(err).To(MatchError(ContainSubstring("refresh panicked")))
			Expect(panicky.Snapshot().Notifications).To(HaveLen(1))
		})

		It("should release the lock when rendering panics", func() {
			src.answer([]status.Service{{Status: "OK"}}, nil)
			fragile := dashboard.New(src, clock, slog.New(defectPanicHandler{}), cfg)
			defer fragile.Teardown()

			done := make(chan error, 1)
			go func() { done <- fragile.Refresh(ctx) }()

			Eventually(done).Should(Receive(MatchError(ContainSubstring("refresh panicked"))))
			Expect(fragile.Snapshot().Notifications).To(HaveLen(1))
			Expect(fragile.ToggleAutoRefresh()).To(BeTrue())
		})

		It("should discard an answer older than the one on screen", func() {
			gate := make(chan struct{})
			src.enqueue(fetchResult{services: []status.Service{{Name: "old", Status: "ERROR"}}, gate: gate})
			src.enqueue(fetchResult{services: []status.Service{{Name: "new", Status: "OK"}}})

			done := make(chan error, 1)
			go func() { done <- ctrl.Refresh(ctx) }()
			Eventually(src.Calls).Should(Equal(1))

			Expect(ctrl.Refresh(ctx)).To(Succeed())
			Expect(ctrl.Snapshot().View.Rows[0].Name).To(Equal("new"))

			close(gate)
			Eventually(done).Should(Receive(BeNil()))
			Expect(ctrl.Snapshot().View.Rows[0].Name).To(Equal("new"))
		})

		It("should report poll outcomes to the collector", func() {
			collector := metrics.NewCollector(16, logger.Discard())
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			collector.Start(cctx)

			ctrl = newController(dashboard.WithCollector(collector))
			Expect(ctrl.Refresh(ctx)).To(Succeed())
			src.answer(nil, &statusapi.FetchError{Kind: statusapi.HTTPStatusFailure, StatusCode: 503})
			Expect(ctrl.Refresh(ctx)).NotTo(Succeed())

			Eventually(func() int64 { return ctrl.Snapshot().Polls.FailureTotal }).Should(Equal(int64(1)))
			polls := ctrl.Snapshot().Polls
			Expect(polls.TotalPolls).To(Equal(int64(2)))
			Expect(polls.Successes).To(Equal(int64(1)))
			Expect(polls.Failures).To(HaveKey("http_status"))
		})
	})

	Describe("Render", func() {
		It("should produce one row per record", func() {
			services := make([]status.Service, 0, 25)
			for i := 0; i < 25; i++ {
				services = append(services, status.Service{Name: "svc", Status: "WARNING"})
			}

			ctrl.Render(services)

			view := ctrl.Snapshot().View
			Expect(view.Rows).To(HaveLen(25))
			Expect(view.Empty()).To(BeFalse())
			Expect(view.Placeholder).To(BeEmpty())
		})

		It("should show the no-data placeholder for an empty collection", func() {
			ctrl.Render(exampleServices)
			ctrl.Render([]status.Service{})

			view := ctrl.Snapshot().View
			Expect(view.Rows).To(BeEmpty())
			Expect(view.Empty()).To(BeTrue())
			Expect(view.Placeholder).To(Equal(dashboard.NoDataMessage))
		})

		It("should use the neutral tier for unknown statuses", func() {
			Expect(func() {
				ctrl.Render([]status.Service{{Name: "x", Status: "ON_FIRE"}})
			}).NotTo(Panic())

			row := ctrl.Snapshot().View.Rows[0]
			Expect(row.Tier).To(Equal(status.TierUnknown))
			Expect(row.Marker).To(Equal(status.MarkerNeutral))
			Expect(row.Status).To(Equal("ON_FIRE"))
		})

		It("should fill absent fields with placeholders", func() {
			ctrl.Render([]status.Service{{}})

			row := ctrl.Snapshot().View.Rows[0]
			Expect(row.Name).To(Equal(dashboard.PlaceholderName))
			Expect(row.Status).To(Equal(dashboard.PlaceholderStatus))
			Expect(row.Error).To(Equal(dashboard.PlaceholderError))
			Expect(row.LastChecked).To(Equal(dashboard.PlaceholderChecked))
			Expect(row.Logs).To(Equal(dashboard.PlaceholderLogs))
		})

		It("should carry the expanded-variant fields", func() {
			ctrl.Render([]status.Service{{Name: "runtime", Status: "error", Logs: "panic: boom", Restarted: true}})

			row := ctrl.Snapshot().View.Rows[0]
			Expect(row.Tier).To(Equal(status.TierError))
			Expect(row.Logs).To(Equal("panic: boom"))
			Expect(row.Restarted).To(BeTrue())
		})

		It("should hand out copies in snapshots", func() {
			ctrl.Render(exampleServices)
			st := ctrl.Snapshot()
			st.View.Rows[0].Name = "mutated"

			Expect(ctrl.Snapshot().View.Rows[0].Name).To(Equal("api"))
		})
	})

	Describe("Start", func() {
		It("should enable auto-refresh with one timer and poll immediately", func() {
			ctrl.Start(ctx)

			Expect(ctrl.AutoRefreshEnabled()).To(BeTrue())
			Expect(clock.Periodic()).To(Equal(1))

			clock.Advance(0)
			Expect(src.Calls()).To(Equal(1))
			Expect(ctrl.Snapshot().View.Rows).To(HaveLen(2))
		})

		It("should poll at the fixed interval", func() {
			ctrl.Start(ctx)
			clock.Advance(0)

			clock.Advance(29 * time.Second)
			Expect(src.Calls()).To(Equal(1))

			clock.Advance(time.Second)
			Expect(src.Calls()).To(Equal(2))

			clock.Advance(90 * time.Second)
			Expect(src.Calls()).To(Equal(5))
		})

		It("should leave auto-refresh off when configured so", func() {
			cfg.AutoRefresh = false
			ctrl = newController()
			ctrl.Start(ctx)

			Expect(ctrl.AutoRefreshEnabled()).To(BeFalse())
			Expect(clock.Periodic()).To(BeZero())

			clock.Advance(5 * time.Minute)
			Expect(src.Calls()).To(Equal(1))
		})

		It("should never create a second timer", func() {
			ctrl.Start(ctx)
			ctrl.Start(ctx)

			Expect(clock.Periodic()).To(Equal(1))
		})

		It("should keep polling after a failed refresh", func() {
			src.answer(nil, errors.New("down"))
			ctrl.Start(ctx)

			clock.Advance(time.Minute)
			Expect(src.Calls()).To(Equal(3))
			Expect(ctrl.AutoRefreshEnabled()).To(BeTrue())
		})
	})

	Describe("ToggleAutoRefresh", func() {
		It("should restore the original state after two calls", func() {
			ctrl.Start(ctx)
			original := ctrl.AutoRefreshEnabled()

			Expect(ctrl.ToggleAutoRefresh()).To(BeFalse())
			Expect(clock.Periodic()).To(BeZero())

			Expect(ctrl.ToggleAutoRefresh()).To(BeTrue())
			Expect(clock.Periodic()).To(Equal(1))

			Expect(ctrl.AutoRefreshEnabled()).To(Equal(original))
		})

		It("should restore a disabled start state too", func() {
			cfg.AutoRefresh = false
			ctrl = newController()
			ctrl.Start(ctx)

			ctrl.ToggleAutoRefresh()
			ctrl.ToggleAutoRefresh()

			Expect(ctrl.AutoRefreshEnabled()).To(BeFalse())
			Expect(clock.Periodic()).To(BeZero())
		})

		It("should stop polling while disabled", func() {
			ctrl.Start(ctx)
			clock.Advance(0)
			ctrl.ToggleAutoRefresh()

			clock.Advance(10 * time.Minute)
			Expect(src.Calls()).To(Equal(1))
		})

		It("should announce the new state", func() {
			ctrl.Start(ctx)

			ctrl.ToggleAutoRefresh()
			notes := ctrl.Snapshot().Notifications
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Message).To(Equal("Auto-refresh disabled"))
			Expect(notes[0].Severity).To(Equal(dashboard.SeverityInfo))

			ctrl.ToggleAutoRefresh()
			notes = ctrl.Snapshot().Notifications
			Expect(notes).To(HaveLen(2))
			Expect(notes[1].Message).To(Equal("Auto-refresh enabled"))
		})
	})

	Describe("ShowNotification", func() {
		It("should remove the notification after its lifetime", func() {
			id := ctrl.ShowNotification("hello", dashboard.SeverityInfo)
			Expect(id).NotTo(BeEmpty())
			Expect(ctrl.Snapshot().Notifications).To(HaveLen(1))

			clock.Advance(2900 * time.Millisecond)
			Expect(ctrl.Snapshot().Notifications).To(HaveLen(1))

			clock.Advance(100 * time.Millisecond)
			Expect(ctrl.Snapshot().Notifications).To(BeEmpty())
			Expect(clock.Pending()).To(BeZero())
		})

		It("should survive manual removal before expiry", func() {
			id := ctrl.ShowNotification("bye", dashboard.SeverityError)

			Expect(ctrl.DismissNotification(id)).To(BeTrue())
			Expect(ctrl.DismissNotification(id)).To(BeFalse())
			Expect(func() { clock.Advance(time.Minute) }).NotTo(Panic())
		})

		It("should expire each notification independently", func() {
			ctrl.ShowNotification("first", dashboard.SeverityInfo)
			clock.Advance(2 * time.Second)
			ctrl.ShowNotification("second", dashboard.SeverityInfo)

			clock.Advance(time.Second)
			notes := ctrl.Snapshot().Notifications
			Expect(notes).To(HaveLen(1))
			Expect(notes[0].Message).To(Equal("second"))

			clock.Advance(2 * time.Second)
			Expect(ctrl.Snapshot().Notifications).To(BeEmpty())
		})

		It("should ignore unknown ids", func() {
			Expect(ctrl.DismissNotification("nope")).To(BeFalse())
		})
	})

	Describe("HandleKey", func() {
		It("should refresh on ctrl+r without blocking", func() {
			Expect(ctrl.HandleKey(dashboard.KeyRefresh)).To(BeTrue())
			Expect(src.Calls()).To(BeZero())

			clock.Advance(0)
			Expect(src.Calls()).To(Equal(1))
		})

		It("should toggle auto-refresh on ctrl+p", func() {
			ctrl.Start(ctx)
			Expect(ctrl.HandleKey(dashboard.KeyToggle)).To(BeTrue())
			Expect(ctrl.AutoRefreshEnabled()).To(BeFalse())
		})

		It("should not consume other keys", func() {
			Expect(ctrl.HandleKey("ctrl+x")).To(BeFalse())
		})
	})

	Describe("ViewSystemInfo", func() {
		It("should open an information dialog", func() {
			ts := float64(start.Unix())
			src.info = status.SystemInfo{MonitorVersion: "1.0.0", StateFileExists: true, LastUpdate: &ts}

			d := ctrl.ViewSystemInfo(ctx)
			Expect(d.Error).To(BeFalse())
			Expect(d.Lines).To(Equal([]string{
				"Version: 1.0.0",
				"State file: exists",
				"Last update: " + status.FormatEpoch(ts, cfg.TimeLayout),
			}))
			Expect(ctrl.Snapshot().Dialog).To(Equal(d))
		})

		It("should say never without a last update", func() {
			src.info = status.SystemInfo{MonitorVersion: "1.0.0"}

			d := ctrl.ViewSystemInfo(ctx)
			Expect(d.Lines).To(ContainElements("State file: missing", "Last update: never"))
		})

		It("should open an error dialog on failure", func() {
			src.infoErr = errors.New("boom")

			d := ctrl.ViewSystemInfo(ctx)
			Expect(d.Error).To(BeTrue())
			Expect(d.Lines).To(Equal([]string{"Error retrieving system information"}))
			Expect(ctrl.Snapshot().Notifications).To(BeEmpty())
		})

		It("should close on dismiss", func() {
			ctrl.ViewSystemInfo(ctx)
			Expect(ctrl.DismissDialog()).To(BeTrue())
			Expect(ctrl.Snapshot().Dialog).To(BeNil())
			Expect(ctrl.DismissDialog()).To(BeFalse())
		})
	})

	Describe("Teardown", func() {
		It("should be safe without an active timer", func() {
			Expect(func() { ctrl.Teardown() }).NotTo(Panic())
			Expect(func() { ctrl.Teardown() }).NotTo(Panic())
		})

		It("should cancel the timer and pending work", func() {
			ctrl.Start(ctx)
			ctrl.ShowNotification("pending", dashboard.SeverityInfo)

			ctrl.Teardown()

			Expect(clock.Periodic()).To(BeZero())
			Expect(clock.Pending()).To(BeZero())

			clock.Advance(time.Hour)
			Expect(src.Calls()).To(BeZero())
		})

		It("should not arm a timer when started afterwards", func() {
			ctrl.Teardown()
			ctrl.Start(ctx)

			Expect(clock.Periodic()).To(BeZero())
			Expect(clock.Pending()).To(BeZero())
			Expect(ctrl.AutoRefreshEnabled()).To(BeFalse())

			clock.Advance(65 * time.Second)
			Expect(src.Calls()).To(BeZero())
		})

		It("should ignore toggles and refresh requests afterwards", func() {
			ctrl.Start(ctx)
			ctrl.Teardown()

			ctrl.ToggleAutoRefresh()
			ctrl.RequestRefresh()
			clock.Advance(time.Hour)

			Expect(clock.Periodic()).To(BeZero())
			Expect(src.Calls()).To(BeZero())
		})
	})

	Describe("OnChange", func() {
		It("should fire after state changes", func() {
			changes := 0
			ctrl.OnChange(func() {
				changes++
				_ = ctrl.Snapshot()
			})

			Expect(ctrl.Refresh(ctx)).To(Succeed())
			Expect(changes).To(BeNumerically(">=", 1))

			before := changes
			ctrl.ShowNotification("x", dashboard.SeverityInfo)
			Expect(changes).To(BeNumerically(">", before))
		})
	})
})

type panicSource struct{}

func (panicSource) FetchStatus(context.Context) ([]status.Service, error) {
	panic("backend exploded")
}

func (panicSource) FetchSystemInfo(context.Context) (status.SystemInfo, error) {
	return status.SystemInfo{}, nil
}

// defectPanicHandler is a log sink that fails while a malformed record is
// being reported.
type defectPanicHandler struct{}

func (defectPanicHandler) Enabled(context.Context, slog.Level) bool { return true }

func (defectPanicHandler) Handle(_ context.Context, r slog.Record) error {
	if strings.HasPrefix(r.Message, "Backend sent an incomplete") {
		panic("log sink failed")
	}
	return nil
}

func (h defectPanicHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h defectPanicHandler) WithGroup(string) slog.Handler      { return h }
