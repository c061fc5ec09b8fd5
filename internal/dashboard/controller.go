// Package dashboard implements the dashboard controller: it owns the
// periodic refresh timer, polls the monitor backend, renders the result
// into a View and surfaces failures as self-expiring notifications.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/angeloszaimis/healthdash/internal/metrics"
	"github.com/angeloszaimis/healthdash/internal/scheduler"
	"github.com/angeloszaimis/healthdash/internal/status"
	"github.com/angeloszaimis/healthdash/internal/statusapi"
)

// Key names understood by HandleKey.
const (
	KeyRefresh = "ctrl+r"
	KeyToggle  = "ctrl+p"
)

// Source is the backend the controller polls.
type Source interface {
	FetchStatus(ctx context.Context) ([]status.Service, error)
	FetchSystemInfo(ctx context.Context) (status.SystemInfo, error)
}

// Config holds the fixed constants of a controller.
type Config struct {
	RefreshInterval time.Duration
	NotificationTTL time.Duration
	TimeLayout      string
	AutoRefresh     bool
}

// DefaultConfig polls every 30 seconds and keeps notifications for 3.
func DefaultConfig() Config {
	return Config{
		RefreshInterval: 30 * time.Second,
		NotificationTTL: 3 * time.Second,
		TimeLayout:      "02/01/2006, 15:04:05",
		AutoRefresh:     true,
	}
}

// Dialog is a blocking informational box. It stays open until dismissed.
type Dialog struct {
	Title string
	Lines []string
	Error bool
}

// State is a copy of everything the UI draws.
type State struct {
	View               View
	Notifications      []Notification
	Dialog             *Dialog
	AutoRefreshEnabled bool
	LastUpdated        time.Time
	LastUpdatedText    string
	Polls              *metrics.Snapshot
}

type Option func(*Controller)

// WithCollector attaches a poll metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *Controller) { c.collector = collector }
}

// Controller holds the dashboard state for the lifetime of one view. All
// methods are safe for concurrent use.
type Controller struct {
	source    Source
	sched     scheduler.Scheduler
	logger    *slog.Logger
	cfg       Config
	collector *metrics.Collector

	mutex         sync.Mutex
	ctx           context.Context
	cancel        context.CancelFunc
	autoRefresh   bool
	timer         scheduler.Handle
	pending       map[scheduler.Handle]struct{}
	issued        uint64
	rendered      uint64
	view          View
	lastUpdated   time.Time
	notifications []Notification
	expiries      map[string]scheduler.Handle
	dialog        *Dialog
	closed        bool
	onChange      func()
}

func New(source Source, sched scheduler.Scheduler, logger *slog.Logger, cfg Config, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		source:   source,
		sched:    sched,
		logger:   logger,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(map[scheduler.Handle]struct{}),
		expiries: make(map[string]scheduler.Handle),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// OnChange registers fn to be called after every state change. fn runs
// without the controller lock held and may call Snapshot.
func (c *Controller) OnChange(fn func()) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.onChange = fn
}

// Start is the initial-load hook: it starts auto-refresh when enabled by
// configuration and schedules the first refresh right away. Requests
// issued by the controller are bound to ctx. Start after Teardown does
// nothing.
func (c *Controller) Start(ctx context.Context) {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.cancel()
	c.ctx, c.cancel = context.WithCancel(ctx)
	if c.cfg.AutoRefresh {
		c.startTimer()
	}
	c.dispatchRefresh()
	c.mutex.Unlock()

	c.logger.Info("Dashboard started",
		slog.Bool("auto_refresh", c.cfg.AutoRefresh),
		slog.Duration("interval", c.cfg.RefreshInterval))

	c.changed()
}

// Refresh polls the backend once and replaces the view with the answer.
// Failures leave the view as it was and raise one error notification; the
// returned error has already been surfaced and is for logging only.
// Refresh never panics.
func (c *Controller) Refresh(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("refresh panicked: %v", r)
			c.logger.Error("Refresh panicked", slog.Any("panic", r))
			c.ShowNotification("Error updating data: "+err.Error(), SeverityError)
		}
	}()

	c.mutex.Lock()
	c.issued++
	seq := c.issued
	c.mutex.Unlock()

	c.logger.Debug("Refreshing status", slog.Uint64("seq", seq))
	c.emit(metrics.MetricEvent{Type: metrics.EventPollStarted, Timestamp: time.Now()})

	start := time.Now()
	services, err := c.source.FetchStatus(ctx)
	elapsed := time.Since(start)

	if c.isClosed() {
		return err
	}

	if err != nil {
		kind := statusapi.KindOf(err)
		c.emit(metrics.MetricEvent{
			Type:      metrics.EventPollFailed,
			Timestamp: time.Now(),
			Duration:  elapsed,
			Kind:      kind.String(),
		})
		c.logger.Warn("Refresh failed",
			slog.Uint64("seq", seq),
			slog.String("kind", kind.String()),
			slog.Any("err", err))
		c.ShowNotification("Error updating data: "+err.Error(), SeverityError)
		return err
	}

	if !c.apply(seq, services) {
		c.emit(metrics.MetricEvent{Type: metrics.EventPollDiscarded, Timestamp: time.Now()})
		c.logger.Debug("Discarding stale status answer",
			slog.Uint64("seq", seq))
		return nil
	}

	c.emit(metrics.MetricEvent{
		Type:      metrics.EventPollSucceeded,
		Timestamp: time.Now(),
		Duration:  elapsed,
		Services:  len(services),
	})
	c.logger.Debug("Status updated",
		slog.Uint64("seq", seq),
		slog.Int("services", len(services)),
		slog.Duration("elapsed", elapsed))

	c.changed()
	return nil
}

// apply renders the answer of request seq unless a newer one is already
// on screen.
func (c *Controller) apply(seq uint64, services []status.Service) bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if seq < c.rendered {
		return false
	}
	c.rendered = seq
	c.render(services)
	c.lastUpdated = c.sched.Now()
	return true
}

// RequestRefresh schedules an immediate refresh without blocking the
// caller.
func (c *Controller) RequestRefresh() {
	c.mutex.Lock()
	if !c.closed {
		c.dispatchRefresh()
	}
	c.mutex.Unlock()
}

// Render replaces the view with services. It is the full re-render used by
// Refresh, exposed for callers that already hold a poll result.
func (c *Controller) Render(services []status.Service) {
	func() {
		c.mutex.Lock()
		defer c.mutex.Unlock()
		c.render(services)
	}()

	c.changed()
}

// render must be called with the mutex held.
func (c *Controller) render(services []status.Service) {
	for i, s := range services {
		if err := s.Validate(); err != nil {
			c.logger.Warn("Backend sent an incomplete service record",
				slog.Int("index", i),
				slog.String("name", s.Name),
				slog.String("defect", err.Error()))
		}
	}
	c.view = BuildView(services)
}

// ToggleAutoRefresh flips auto-refresh. Disabling cancels the current
// timer; enabling starts exactly one.
func (c *Controller) ToggleAutoRefresh() bool {
	c.mutex.Lock()
	if c.closed {
		enabled := c.autoRefresh
		c.mutex.Unlock()
		return enabled
	}
	if c.autoRefresh {
		c.stopTimer()
	} else {
		c.startTimer()
	}
	enabled := c.autoRefresh
	c.mutex.Unlock()

	msg := "Auto-refresh disabled"
	if enabled {
		msg = "Auto-refresh enabled"
	}
	c.logger.Info(msg)
	c.ShowNotification(msg, SeverityInfo)

	return enabled
}

// AutoRefreshEnabled reports the current auto-refresh flag.
func (c *Controller) AutoRefreshEnabled() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.autoRefresh
}

// startTimer must be called with the mutex held.
func (c *Controller) startTimer() {
	if c.timer == nil {
		c.timer = c.sched.Every(c.cfg.RefreshInterval, c.tick)
	}
	c.autoRefresh = true
}

// stopTimer must be called with the mutex held.
func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.autoRefresh = false
}

// dispatchRefresh must be called with the mutex held.
func (c *Controller) dispatchRefresh() {
	var h scheduler.Handle
	h = c.sched.After(0, func() {
		c.mutex.Lock()
		delete(c.pending, h)
		c.mutex.Unlock()
		c.tick()
	})
	c.pending[h] = struct{}{}
}

func (c *Controller) tick() {
	c.mutex.Lock()
	ctx := c.ctx
	c.mutex.Unlock()

	_ = c.Refresh(ctx)
}

// HandleKey runs the action bound to key and reports whether the key was
// consumed. Consumed keys must not fall through to other handlers.
func (c *Controller) HandleKey(key string) bool {
	switch key {
	case KeyRefresh:
		c.RequestRefresh()
		return true
	case KeyToggle:
		c.ToggleAutoRefresh()
		return true
	default:
		return false
	}
}

// ViewSystemInfo fetches backend metadata and opens a dialog with it, or
// an error dialog when the fetch fails.
func (c *Controller) ViewSystemInfo(ctx context.Context) *Dialog {
	info, err := c.source.FetchSystemInfo(ctx)

	var d *Dialog
	if err != nil {
		c.logger.Warn("Fetching system info failed", slog.Any("err", err))
		d = &Dialog{
			Title: "Error",
			Lines: []string{"Error retrieving system information"},
			Error: true,
		}
	} else {
		d = c.systemDialog(info)
	}

	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return d
	}
	c.dialog = d
	c.mutex.Unlock()

	c.changed()
	return d
}

func (c *Controller) systemDialog(info status.SystemInfo) *Dialog {
	stateFile := "missing"
	if info.StateFileExists {
		stateFile = "exists"
	}

	lastUpdate := "never"
	if info.LastUpdate != nil {
		lastUpdate = status.FormatEpoch(*info.LastUpdate, c.cfg.TimeLayout)
	}

	return &Dialog{
		Title: "System information",
		Lines: []string{
			fmt.Sprintf("Version: %s", info.MonitorVersion),
			fmt.Sprintf("State file: %s", stateFile),
			fmt.Sprintf("Last update: %s", lastUpdate),
		},
	}
}

// DismissDialog closes the open dialog, if any.
func (c *Controller) DismissDialog() bool {
	c.mutex.Lock()
	open := c.dialog != nil
	c.dialog = nil
	c.mutex.Unlock()

	if open {
		c.changed()
	}
	return open
}

// Teardown cancels the refresh timer, queued refreshes, pending
// notification expiries and in-flight requests. Calling it with nothing
// active, or more than once, is safe.
func (c *Controller) Teardown() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	for h := range c.pending {
		h.Stop()
		delete(c.pending, h)
	}
	c.stopExpiries()
	c.cancel()
	c.mutex.Unlock()

	c.logger.Info("Dashboard stopped")
}

// Snapshot copies the drawable state.
func (c *Controller) Snapshot() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	st := State{
		View:               c.view.clone(),
		Notifications:      append([]Notification(nil), c.notifications...),
		AutoRefreshEnabled: c.autoRefresh,
		LastUpdated:        c.lastUpdated,
	}
	if !c.lastUpdated.IsZero() {
		st.LastUpdatedText = c.lastUpdated.Format(c.cfg.TimeLayout)
	}
	if c.dialog != nil {
		d := *c.dialog
		d.Lines = append([]string(nil), c.dialog.Lines...)
		st.Dialog = &d
	}
	if c.collector != nil {
		snap := c.collector.Snapshot()
		st.Polls = &snap
	}

	return st
}

func (c *Controller) isClosed() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.closed
}

func (c *Controller) changed() {
	c.mutex.Lock()
	fn := c.onChange
	c.mutex.Unlock()

	if fn != nil {
		fn()
	}
}

func (c *Controller) emit(event metrics.MetricEvent) {
	if c.collector == nil {
		return
	}
	c.collector.Emit(event)
}
