// Package scheduler abstracts "run after a delay" and "run periodically" so
// that polling loops can be driven by a wall clock in production and by a
// manually advanced clock in tests.
package scheduler

import (
	"log/slog"
	"runtime/debug"
	"sync"
	"time"
)

// Task is a unit of scheduled work.
type Task func()

// Handle cancels a scheduled task. Stop reports whether this call cancelled
// a live task; stopping twice, or after a one-shot task ran, is a no-op.
type Handle interface {
	Stop() bool
}

// Scheduler runs tasks after a delay or at a fixed interval.
type Scheduler interface {
	Now() time.Time
	After(d time.Duration, task Task) Handle
	Every(d time.Duration, task Task) Handle
}

// Wall schedules tasks on real timers. Each run happens on its own
// goroutine; a panicking task is recovered and logged so that a periodic
// task keeps firing.
type Wall struct {
	logger *slog.Logger
}

// New returns a wall-clock scheduler.
func New(logger *slog.Logger) *Wall {
	return &Wall{logger: logger}
}

func (w *Wall) Now() time.Time {
	return time.Now()
}

func (w *Wall) After(d time.Duration, task Task) Handle {
	h := &wallHandle{}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.timer = time.AfterFunc(d, func() {
		if !h.finish() {
			return
		}
		w.run(task)
	})
	return h
}

// Every runs task every d until the handle is stopped. A run that
// outlasts d delays the next tick rather than overlapping it.
func (w *Wall) Every(d time.Duration, task Task) Handle {
	h := &wallHandle{done: make(chan struct{})}
	ticker := time.NewTicker(d)

	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				select {
				case <-h.done:
					return
				default:
				}
				w.run(task)
			}
		}
	}()

	return h
}

func (w *Wall) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Scheduled task panicked",
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())))
		}
	}()
	task()
}

type wallHandle struct {
	mutex   sync.Mutex
	stopped bool
	timer   *time.Timer
	done    chan struct{}
}

// finish marks a one-shot handle as consumed. It returns false if the
// handle was already stopped.
func (h *wallHandle) finish() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.stopped {
		return false
	}
	h.stopped = true
	return true
}

func (h *wallHandle) Stop() bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.stopped {
		return false
	}
	h.stopped = true

	if h.timer != nil {
		h.timer.Stop()
	}
	if h.done != nil {
		close(h.done)
	}
	return true
}
