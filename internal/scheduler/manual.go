package scheduler

import (
	"sync"
	"time"
)

// Manual is a Scheduler whose clock only moves when Advance is called. Due
// tasks run synchronously on the goroutine calling Advance, in time order,
// ties broken by scheduling order.
type Manual struct {
	mutex   sync.Mutex
	now     time.Time
	seq     uint64
	entries []*manualEntry
}

type manualEntry struct {
	owner   *Manual
	at      time.Time
	every   time.Duration
	task    Task
	seq     uint64
	stopped bool
}

// NewManual returns a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.now
}

func (m *Manual) After(d time.Duration, task Task) Handle {
	return m.add(d, 0, task)
}

// Every panics on a non-positive interval, as time.NewTicker does.
func (m *Manual) Every(d time.Duration, task Task) Handle {
	if d <= 0 {
		panic("scheduler: non-positive interval for Every")
	}
	return m.add(d, d, task)
}

func (m *Manual) add(d, every time.Duration, task Task) *manualEntry {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.seq++
	e := &manualEntry{
		owner: m,
		at:    m.now.Add(d),
		every: every,
		task:  task,
		seq:   m.seq,
	}
	m.entries = append(m.entries, e)
	return e
}

// Advance moves the clock forward by d, running every task that falls due.
func (m *Manual) Advance(d time.Duration) {
	m.mutex.Lock()
	target := m.now.Add(d)
	m.mutex.Unlock()

	for {
		m.mutex.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.now = target
			m.mutex.Unlock()
			return
		}

		m.now = next.at
		if next.every > 0 {
			next.at = next.at.Add(next.every)
		} else {
			next.stopped = true
		}
		m.compact()
		m.mutex.Unlock()

		next.task()
	}
}

// Periodic reports the number of live periodic tasks.
func (m *Manual) Periodic() int {
	return m.count(func(e *manualEntry) bool { return e.every > 0 })
}

// Pending reports the number of live one-shot tasks.
func (m *Manual) Pending() int {
	return m.count(func(e *manualEntry) bool { return e.every == 0 })
}

func (m *Manual) count(match func(*manualEntry) bool) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	n := 0
	for _, e := range m.entries {
		if !e.stopped && match(e) {
			n++
		}
	}
	return n
}

// nextDue must be called with the mutex held.
func (m *Manual) nextDue(target time.Time) *manualEntry {
	var next *manualEntry
	for _, e := range m.entries {
		if e.stopped || e.at.After(target) {
			continue
		}
		if next == nil || e.at.Before(next.at) || (e.at.Equal(next.at) && e.seq < next.seq) {
			next = e
		}
	}
	return next
}

// compact must be called with the mutex held.
func (m *Manual) compact() {
	live := m.entries[:0]
	for _, e := range m.entries {
		if !e.stopped {
			live = append(live, e)
		}
	}
	for i := len(live); i < len(m.entries); i++ {
		m.entries[i] = nil
	}
	m.entries = live
}

func (e *manualEntry) Stop() bool {
	e.owner.mutex.Lock()
	defer e.owner.mutex.Unlock()

	if e.stopped {
		return false
	}
	e.stopped = true
	e.owner.compact()
	return true
}
