package formanalysis

import (
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// Handle is a scheduled task. Cancel prevents any future run of the task and
// may be called any number of times.
type Handle interface {
	Cancel()
}

// Scheduler hands out cancellable one-shot and periodic tasks.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Handle
	Every(period time.Duration, f func()) Handle
}

// TimeScheduler runs tasks on wall clock timers. A periodic task runs on its
// own goroutine; a tick that comes due while the previous run is still busy
// is skipped, never queued.
type TimeScheduler struct {
	// OnSkip, if set, is called for every skipped periodic tick.
	OnSkip func()
	// OnPanic, if set, gets the value recovered from a panicking task.
	// A periodic task keeps running on its schedule.
	OnPanic func(recovered any)
}

func NewTimeScheduler() *TimeScheduler {
	return &TimeScheduler{}
}

func (s *TimeScheduler) Now() time.Time {
	return time.Now()
}

func (s *TimeScheduler) AfterFunc(d time.Duration, f func()) Handle {
	h := &timerHandle{}
	h.timer = time.AfterFunc(d, func() {
		if h.canceled.Load() {
			return
		}
		s.run(f)
	})
	return h
}

func (s *TimeScheduler) Every(period time.Duration, f func()) Handle {
	h := &tickerHandle{
		stop: make(chan struct{}),
	}
	ticker := time.NewTicker(period)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-h.stop:
				return
			case <-ticker.C:
				if h.canceled.Load() {
					return
				}
				s.run(f)
				// the ticker buffers one tick while f runs; drop it
				select {
				case <-ticker.C:
					if s.OnSkip != nil {
						s.OnSkip()
					}
				default:
				}
			}
		}
	}()
	return h
}

func (s *TimeScheduler) run(f func()) {
	defer func() {
		if recovered := recover(); recovered != nil {
			log.Errorf("scheduler: panic running task: %v\n%s", recovered, debug.Stack())
			if s.OnPanic != nil {
				s.OnPanic(recovered)
			}
		}
	}()
	f()
}

type timerHandle struct {
	timer    *time.Timer
	canceled atomic.Bool
}

func (h *timerHandle) Cancel() {
	h.canceled.Store(true)
	h.timer.Stop()
}

type tickerHandle struct {
	stop     chan struct{}
	once     sync.Once
	canceled atomic.Bool
}

func (h *tickerHandle) Cancel() {
	h.canceled.Store(true)
	h.once.Do(func() {
		close(h.stop)
	})
}

// ManualScheduler is a virtual clock. Nothing runs until Advance is called;
// Advance then runs every task that comes due, in due time order, on the
// calling goroutine.
type ManualScheduler struct {
	mu    sync.Mutex
	start time.Time
	now   time.Duration
	seq   uint64
	tasks []*manualTask
}

type manualTask struct {
	sched    *ManualScheduler
	due      time.Duration
	seq      uint64
	period   time.Duration
	f        func()
	canceled bool
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		start: start,
	}
}

func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.start.Add(m.now)
}

// Elapsed returns the virtual time passed since the scheduler was created.
func (m *ManualScheduler) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualScheduler) AfterFunc(d time.Duration, f func()) Handle {
	return m.add(d, 0, f)
}

func (m *ManualScheduler) Every(period time.Duration, f func()) Handle {
	return m.add(period, period, f)
}

func (m *ManualScheduler) add(d, period time.Duration, f func()) *manualTask {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTask{
		sched:  m,
		due:    m.now + d,
		seq:    m.seq,
		period: period,
		f:      f,
	}
	m.tasks = append(m.tasks, t)
	return t
}

// Pending returns the number of scheduled, not yet cancelled tasks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves the clock forward by d, running due tasks along the way.
// Tasks scheduled by running tasks are honoured if they fall inside the window.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		if next.period > 0 {
			next.due += next.period
			m.seq++
			next.seq = m.seq
		} else {
			m.removeLocked(next)
		}
		f := next.f
		m.mu.Unlock()

		f()
	}
}

func (m *ManualScheduler) nextDueLocked(target time.Duration) *manualTask {
	var next *manualTask
	for _, t := range m.tasks {
		if t.due > target {
			continue
		}
		if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
			next = t
		}
	}
	return next
}

func (m *ManualScheduler) removeLocked(task *manualTask) {
	for i, t := range m.tasks {
		if t == task {
			m.tasks = append(m.tasks[:i], m.tasks[i+1:]...)
			return
		}
	}
}

func (t *manualTask) Cancel() {
	t.sched.mu.Lock()
	defer t.sched.mu.Unlock()
	if t.canceled {
		return
	}
	t.canceled = true
	t.sched.removeLocked(t)
}
