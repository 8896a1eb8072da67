package formanalysis

import (
	"sync"
	"time"
)

const (
	FeedbackLeadDelay = 2 * time.Second
	FeedbackInterval  = 3 * time.Second
)

// RevealFunc is called after a message has been appended to the queue.
type RevealFunc func(message string, index int)

// FeedbackScheduler reveals a feedback script one message at a time after an
// activation. All methods must be called with the locker held; reveal
// callbacks take the locker themselves.
type FeedbackScheduler struct {
	sched    Scheduler
	locker   sync.Locker
	onReveal RevealFunc

	// generation identifies the current activation; reveals from an older
	// activation never touch the queue
	generation uint64
	active     bool
	queue      []string
	handles    []Handle
	pending    int
}

func NewFeedbackScheduler(sched Scheduler, locker sync.Locker, onReveal RevealFunc) *FeedbackScheduler {
	if locker == nil {
		locker = noopLocker{}
	}
	return &FeedbackScheduler{
		sched:    sched,
		locker:   locker,
		onReveal: onReveal,
	}
}

// Activate discards any previous queue and schedules message i of script at
// FeedbackLeadDelay + i*FeedbackInterval from now.
func (f *FeedbackScheduler) Activate(script []string) {
	f.cancelPending()
	f.generation++
	f.active = true
	f.queue = make([]string, 0, len(script))

	gen := f.generation
	for i, msg := range script {
		delay := FeedbackLeadDelay + time.Duration(i)*FeedbackInterval
		index, message := i, msg
		f.handles = append(f.handles, f.sched.AfterFunc(delay, func() {
			f.locker.Lock()
			defer f.locker.Unlock()
			f.reveal(gen, index, message)
		}))
	}
	f.pending = len(script)
}

func (f *FeedbackScheduler) reveal(gen uint64, index int, message string) {
	if !f.active || gen != f.generation {
		return
	}
	f.queue = append(f.queue, message)
	f.pending--
	if f.onReveal != nil {
		f.onReveal(message, index)
	}
}

// Cancel stops every pending reveal of the current activation and drops the
// queue. Calling it while inactive is a no-op.
func (f *FeedbackScheduler) Cancel() {
	f.cancelPending()
	f.active = false
	f.queue = nil
	f.generation++
}

func (f *FeedbackScheduler) cancelPending() {
	for _, h := range f.handles {
		h.Cancel()
	}
	f.handles = nil
	f.pending = 0
}

func (f *FeedbackScheduler) Active() bool {
	return f.active
}

// Revealed returns a copy of the messages revealed so far, nil when inactive.
func (f *FeedbackScheduler) Revealed() []string {
	if !f.active {
		return nil
	}
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}

// Pending is the number of reveals still scheduled for this activation.
func (f *FeedbackScheduler) Pending() int {
	return f.pending
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}
