package testutil

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler runs delayed callbacks only when Advance is called.
//
// It satisfies status.Scheduler so auto-dismiss timers can be driven
// step by step:
//
//	sched := testutil.NewManualScheduler()
//	n := status.NewNotifier(sched)
//	n.Publish(status.Success, "saved", 3*time.Second)
//	sched.Advance(3 * time.Second) // dismissal fires here
//
// Callbacks fire outside the internal lock, in due order, so they may
// schedule further work.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	due      time.Duration
	seq      int
	fn       func()
	canceled bool
	fired    bool
}

// NewManualScheduler creates a scheduler at elapsed time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

// AfterFunc schedules f to run once d has elapsed. The returned cancel
// reports whether it stopped f from running.
func (s *ManualScheduler) AfterFunc(d time.Duration, f func()) func() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	task := &manualTask{due: s.now + d, seq: s.seq, fn: f}
	s.tasks = append(s.tasks, task)

	return func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		if task.fired || task.canceled {
			return false
		}
		task.canceled = true
		return true
	}
}

// Advance moves elapsed time forward by d and fires every task now due.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	s.now += d
	due := s.takeDue()
	s.mu.Unlock()

	for _, task := range due {
		task.fn()
	}
}

// Pending returns the number of tasks neither fired nor canceled.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, task := range s.tasks {
		if !task.fired && !task.canceled {
			n++
		}
	}
	return n
}

// Elapsed returns the total time advanced so far.
func (s *ManualScheduler) Elapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// takeDue marks due tasks fired and drops settled ones. Caller holds mu.
func (s *ManualScheduler) takeDue() []*manualTask {
	var due []*manualTask
	kept := s.tasks[:0]
	for _, task := range s.tasks {
		switch {
		case task.canceled:
		case task.due <= s.now:
			task.fired = true
			due = append(due, task)
		default:
			kept = append(kept, task)
		}
	}
	s.tasks = kept

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	return due
}
