// Package sched implements the cooperative, non-preemptive dispatcher that
// drives every periodic component.
//
// Tasks are registered once at boot and scanned in registration order on
// every Dispatch. A task whose deadline elapsed runs to completion, then its
// lastRun catches up to "now": missed intervals are never replayed, so a
// stalled loop costs at most one catch-up run per task. Tasks must be short
// and non-blocking; nothing here preempts or times out a misbehaving task.
package sched

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/AngelLalu20/hydro-hero/internal/clock"
)

// TaskFunc is a scheduled task body. It must not block.
type TaskFunc func()

type task struct {
	name     string
	interval time.Duration
	lastRun  time.Time
	enabled  bool
	fn       TaskFunc
}

// PanicFunc observes a recovered task panic.
type PanicFunc func(taskName string, v any)

// Scheduler holds the static task list. Not safe for concurrent use; all
// methods run on the main context, matching the single-threaded cooperative
// model.
type Scheduler struct {
	clk     clock.Clock
	log     *logrus.Logger
	tasks   []*task
	onPanic PanicFunc
}

func New(clk clock.Clock, log *logrus.Logger) *Scheduler {
	return &Scheduler{clk: clk, log: log}
}

// OnPanic registers an observer for recovered task panics. Boot-time only.
func (s *Scheduler) OnPanic(fn PanicFunc) { s.onPanic = fn }

// Register adds a task. Boot-time only; membership is fixed afterwards.
// The first run happens once interval elapses from registration time.
func (s *Scheduler) Register(name string, interval time.Duration, fn TaskFunc) {
	s.tasks = append(s.tasks, &task{
		name:     name,
		interval: interval,
		lastRun:  s.clk.Now(),
		enabled:  true,
		fn:       fn,
	})
}

// Enable re-arms a task. Unknown names are ignored.
func (s *Scheduler) Enable(name string) { s.setEnabled(name, true) }

// Disable skips a task on future dispatches. It never interrupts a run in
// progress; that is the only cancellation the model offers.
func (s *Scheduler) Disable(name string) { s.setEnabled(name, false) }

func (s *Scheduler) setEnabled(name string, v bool) {
	for _, t := range s.tasks {
		if t.name == name {
			t.enabled = v
			return
		}
	}
}

// Dispatch runs every enabled task whose interval has elapsed, in
// registration order, and advances its lastRun to now. One pass executes
// each due task exactly once regardless of how many intervals were missed.
func (s *Scheduler) Dispatch() {
	now := s.clk.Now()
	for _, t := range s.tasks {
		if !t.enabled || now.Sub(t.lastRun) < t.interval {
			continue
		}
		s.run(t)
		t.lastRun = now
	}
}

func (s *Scheduler) run(t *task) {
	defer func() {
		if r := recover(); r != nil {
			// A panicking task must not take down metering. Log, notify,
			// and keep dispatching; the task stays registered.
			s.log.WithFields(logrus.Fields{
				"task":  t.name,
				"panic": r,
			}).Error("scheduled task panicked")
			if s.onPanic != nil {
				s.onPanic(t.name, r)
			}
		}
	}()
	t.fn()
}

// Run drives Dispatch on the given resolution until ctx is cancelled. This
// is the device main loop.
func (s *Scheduler) Run(ctx context.Context, resolution time.Duration) error {
	ticker := time.NewTicker(resolution)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Dispatch()
		}
	}
}

// Tasks reports the task names in registration order, for diagnostics.
func (s *Scheduler) Tasks() []string {
	names := make([]string, len(s.tasks))
	for i, t := range s.tasks {
		names[i] = t.name
	}
	return names
}
