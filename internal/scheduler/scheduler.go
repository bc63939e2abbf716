// Package scheduler runs named jobs on daily, one-shot and interval
// triggers. It is a small in-process replacement for a cron daemon: one loop
// goroutine sleeps until the earliest due job, runs every job that is due
// and then recomputes.
//
// A job that returns an error or panics is logged and rescheduled as usual;
// it never stops the loop. One-shot jobs are dropped after they run.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// idleWait is how long the loop sleeps when nothing is scheduled.
const idleWait = time.Minute

var (
	// ErrDuplicateJob is returned by Register for an id already in use.
	ErrDuplicateJob = errors.New("job already registered")
	// ErrUnknownJob is returned by RunNow for an id that is not registered.
	ErrUnknownJob = errors.New("unknown job")
	// ErrInvalidJob is returned by Register for a job without id or func.
	ErrInvalidJob = errors.New("job needs an id and a run func")
)

// Job is a unit of scheduled work.
type Job struct {
	ID  string
	Run func(ctx context.Context) error
}

// JobStatus is a snapshot of one registered job.
type JobStatus struct {
	ID        string     `json:"id"`
	Trigger   string     `json:"trigger"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
	Runs      int        `json:"runs"`
}

type entry struct {
	job     Job
	trigger Trigger
	next    time.Time
	lastRun time.Time
	lastErr string
	runs    int
	running bool
}

// Scheduler holds registered jobs and the run loop.
type Scheduler struct {
	Clock  Clock
	Logger zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	order   []string
	wake    chan struct{}
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns an idle scheduler on the real clock.
func New() *Scheduler {
	return &Scheduler{
		Clock:   RealClock{},
		Logger:  log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]*entry),
		wake:    make(chan struct{}, 1),
	}
}

func (s *Scheduler) clock() Clock {
	if s.Clock == nil {
		return RealClock{}
	}
	return s.Clock
}

// Register adds job under trigger. The first activation is computed from the
// clock's current time.
func (s *Scheduler) Register(job Job, trigger Trigger) error {
	if job.ID == "" || job.Run == nil || trigger == nil {
		return ErrInvalidJob
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries == nil {
		s.entries = make(map[string]*entry)
	}
	if _, ok := s.entries[job.ID]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, job.ID)
	}
	e := &entry{job: job, trigger: trigger}
	if next, ok := trigger.Next(s.clock().Now()); ok {
		e.next = next
	}
	s.entries[job.ID] = e
	s.order = append(s.order, job.ID)
	s.signal()
	return nil
}

// NextRun reports the next activation of id.
func (s *Scheduler) NextRun(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || e.next.IsZero() {
		return time.Time{}, false
	}
	return e.next, true
}

// Jobs returns a snapshot of every registered job in registration order.
func (s *Scheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.order))
	for _, id := range s.order {
		e := s.entries[id]
		st := JobStatus{ID: id, Trigger: e.trigger.String(), LastError: e.lastErr, Runs: e.runs}
		if !e.next.IsZero() {
			t := e.next
			st.NextRun = &t
		}
		if !e.lastRun.IsZero() {
			t := e.lastRun
			st.LastRun = &t
		}
		out = append(out, st)
	}
	return out
}

// Start launches the run loop. It returns immediately; call Stop to end it.
// Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	if s.wake == nil {
		s.wake = make(chan struct{}, 1)
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.mu.Unlock()

	s.Logger.Info().Int("jobs", len(s.Jobs())).Msg("scheduler started")
	go s.loop(ctx)
}

// Running reports whether the loop has been started and not yet stopped.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop cancels the loop and waits for the job currently running, if any.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.Logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)
	for {
		wait := s.untilNext()
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		case <-s.clock().After(wait):
			s.Tick(ctx, s.clock().Now())
		}
	}
}

func (s *Scheduler) untilNext() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var earliest time.Time
	for _, e := range s.entries {
		if e.next.IsZero() {
			continue
		}
		if earliest.IsZero() || e.next.Before(earliest) {
			earliest = e.next
		}
	}
	if earliest.IsZero() {
		return idleWait
	}
	d := earliest.Sub(s.clock().Now())
	if d < 0 {
		d = 0
	}
	return d
}

func (s *Scheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Tick runs every job whose activation is at or before now, in registration
// order, and reschedules them. It blocks until those jobs return.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	due := make([]*entry, 0)
	for _, id := range s.order {
		e := s.entries[id]
		if e.running || e.next.IsZero() || e.next.After(now) {
			continue
		}
		e.running = true
		due = append(due, e)
	}
	s.mu.Unlock()

	for _, e := range due {
		err := s.runJob(ctx, e.job)
		s.finish(e, now, err)
	}
}

// RunNow runs the job registered as id immediately, outside its schedule,
// and returns its error. The regular schedule is not changed.
func (s *Scheduler) RunNow(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.entries[id]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	err := s.runJob(ctx, e.job)
	s.mu.Lock()
	e.lastRun = s.clock().Now()
	e.runs++
	e.lastErr = errString(err)
	s.mu.Unlock()
	return err
}

func (s *Scheduler) finish(e *entry, ranAt time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.running = false
	e.lastRun = ranAt
	e.runs++
	e.lastErr = errString(err)

	if isOneShot(e.trigger) {
		delete(s.entries, e.job.ID)
		s.removeOrder(e.job.ID)
		return
	}
	next, ok := e.trigger.Next(ranAt)
	if !ok {
		next = time.Time{}
	}
	e.next = next
}

func (s *Scheduler) removeOrder(id string) {
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, job Job) (err error) {
	lg := s.Logger.With().Str("job", job.ID).Logger()
	start := s.clock().Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", job.ID, p)
		}
		if err != nil {
			lg.Error().Err(err).Msg("scheduled job failed")
			return
		}
		lg.Info().Dur("elapsed", s.clock().Now().Sub(start)).Msg("scheduled job completed")
	}()
	lg.Info().Msg("scheduled job started")
	return job.Run(ctx)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
