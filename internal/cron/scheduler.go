// Package cron runs named background jobs on interval or daily schedules.
//
// Jobs are registered under a unique name and driven by their own goroutine.
// A job's action may return an error or panic; either is reported and the
// job keeps its schedule.  Scheduler misuse (starting an unknown job,
// re-adding a name) is logged rather than returned, so callers can wire
// jobs up without error plumbing.
package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// Action is the unit of work a job runs on each firing.
type Action func(ctx context.Context) error

// JobOptions tune a job at registration.  A nil options pointer means the
// defaults: start immediately, no initial run, unlimited runs.
type JobOptions struct {
	// AutoStart launches the job as soon as it is added.
	AutoStart bool

	// RunOnInit fires the action once immediately when the job starts,
	// before the first scheduled firing.  The run counts toward MaxRuns.
	RunOnInit bool

	// MaxRuns stops the job after this many successful runs.  Zero means
	// unlimited.  The limit is checked against completed runs at firing
	// time, so an interval action slower than its period can be dispatched
	// a few extra times before the counter catches up; the ceiling is
	// exact whenever runs finish within the period.
	MaxRuns int

	// OnError receives action failures.  When nil, failures go to the
	// scheduler's logger.
	OnError func(name string, err error)
}

func defaultOptions() JobOptions {
	return JobOptions{AutoStart: true}
}

// JobInfo is a point-in-time snapshot of a job's schedule and progress.
type JobInfo struct {
	Name    string
	Running bool

	// Period is the firing interval.  For daily jobs it is 24h.
	Period time.Duration

	// Daily marks a fixed time-of-day schedule; Hour and Minute give the
	// local firing time.
	Daily  bool
	Hour   int
	Minute int

	RunCount  int
	MaxRuns   int
	LastRunAt time.Time
	NextRunAt time.Time
}

type job struct {
	name   string
	action Action
	opts   JobOptions

	period time.Duration
	daily  bool
	hour   int
	minute int

	running   bool
	runCount  int
	lastRunAt time.Time
	nextRunAt time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// Scheduler owns a set of named jobs.
type Scheduler struct {
	mu     sync.Mutex
	jobs   map[string]*job
	logger *log.Logger
	now    func() time.Time
}

func NewScheduler(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		jobs:   make(map[string]*job),
		logger: logger,
		now:    time.Now,
	}
}

// ── Registration ─────────────────────────────────────────────────────────────

// AddIntervalJob registers a job that fires every period.  Re-adding a name
// replaces the existing job (stopping it first) with a warning.
func (s *Scheduler) AddIntervalJob(name string, period time.Duration, action Action, opts *JobOptions) {
	if period <= 0 {
		s.logger.Printf("scheduler: job %q rejected: period must be positive, got %v", name, period)
		return
	}
	s.add(&job{name: name, action: action, opts: resolveOptions(opts), period: period})
}

// AddSecondsJob registers an interval job with a period of n seconds.
func (s *Scheduler) AddSecondsJob(name string, n int, action Action, opts *JobOptions) {
	s.AddIntervalJob(name, time.Duration(n)*time.Second, action, opts)
}

// AddMinutesJob registers an interval job with a period of n minutes.
func (s *Scheduler) AddMinutesJob(name string, n int, action Action, opts *JobOptions) {
	s.AddIntervalJob(name, time.Duration(n)*time.Minute, action, opts)
}

// AddHoursJob registers an interval job with a period of n hours.
func (s *Scheduler) AddHoursJob(name string, n int, action Action, opts *JobOptions) {
	s.AddIntervalJob(name, time.Duration(n)*time.Hour, action, opts)
}

// AddDailyJob registers a job that fires once a day at hour:minute local
// time.  If that time has already passed today, the first firing is
// tomorrow.
func (s *Scheduler) AddDailyJob(name string, hour, minute int, action Action, opts *JobOptions) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		s.logger.Printf("scheduler: job %q rejected: invalid time of day %02d:%02d", name, hour, minute)
		return
	}
	s.add(&job{
		name:   name,
		action: action,
		opts:   resolveOptions(opts),
		period: 24 * time.Hour,
		daily:  true,
		hour:   hour,
		minute: minute,
	})
}

func resolveOptions(opts *JobOptions) JobOptions {
	if opts == nil {
		return defaultOptions()
	}
	return *opts
}

func (s *Scheduler) add(j *job) {
	s.mu.Lock()
	if old, ok := s.jobs[j.name]; ok {
		s.logger.Printf("scheduler: job %q already registered, replacing", j.name)
		s.stopLocked(old)
	}
	s.jobs[j.name] = j
	autoStart := j.opts.AutoStart
	s.mu.Unlock()

	if autoStart {
		s.StartJob(j.name)
	}
}

// ── Lifecycle ────────────────────────────────────────────────────────────────

// StartJob launches the named job.  Starting an unknown or already-running
// job is logged and ignored.
func (s *Scheduler) StartJob(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[name]
	if !ok {
		s.logger.Printf("scheduler: cannot start unknown job %q", name)
		return
	}
	if j.running {
		s.logger.Printf("scheduler: job %q already running", name)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	j.running = true
	j.cancel = cancel
	j.done = make(chan struct{})
	if j.daily {
		j.nextRunAt = nextDailyRun(s.now(), j.hour, j.minute)
	} else {
		j.nextRunAt = s.now().Add(j.period)
	}

	if j.daily {
		go s.runDaily(ctx, j)
	} else {
		go s.runInterval(ctx, j)
	}
}

// StopJob halts the named job and waits for its runner to exit.  An
// in-flight invocation is neither cancelled nor awaited; it runs to
// completion on its own goroutine.  Stopping an unknown or already-stopped
// job is logged and ignored.
func (s *Scheduler) StopJob(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		s.logger.Printf("scheduler: cannot stop unknown job %q", name)
		return
	}
	if !j.running {
		s.mu.Unlock()
		s.logger.Printf("scheduler: job %q is not running", name)
		return
	}
	done := j.done
	s.stopLocked(j)
	s.mu.Unlock()

	<-done
}

// stopLocked cancels the runner without waiting.  Caller holds s.mu.
func (s *Scheduler) stopLocked(j *job) {
	if !j.running {
		return
	}
	j.cancel()
	j.running = false
	j.cancel = nil
	j.nextRunAt = time.Time{}
}

// RemoveJob stops and unregisters the named job.
func (s *Scheduler) RemoveJob(name string) {
	s.mu.Lock()
	j, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		s.logger.Printf("scheduler: cannot remove unknown job %q", name)
		return
	}
	s.stopLocked(j)
	delete(s.jobs, name)
	s.mu.Unlock()
}

// StopAll halts every running job.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	var dones []chan struct{}
	for _, j := range s.jobs {
		if j.running {
			dones = append(dones, j.done)
			s.stopLocked(j)
		}
	}
	s.mu.Unlock()

	for _, done := range dones {
		<-done
	}
}

// RemoveAll stops and unregisters every job.
func (s *Scheduler) RemoveAll() {
	s.StopAll()
	s.mu.Lock()
	s.jobs = make(map[string]*job)
	s.mu.Unlock()
}

// ── Introspection ────────────────────────────────────────────────────────────

// GetJob returns a snapshot of the named job.
func (s *Scheduler) GetJob(name string) (JobInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return JobInfo{}, false
	}
	return s.infoLocked(j), true
}

// Jobs returns snapshots of all registered jobs.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	infos := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		infos = append(infos, s.infoLocked(j))
	}
	return infos
}

// RunningCount reports how many jobs are currently running.
func (s *Scheduler) RunningCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.running {
			n++
		}
	}
	return n
}

// NextRunTime reports when the named job will next fire.  The zero time
// means the job is unknown or stopped.
func (s *Scheduler) NextRunTime(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return time.Time{}
	}
	return j.nextRunAt
}

func (s *Scheduler) infoLocked(j *job) JobInfo {
	return JobInfo{
		Name:      j.name,
		Running:   j.running,
		Period:    j.period,
		Daily:     j.daily,
		Hour:      j.hour,
		Minute:    j.minute,
		RunCount:  j.runCount,
		MaxRuns:   j.opts.MaxRuns,
		LastRunAt: j.lastRunAt,
		NextRunAt: j.nextRunAt,
	}
}

// ── Runners ──────────────────────────────────────────────────────────────────

// runInterval fires on a ticker.  Each firing dispatches the action on its
// own goroutine so a slow run cannot delay the schedule; runs may overlap.
func (s *Scheduler) runInterval(ctx context.Context, j *job) {
	defer close(j.done)

	// Invocations get a non-cancelable context: stopping the job halts
	// future firings, it does not interrupt work already dispatched.
	runCtx := context.WithoutCancel(ctx)

	if j.opts.RunOnInit {
		if s.limitReached(j) {
			return
		}
		go s.execute(runCtx, j)
	}

	ticker := time.NewTicker(j.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.limitReached(j) {
				return
			}
			s.mu.Lock()
			j.nextRunAt = s.now().Add(j.period)
			s.mu.Unlock()
			go s.execute(runCtx, j)
		}
	}
}

// runDaily chains single-shot timers.  Each firing runs the action to
// completion before the next firing is scheduled, so daily runs never
// overlap.
func (s *Scheduler) runDaily(ctx context.Context, j *job) {
	defer close(j.done)

	runCtx := context.WithoutCancel(ctx)

	if j.opts.RunOnInit {
		if s.limitReached(j) {
			return
		}
		if !s.runChained(ctx, runCtx, j) {
			return
		}
	}

	for {
		s.mu.Lock()
		now := s.now()
		next := nextDailyRun(now, j.hour, j.minute)
		j.nextRunAt = next
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if s.limitReached(j) {
				return
			}
			if !s.runChained(ctx, runCtx, j) {
				return
			}
		}
	}
}

// runChained runs one daily invocation and waits for it before the next
// firing is armed.  If the job is stopped meanwhile, the invocation keeps
// running but the runner exits; reports whether to continue the chain.
func (s *Scheduler) runChained(ctx, runCtx context.Context, j *job) bool {
	finished := make(chan struct{})
	go func() {
		s.execute(runCtx, j)
		close(finished)
	}()

	select {
	case <-ctx.Done():
		return false
	case <-finished:
		return true
	}
}

// limitReached checks MaxRuns at firing time and, when the limit is hit,
// stops the job without invoking the action.
func (s *Scheduler) limitReached(j *job) bool {
	if j.opts.MaxRuns <= 0 {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if j.runCount < j.opts.MaxRuns {
		return false
	}
	if j.running {
		j.cancel()
		j.running = false
		j.cancel = nil
		j.nextRunAt = time.Time{}
	}
	s.logger.Printf("scheduler: job %q reached run limit (%d), stopping", j.name, j.opts.MaxRuns)
	return true
}

// execute runs the action once with panic recovery.  Only a clean return
// counts as a run; failures are reported and leave the counters untouched.
func (s *Scheduler) execute(ctx context.Context, j *job) {
	err := s.invoke(ctx, j)
	if err != nil {
		if j.opts.OnError != nil {
			j.opts.OnError(j.name, err)
		} else {
			s.logger.Printf("scheduler: job %q failed: %v", j.name, err)
		}
		return
	}

	s.mu.Lock()
	j.runCount++
	j.lastRunAt = s.now()
	s.mu.Unlock()
}

func (s *Scheduler) invoke(ctx context.Context, j *job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return j.action(ctx)
}

// nextDailyRun returns the next occurrence of hour:minute strictly after
// now, in now's location.
func nextDailyRun(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
