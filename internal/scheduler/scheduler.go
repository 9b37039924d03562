// Package scheduler runs background maintenance jobs on cron schedules.
package scheduler

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrUnknownJob is returned by Trigger for names that were never registered
var ErrUnknownJob = errors.New("unknown job")

// ErrJobRunning is returned by Trigger while the job is already executing
var ErrJobRunning = errors.New("job already running")

// Job is a unit of background work. Run must be safe to call from any goroutine.
type Job interface {
	Run() error
	Name() string
}

// JobInfo is a snapshot of a registered job
type JobInfo struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Next         time.Time     `json:"next"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	Running      bool          `json:"running"`
}

type entry struct {
	id       cron.EntryID
	job      Job
	schedule string

	running      bool
	lastRun      time.Time
	lastDuration time.Duration
	lastErr      error
	runs         int
	failures     int
}

// Scheduler owns the cron loop and the bookkeeping for every job it runs.
// A job never overlaps with itself: a tick that fires while the previous
// run is still going is dropped.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(cron.WithSeconds()),
		log:     log.With().Str("component", "scheduler").Logger(),
		entries: make(map[string]*entry),
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().Int("jobs", len(s.Jobs())).Msg("Scheduler started")
}

// Stop waits for in-flight jobs before returning
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info().Msg("Scheduler stopped")
}

// AddJob registers job under its name. Schedules take the six-field cron
// form ("0 */5 * * * *") or descriptors such as "@hourly" and "@every 30s".
func (s *Scheduler) AddJob(schedule string, job Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, dup := s.entries[job.Name()]; dup {
		return fmt.Errorf("job %s already registered", job.Name())
	}

	e := &entry{job: job, schedule: schedule}
	id, err := s.cron.AddFunc(schedule, func() {
		if !s.begin(e) {
			s.log.Warn().Str("job", e.job.Name()).Msg("Previous run still in progress, skipping tick")
			return
		}
		s.execute(e)
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q for job %s: %w", schedule, job.Name(), err)
	}
	e.id = id
	s.entries[job.Name()] = e

	s.log.Info().Str("job", job.Name()).Str("schedule", schedule).Msg("Job registered")
	return nil
}

// Trigger runs the named job synchronously, outside its schedule
func (s *Scheduler) Trigger(name string) error {
	s.mu.Lock()
	e, ok := s.entries[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !s.begin(e) {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}

	s.log.Info().Str("job", name).Msg("Running job on demand")
	return s.execute(e)
}

// Jobs lists the registered jobs ordered by name
func (s *Scheduler) Jobs() []JobInfo {
	next := make(map[cron.EntryID]time.Time)
	for _, ce := range s.cron.Entries() {
		next[ce.ID] = ce.Next
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.entries))
	for name, e := range s.entries {
		info := JobInfo{
			Name:         name,
			Schedule:     e.schedule,
			Next:         next[e.id],
			LastRun:      e.lastRun,
			LastDuration: e.lastDuration,
			Runs:         e.runs,
			Failures:     e.failures,
			Running:      e.running,
		}
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Scheduler) begin(e *entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e.running {
		return false
	}
	e.running = true
	return true
}

// execute runs a job claimed by begin. A panicking job is recorded as failed
// and does not take the cron goroutine down with it.
func (s *Scheduler) execute(e *entry) (err error) {
	name := e.job.Name()
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s panicked: %v", name, p)
		}
		elapsed := time.Since(start)

		s.mu.Lock()
		e.running = false
		e.lastRun = start
		e.lastDuration = elapsed
		e.lastErr = err
		e.runs++
		if err != nil {
			e.failures++
		}
		s.mu.Unlock()

		if err != nil {
			s.log.Error().Err(err).Str("job", name).Dur("duration", elapsed).Msg("Job failed")
			return
		}
		s.log.Debug().Str("job", name).Dur("duration", elapsed).Msg("Job completed")
	}()

	return e.job.Run()
}
