// Package scheduler runs periodic background jobs of recordsd.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/campus-records/records-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// JOB INTERFACE
// ══════════════════════════════════════════════════════════════════════════════

// Job defines the interface that all scheduled jobs must implement.
type Job interface {
	// Name returns the unique name of the job.
	Name() string

	// Run executes the job. The context is cancelled when the scheduler stops.
	Run(ctx context.Context) error
}

// Schedule defines when a job should run.
type Schedule interface {
	// Next returns the next time the job should run after the given time.
	Next(t time.Time) time.Time

	String() string
}

// JobResult contains the result of a job execution.
type JobResult struct {
	JobName     string
	StartedAt   time.Time
	CompletedAt time.Time
	Duration    time.Duration
	Error       error
}

// Success reports whether the run ended without error.
func (r JobResult) Success() bool { return r.Error == nil }

var (
	ErrNilJob                  = errors.New("scheduler: job is nil")
	ErrNilSchedule             = errors.New("scheduler: schedule is nil")
	ErrJobAlreadyExists        = errors.New("scheduler: job already registered")
	ErrJobNotFound             = errors.New("scheduler: job not found")
	ErrJobRunning              = errors.New("scheduler: job is already running")
	ErrSchedulerAlreadyRunning = errors.New("scheduler: already running")
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULER
// ══════════════════════════════════════════════════════════════════════════════

// Config contains configuration for the Scheduler.
type Config struct {
	Logger *slog.Logger

	// TickInterval is how often due jobs are checked.
	TickInterval time.Duration

	// JobTimeout bounds a single run. Zero means no limit.
	JobTimeout time.Duration

	// RunOnStart runs every job once when the scheduler starts.
	RunOnStart bool
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickInterval: time.Second,
		JobTimeout:   5 * time.Minute,
		RunOnStart:   true,
	}
}

type scheduledJob struct {
	job      Job
	schedule Schedule
	running  bool
	nextRun  time.Time
	lastRun  *JobResult
	runCount int64
	fails    int64
}

// Scheduler runs registered jobs on their schedules. A job never overlaps
// with itself.
type Scheduler struct {
	mu     sync.Mutex
	config Config
	logger *slog.Logger
	jobs   map[string]*scheduledJob

	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a new Scheduler.
func New(config Config) *Scheduler {
	if config.Logger == nil {
		config.Logger = logger.Discard()
	}
	if config.TickInterval <= 0 {
		config.TickInterval = time.Second
	}
	return &Scheduler{
		config: config,
		logger: config.Logger.With(logger.Component("scheduler")),
		jobs:   make(map[string]*scheduledJob),
	}
}

// Register adds a job with the given schedule.
func (s *Scheduler) Register(job Job, schedule Schedule) error {
	if job == nil {
		return ErrNilJob
	}
	if schedule == nil {
		return ErrNilSchedule
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobAlreadyExists, name)
	}
	s.jobs[name] = &scheduledJob{
		job:      job,
		schedule: schedule,
		nextRun:  schedule.Next(time.Now()),
	}

	s.logger.Info("job registered",
		slog.String("job", name),
		slog.String("schedule", schedule.String()),
	)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIFECYCLE
// ══════════════════════════════════════════════════════════════════════════════

// Start begins the scheduler loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrSchedulerAlreadyRunning
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true

	if s.config.RunOnStart {
		now := time.Now()
		for _, sj := range s.jobs {
			sj.nextRun = now
		}
	}

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("scheduler started", slog.Int("jobs", len(s.jobs)))
	return nil
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	s.runDue(ctx, time.Now())
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.runDue(ctx, now)
		}
	}
}

// runDue starts every job whose next run is not after now.
func (s *Scheduler) runDue(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sj := range s.jobs {
		if sj.running || now.Before(sj.nextRun) {
			continue
		}
		sj.running = true
		sj.nextRun = sj.schedule.Next(now)

		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.execute(ctx, sj)
		}(sj)
	}
}

// execute runs one job and records its result.
func (s *Scheduler) execute(ctx context.Context, sj *scheduledJob) JobResult {
	name := sj.job.Name()
	if s.config.JobTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		defer cancel()
	}

	result := JobResult{JobName: name, StartedAt: time.Now()}
	result.Error = s.safeRun(ctx, sj.job)
	result.CompletedAt = time.Now()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	s.mu.Lock()
	sj.running = false
	sj.runCount++
	if result.Error != nil {
		sj.fails++
	}
	sj.lastRun = &result
	s.mu.Unlock()

	if result.Error != nil {
		s.logger.Error("job failed",
			slog.String("job", name),
			logger.Latency(result.Duration),
			logger.Err(result.Error),
		)
	} else {
		s.logger.Info("job completed",
			slog.String("job", name),
			logger.Latency(result.Duration),
		)
	}
	return result
}

func (s *Scheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return job.Run(ctx)
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL EXECUTION & STATUS
// ══════════════════════════════════════════════════════════════════════════════

// RunNow executes a job immediately and waits for it, ignoring its schedule.
func (s *Scheduler) RunNow(ctx context.Context, name string) (JobResult, error) {
	s.mu.Lock()
	sj, ok := s.jobs[name]
	if !ok {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	if sj.running {
		s.mu.Unlock()
		return JobResult{}, fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	sj.running = true
	s.mu.Unlock()

	return s.execute(ctx, sj), nil
}

// JobInfo describes a registered job.
type JobInfo struct {
	Name      string
	Schedule  string
	NextRun   time.Time
	Running   bool
	RunCount  int64
	FailCount int64
	LastRun   *JobResult
}

// Jobs returns every registered job ordered by name.
func (s *Scheduler) Jobs() []JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobInfo, 0, len(s.jobs))
	for name, sj := range s.jobs {
		info := JobInfo{
			Name:      name,
			Schedule:  sj.schedule.String(),
			NextRun:   sj.nextRun,
			Running:   sj.running,
			RunCount:  sj.runCount,
			FailCount: sj.fails,
		}
		if sj.lastRun != nil {
			last := *sj.lastRun
			info.LastRun = &last
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
