package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Ticker is one unit of per-minute work.
type Ticker interface {
	Tick(ctx context.Context) error
}

// Cleaner removes data older than the retention horizon.
type Cleaner interface {
	Cleanup(ctx context.Context, retention time.Duration) (int64, error)
}

// Status is a snapshot of the scheduler's recent activity.
type Status struct {
	Running          bool             `json:"running"`
	Ticks            int64            `json:"ticks"`
	LastTickAt       time.Time        `json:"last_tick_at"`
	LastTickDuration time.Duration    `json:"last_tick_duration_ns"`
	LastCleanupAt    time.Time        `json:"last_cleanup_at,omitempty"`
	JobErrors        map[string]int64 `json:"job_errors"`
}

type Scheduler struct {
	cronEngine  *cron.Cron
	jobs        []namedTicker
	cleaner     Cleaner
	logger      *logrus.Entry
	tickSpec    string
	cleanupSpec string
	tickTimeout time.Duration
	retention   time.Duration
	now         func() time.Time

	mu     sync.Mutex
	status Status
}

type namedTicker struct {
	name string
	t    Ticker
}

type Options struct {
	TickSpec    string
	CleanupSpec string
	TickTimeout time.Duration
	Retention   time.Duration
}

// New wires the collection engine and the daily cycle into one minute tick.
// Collection runs first so a call-out is never delayed by the daily jobs.
func New(collection, daily Ticker, cleaner Cleaner, logger *logrus.Entry, opts Options) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cronEngine: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		jobs: []namedTicker{
			{name: "collection", t: collection},
			{name: "daily_cycle", t: daily},
		},
		cleaner:     cleaner,
		logger:      logger.WithField("component", "scheduler"),
		tickSpec:    opts.TickSpec,
		cleanupSpec: opts.CleanupSpec,
		tickTimeout: opts.TickTimeout,
		retention:   opts.Retention,
		now:         time.Now,
		status:      Status{JobErrors: map[string]int64{}},
	}
}

func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	if _, err := s.cronEngine.AddFunc(s.tickSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.tickTimeout)
		defer cancel()
		if err := s.RunTick(ctx); err != nil {
			s.logger.WithError(err).Error("Tick finished with errors")
		}
	}); err != nil {
		return fmt.Errorf("could not add tick job %q: %w", s.tickSpec, err)
	}

	if _, err := s.cronEngine.AddFunc(s.cleanupSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.RunCleanup(ctx); err != nil {
			s.logger.WithError(err).Error("Cleanup failed")
		}
	}); err != nil {
		return fmt.Errorf("could not add cleanup job %q: %w", s.cleanupSpec, err)
	}

	s.cronEngine.Start()
	s.mu.Lock()
	s.status.Running = true
	s.mu.Unlock()
	s.logger.WithFields(logrus.Fields{"tick": s.tickSpec, "cleanup": s.cleanupSpec}).Info("Scheduler started")
	return nil
}

// RunTick runs every job once. A failing job does not stop the next one.
func (s *Scheduler) RunTick(ctx context.Context) error {
	started := s.now()
	var firstErr error
	failed := map[string]bool{}
	for _, job := range s.jobs {
		if err := job.t.Tick(ctx); err != nil {
			s.logger.WithError(err).WithField("job", job.name).Warn("Job reported errors")
			failed[job.name] = true
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", job.name, err)
			}
		}
	}

	s.mu.Lock()
	s.status.Ticks++
	s.status.LastTickAt = started
	s.status.LastTickDuration = s.now().Sub(started)
	for name := range failed {
		s.status.JobErrors[name]++
	}
	s.mu.Unlock()
	return firstErr
}

func (s *Scheduler) RunCleanup(ctx context.Context) error {
	n, err := s.cleaner.Cleanup(ctx, s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.status.JobErrors["cleanup"]++
		return err
	}
	s.status.LastCleanupAt = s.now()
	s.logger.WithField("deleted_rows", n).Info("Cleanup finished")
	return nil
}

// Status returns a copy of the current counters.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.status
	st.JobErrors = make(map[string]int64, len(s.status.JobErrors))
	for k, v := range s.status.JobErrors {
		st.JobErrors[k] = v
	}
	return st
}

func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	ctx := s.cronEngine.Stop() // waits for running jobs
	<-ctx.Done()
	s.mu.Lock()
	s.status.Running = false
	s.mu.Unlock()
	s.logger.Info("Scheduler gracefully stopped")
}
