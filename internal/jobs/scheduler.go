// Package jobs runs the background jobs of the API on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is a unit of background work. Run receives a context bounded by the
// scheduler's per-run timeout.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// RunStatus describes the most recent run of a job
type RunStatus struct {
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Scheduler runs registered jobs on their cron expressions. Expressions use the
// six-field format with seconds, or descriptors such as "@daily".
type Scheduler struct {
	cron    *cron.Cron
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	lastRun map[string]RunStatus
}

func NewScheduler(timeout time.Duration, logger *zap.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithChain(
			cron.SkipIfStillRunning(cronLogger),
			cron.Recover(cronLogger),
		)),
		timeout: timeout,
		logger:  logger,
		entries: make(map[string]cron.EntryID),
		lastRun: make(map[string]RunStatus),
	}
}

func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler", zap.Strings("jobs", s.Names()))
	s.cron.Start()
}

// Stop stops the scheduler. The returned context is done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// Register schedules job under its name. A name can be registered once.
func (s *Scheduler) Register(job Job, cronExpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := job.Name()
	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	entryID, err := s.cron.AddFunc(cronExpr, func() {
		_ = s.RunNow(context.Background(), job)
	})
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}

	s.entries[name] = entryID
	s.logger.Info("added scheduled job",
		zap.String("job_name", name),
		zap.String("cron_expr", cronExpr))
	return nil
}

// RunNow runs job immediately within the per-run timeout and records its status
func (s *Scheduler) RunNow(ctx context.Context, job Job) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	name := job.Name()
	status := RunStatus{StartedAt: time.Now()}
	s.logger.Debug("running scheduled job", zap.String("job_name", name))

	status.Err = job.Run(ctx)
	status.Duration = time.Since(status.StartedAt)

	if status.Err != nil {
		s.logger.Error("scheduled job failed",
			zap.String("job_name", name),
			zap.Duration("duration", status.Duration),
			zap.Error(status.Err))
	}

	s.mu.Lock()
	s.lastRun[name] = status
	s.mu.Unlock()
	return status.Err
}

func (s *Scheduler) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, exists := s.entries[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}

	s.cron.Remove(entryID)
	delete(s.entries, name)
	return nil
}

// Names returns the registered job names in sorted order
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LastRun reports the most recent run of the named job, if any
func (s *Scheduler) LastRun(name string) (RunStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	status, ok := s.lastRun[name]
	return status, ok
}
