package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	JobSessionCleanup = "session_cleanup"
	JobTokenRefresh   = "token_refresh"
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Func func(context.Context) (any, error)

// Run records the last execution of a job.
type Run struct {
	Job         string
	Status      string
	Details     any
	Error       string
	StartedAt   time.Time
	CompletedAt time.Time
}

type Service struct {
	Logger *slog.Logger

	queue     chan job
	mu        sync.Mutex
	schedules []schedule
	runs      map[string]Run
}

type job struct {
	Type string
	Run  Func
}

type schedule struct {
	job      job
	interval time.Duration
}

func New(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Logger: logger,
		queue:  make(chan job, 128),
		runs:   map[string]Run{},
	}
}

// Every registers a job enqueued once per interval after Start. Non-positive
// intervals disable the job.
func (s *Service) Every(jobType string, interval time.Duration, run Func) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules = append(s.schedules, schedule{job: job{Type: jobType, Run: run}, interval: interval})
}

// Start runs the worker and the schedulers until ctx ends.
func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	s.mu.Lock()
	schedules := append([]schedule(nil), s.schedules...)
	s.mu.Unlock()
	for _, sc := range schedules {
		go s.scheduleEvery(ctx, sc)
	}
}

func (s *Service) Enqueue(jobType string, run Func) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		s.Logger.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run Func) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// LastRun reports the most recent run of jobType.
func (s *Service) LastRun(jobType string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.runs[jobType]
	return r, ok
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				s.Logger.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	run := Run{Job: j.Type, StartedAt: time.Now()}
	details, err := j.Run(ctx)
	run.CompletedAt = time.Now()
	run.Details = details
	run.Status = StatusCompleted
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	s.mu.Lock()
	s.runs[j.Type] = run
	s.mu.Unlock()
	s.Logger.Debug("job run", "jobType", j.Type, "status", run.Status, "details", details,
		"duration", run.CompletedAt.Sub(run.StartedAt))
	return details, err
}

func (s *Service) scheduleEvery(ctx context.Context, sc schedule) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(sc.job.Type, sc.job.Run)
		}
	}
}
