package reconcile

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/laundrylink/laundrylink-backend/pkg/logger"
	"github.com/laundrylink/laundrylink-backend/pkg/metrics"
)

// LockFactory builds a per-job lock keyed by the job name.
type LockFactory func(job string) (Lock, error)

// ServiceParams configure the reconcile worker.
type ServiceParams struct {
	Logger  *logger.Logger
	Jobs    []Job
	Locks   LockFactory
	Metrics *metrics.JobMetrics
}

// Service runs each reconciliation job on its own cadence, holding a Redis
// lock per cycle so overlapping worker replicas do not double-sweep.
type Service struct {
	logg    *logger.Logger
	jobs    []Job
	locks   map[string]Lock
	metrics *metrics.JobMetrics
}

// NewService builds a reconcile service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if len(params.Jobs) == 0 {
		return nil, fmt.Errorf("at least one job required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	locks := make(map[string]Lock, len(params.Jobs))
	for _, job := range params.Jobs {
		lock, err := params.Locks(job.Name())
		if err != nil {
			return nil, fmt.Errorf("build lock for %s: %w", job.Name(), err)
		}
		locks[job.Name()] = lock
	}
	return &Service{
		logg:    params.Logger,
		jobs:    params.Jobs,
		locks:   locks,
		metrics: params.Metrics,
	}, nil
}

// Run starts every job loop and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var wg sync.WaitGroup
	for _, job := range s.jobs {
		wg.Add(1)
		go func(job Job) {
			defer wg.Done()
			s.runLoop(ctx, job)
		}(job)
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Service) runLoop(ctx context.Context, job Job) {
	s.runCycle(ctx, job)
	ticker := time.NewTicker(job.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCycle(ctx, job)
		}
	}
}

func (s *Service) runCycle(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	lock := s.locks[job.Name()]
	locked, err := lock.Acquire(jobCtx)
	if err != nil {
		s.logg.Error(jobCtx, "failed to acquire sweep lock", err)
		return
	}
	if !locked {
		s.logg.Info(jobCtx, "another instance holds the sweep lock; skipping")
		return
	}
	defer func() {
		if relErr := lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release sweep lock", relErr)
		}
	}()

	start := time.Now()
	runErr := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if runErr != nil {
		s.logg.Error(jobCtx, "sweep failed", runErr)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "sweep completed")
	s.metrics.IncSuccess(job.Name())
}
