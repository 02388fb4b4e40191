package cron

import (
	"context"
	"fmt"
	"time"

	pkgerrors "github.com/umkmkit/hpp-backend/pkg/errors"
	"github.com/umkmkit/hpp-backend/pkg/logger"
	"github.com/umkmkit/hpp-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
	// Now is overridable in tests.
	Now func() time.Time
}

// Service runs the registered jobs in sequence on a fixed interval. The
// lock makes a cycle exclusive across workers.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	lock     Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Lock == nil {
		return nil, fmt.Errorf("lock required")
	}
	registry := params.Registry
	if registry == nil {
		registry = &Registry{}
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		lock:     params.Lock,
		metrics:  params.Metrics,
		interval: interval,
		now:      now,
	}, nil
}

// Run starts with an immediate cycle, then ticks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	s.cycle(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "cron service stopping")
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil {
		s.logg.Error(ctx, "cron cycle failed", err)
	}
}

// CycleResult reports what one RunOnce call did.
type CycleResult struct {
	Skipped bool
	Failed  []string
}

// RunOnce runs every job once under the cycle lock. A failing or panicking
// job is recorded and the remaining jobs still run.
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	var result CycleResult
	release, ok, err := s.acquire(ctx)
	if err != nil || !ok {
		result.Skipped = true
		return result, err
	}
	defer release()

	started := s.now()
	ctx = s.logg.WithField(ctx, "jobs", s.registry.Names())
	s.logg.Info(ctx, "cron cycle starting")
	for i, job := range s.registry.Jobs() {
		if err := ctx.Err(); err != nil {
			s.logg.Warn(ctx, "cron cycle interrupted")
			return result, err
		}
		if i > 0 {
			if err := s.refresh(ctx); err != nil {
				return result, err
			}
		}
		if err := s.runJob(ctx, job); err != nil {
			result.Failed = append(result.Failed, job.Name())
		}
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"failed":      len(result.Failed),
		"duration_ms": s.now().Sub(started).Milliseconds(),
	}), "cron cycle complete")
	return result, nil
}

// RunJob runs a single named job under the cycle lock. It returns a
// StateConflict error when another worker holds the lock.
func (s *Service) RunJob(ctx context.Context, name string) error {
	job, ok := s.registry.Lookup(name)
	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("cron job %q is not registered", name)).
			WithDetails(map[string]any{"registered": s.registry.Names()})
	}
	release, ok, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "another cron worker is running")
	}
	defer release()
	return s.runJob(ctx, job)
}

func (s *Service) acquire(ctx context.Context) (func(), bool, error) {
	locked, err := s.lock.Acquire(ctx)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire cron lock")
	}
	if !locked {
		s.metrics.IncSkippedCycle()
		s.logg.Info(ctx, "cron lock held by another worker; skipping")
		return nil, false, nil
	}
	return func() {
		if err := s.lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "release cron lock", err)
		}
	}, true, nil
}

// refresh extends an expiring lease between jobs so a long cycle keeps it.
func (s *Service) refresh(ctx context.Context) error {
	lease, ok := s.lock.(refresher)
	if !ok {
		return nil
	}
	if err := lease.Refresh(ctx); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, "cron lock lost mid-cycle")
	}
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) (err error) {
	ctx = s.logg.WithField(s.logg.WithJob(ctx, job.Name()), "event", "cron.job")
	start := s.now()
	result := metrics.CronResultSuccess

	defer func() {
		if rec := recover(); rec != nil {
			result = metrics.CronResultPanic
			err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("job panicked: %v", rec))
		}
		finished := s.now()
		elapsed := finished.Sub(start)
		ctx = s.logg.WithField(ctx, "duration_ms", elapsed.Milliseconds())
		if err != nil {
			if result == metrics.CronResultSuccess {
				result = metrics.CronResultFailure
			}
			s.logg.Error(s.logg.WithField(ctx, "result", result), "cron job failed", err)
		} else {
			s.logg.Info(ctx, "cron job completed")
		}
		s.metrics.ObserveRun(job.Name(), result, elapsed, finished)
	}()

	s.logg.Debug(ctx, "cron job starting")
	return job.Run(ctx)
}
