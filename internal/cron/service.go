// Package cron runs housekeeping jobs on a schedule, one replica at a time.
package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	robfig "github.com/robfig/cron/v3"

	"github.com/angelmondragon/fanjava-backend/pkg/logger"
	"github.com/angelmondragon/fanjava-backend/pkg/metrics"
)

const defaultSchedule = "@every 1h"

var scheduleParser = robfig.NewParser(
	robfig.SecondOptional | robfig.Minute | robfig.Hour | robfig.Dom | robfig.Month | robfig.Dow | robfig.Descriptor,
)

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Lock     Lock
	Metrics  *metrics.CronJobMetrics
	// Schedule is a cron expression or descriptor such as "@every 1h".
	Schedule string
	// JobTimeout caps a single job; zero means jobs only stop with the service.
	JobTimeout time.Duration
}

// Service runs every registered job once per tick while holding Lock.
type Service struct {
	logg       *logger.Logger
	registry   *Registry
	lock       Lock
	metrics    *metrics.CronJobMetrics
	schedule   robfig.Schedule
	expr       string
	jobTimeout time.Duration
}

// cycle summarizes one pass over the registry.
type cycle struct {
	skipped bool
	failed  []string
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.Lock == nil:
		return nil, errors.New("lock required")
	}
	expr := params.Schedule
	if expr == "" {
		expr = defaultSchedule
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	return &Service{
		logg:       params.Logger,
		registry:   registry,
		lock:       params.Lock,
		metrics:    params.Metrics,
		schedule:   schedule,
		expr:       expr,
		jobTimeout: params.JobTimeout,
	}, nil
}

// Run does a cycle right away, then one per tick, until ctx ends.
// Ticks that arrive while a cycle is still running are dropped.
func (s *Service) Run(ctx context.Context) error {
	s.tick(ctx)

	sched := robfig.New(
		robfig.WithParser(scheduleParser),
		robfig.WithChain(robfig.SkipIfStillRunning(robfig.DiscardLogger)),
	)
	sched.Schedule(s.schedule, robfig.FuncJob(func() { s.tick(ctx) }))
	sched.Start()
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{"schedule": s.expr, "jobs": s.registry.Names()}), "cron scheduler started")

	<-ctx.Done()
	<-sched.Stop().Done()
	s.logg.Info(ctx, "cron scheduler stopped")
	return ctx.Err()
}

func (s *Service) tick(ctx context.Context) {
	result, err := s.runCycle(ctx)
	switch {
	case err != nil:
		s.logg.Error(ctx, "cron cycle aborted", err)
	case result.skipped:
		s.logg.Info(ctx, "cron lock held elsewhere; cycle skipped")
	case len(result.failed) > 0:
		s.logg.Warn(s.logg.WithField(ctx, "failed_jobs", result.failed), "cron cycle finished with failures")
	}
}

func (s *Service) runCycle(ctx context.Context) (cycle, error) {
	held, err := s.lock.Acquire(ctx)
	if err != nil {
		return cycle{}, fmt.Errorf("lock acquire: %w", err)
	}
	if !held {
		s.metrics.LockSkipped()
		return cycle{skipped: true}, nil
	}
	defer func() {
		if err := s.lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "cron lock release failed", err)
		}
	}()

	var result cycle
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			break
		}
		if err := s.runJob(ctx, job); err != nil {
			result.failed = append(result.failed, job.Name())
		}
	}
	return result, nil
}

func (s *Service) runJob(ctx context.Context, job Job) error {
	jobCtx := s.logg.WithField(ctx, "job", job.Name())
	if s.jobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(jobCtx, s.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err := job.Run(jobCtx)
	elapsed := time.Since(start)
	s.metrics.ObserveRun(job.Name(), elapsed, err)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		return err
	}
	s.logg.Info(jobCtx, "job completed")
	return nil
}
